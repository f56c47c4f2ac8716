package session

import (
	"context"
	"time"

	"github.com/Its-SuperNova/duchess-backend-sub000/internal/domain"
)

// SessionInput is the creation payload. The store fills in the id, the
// timestamps, and the payment defaults; everything else is caller-provided.
// TotalAmount is deliberately not derived from the other financial fields —
// the checkout flow computes it and the store just records it.
type SessionInput struct {
	UserID    string `json:"user_id,omitempty"`
	UserEmail string `json:"user_email,omitempty"`

	Items []domain.CartItem `json:"items,omitempty"`

	Subtotal    float64 `json:"subtotal,omitempty"`
	Discount    float64 `json:"discount,omitempty"`
	DeliveryFee float64 `json:"delivery_fee,omitempty"`
	CGSTAmount  float64 `json:"cgst_amount,omitempty"`
	SGSTAmount  float64 `json:"sgst_amount,omitempty"`
	TotalAmount float64 `json:"total_amount,omitempty"`

	DeliveryAddressText string  `json:"delivery_address_text,omitempty"`
	SelectedAddressID   string  `json:"selected_address_id,omitempty"`
	DistanceKm          float64 `json:"distance_km,omitempty"`
	DurationMin         float64 `json:"duration_min,omitempty"`
	DeliveryZone        string  `json:"delivery_zone,omitempty"`

	CouponCode           string            `json:"coupon_code,omitempty"`
	CustomizationOptions map[string]string `json:"customization_options,omitempty"`
	CakeText             string            `json:"cake_text,omitempty"`
	MessageCardText      string            `json:"message_card_text,omitempty"`
	Notes                string            `json:"notes,omitempty"`

	Contact *domain.ContactInfo `json:"contact,omitempty"`
}

// SessionPatch is a partial update. Nil pointers mean "leave unchanged";
// each tier translates only the set fields into its own write, so a patch
// never clobbers fields it does not mention.
type SessionPatch struct {
	UserID    *string `json:"user_id,omitempty"`
	UserEmail *string `json:"user_email,omitempty"`

	Items *[]domain.CartItem `json:"items,omitempty"`

	Subtotal    *float64 `json:"subtotal,omitempty"`
	Discount    *float64 `json:"discount,omitempty"`
	DeliveryFee *float64 `json:"delivery_fee,omitempty"`
	CGSTAmount  *float64 `json:"cgst_amount,omitempty"`
	SGSTAmount  *float64 `json:"sgst_amount,omitempty"`
	TotalAmount *float64 `json:"total_amount,omitempty"`

	DeliveryAddressText *string  `json:"delivery_address_text,omitempty"`
	SelectedAddressID   *string  `json:"selected_address_id,omitempty"`
	DistanceKm          *float64 `json:"distance_km,omitempty"`
	DurationMin         *float64 `json:"duration_min,omitempty"`
	DeliveryZone        *string  `json:"delivery_zone,omitempty"`

	CouponCode           *string            `json:"coupon_code,omitempty"`
	CustomizationOptions *map[string]string `json:"customization_options,omitempty"`
	CakeText             *string            `json:"cake_text,omitempty"`
	MessageCardText      *string            `json:"message_card_text,omitempty"`
	Notes                *string            `json:"notes,omitempty"`

	Contact *domain.ContactInfo `json:"contact,omitempty"`

	PaymentStatus   *domain.PaymentStatus `json:"payment_status,omitempty"`
	PaymentAttempts *int                  `json:"payment_attempts,omitempty"`

	DatabaseOrderID *string `json:"database_order_id,omitempty"`
}

// TierHealth is the result of probing one tier.
type TierHealth struct {
	Connected    bool   `json:"connected"`
	SessionCount int64  `json:"session_count"`
	Error        string `json:"error,omitempty"`
}

// Stats is the counter structure Tier A maintains alongside the data keys.
type Stats struct {
	Created        int64 `json:"created"`
	ActiveSessions int64 `json:"active_sessions"`
}

// Store is the contract every tier implements in full. Methods return
// (nil, nil) for a genuine miss (absent or lazily expired); a non-nil error
// always means the tier itself failed and the caller should try the next
// one. No method mutates more than its own tier.
type Store interface {
	Create(ctx context.Context, input SessionInput) (*domain.CheckoutSession, error)
	Get(ctx context.Context, sessionID string) (*domain.CheckoutSession, error)
	Update(ctx context.Context, sessionID string, patch SessionPatch) (*domain.CheckoutSession, error)
	Delete(ctx context.Context, sessionID string) (bool, error)
	UpdatePaymentStatus(ctx context.Context, sessionID string, status domain.PaymentStatus) (*domain.CheckoutSession, error)
	UpdateDatabaseOrderID(ctx context.Context, sessionID, orderID string) (*domain.CheckoutSession, error)
	ListAll(ctx context.Context) ([]domain.CheckoutSession, error)
	ListByUser(ctx context.Context, userID string) ([]domain.CheckoutSession, error)
	Count(ctx context.Context) (int64, error)
	CleanupExpired(ctx context.Context) (int64, error)
	HealthCheck(ctx context.Context) TierHealth
}

// newSessionFromInput builds the canonical record every tier creates. The
// id comes from the caller so tiers can share this without re-generating.
func newSessionFromInput(id string, input SessionInput, now time.Time, ttl time.Duration) *domain.CheckoutSession {
	return &domain.CheckoutSession{
		SessionID:            id,
		UserID:               input.UserID,
		UserEmail:            input.UserEmail,
		Items:                input.Items,
		Subtotal:             input.Subtotal,
		Discount:             input.Discount,
		DeliveryFee:          input.DeliveryFee,
		CGSTAmount:           input.CGSTAmount,
		SGSTAmount:           input.SGSTAmount,
		TotalAmount:          input.TotalAmount,
		DeliveryAddressText:  input.DeliveryAddressText,
		SelectedAddressID:    input.SelectedAddressID,
		DistanceKm:           input.DistanceKm,
		DurationMin:          input.DurationMin,
		DeliveryZone:         input.DeliveryZone,
		CouponCode:           input.CouponCode,
		CustomizationOptions: input.CustomizationOptions,
		CakeText:             input.CakeText,
		MessageCardText:      input.MessageCardText,
		Notes:                input.Notes,
		Contact:              input.Contact,
		PaymentStatus:        domain.PaymentStatusPending,
		PaymentAttempts:      0,
		CreatedAt:            now,
		ExpiresAt:            now.Add(ttl),
	}
}

// applyPatch merges the set fields of a patch into a record in place.
func applyPatch(s *domain.CheckoutSession, patch SessionPatch) {
	if patch.UserID != nil {
		s.UserID = *patch.UserID
	}
	if patch.UserEmail != nil {
		s.UserEmail = *patch.UserEmail
	}
	if patch.Items != nil {
		s.Items = *patch.Items
	}
	if patch.Subtotal != nil {
		s.Subtotal = *patch.Subtotal
	}
	if patch.Discount != nil {
		s.Discount = *patch.Discount
	}
	if patch.DeliveryFee != nil {
		s.DeliveryFee = *patch.DeliveryFee
	}
	if patch.CGSTAmount != nil {
		s.CGSTAmount = *patch.CGSTAmount
	}
	if patch.SGSTAmount != nil {
		s.SGSTAmount = *patch.SGSTAmount
	}
	if patch.TotalAmount != nil {
		s.TotalAmount = *patch.TotalAmount
	}
	if patch.DeliveryAddressText != nil {
		s.DeliveryAddressText = *patch.DeliveryAddressText
	}
	if patch.SelectedAddressID != nil {
		s.SelectedAddressID = *patch.SelectedAddressID
	}
	if patch.DistanceKm != nil {
		s.DistanceKm = *patch.DistanceKm
	}
	if patch.DurationMin != nil {
		s.DurationMin = *patch.DurationMin
	}
	if patch.DeliveryZone != nil {
		s.DeliveryZone = *patch.DeliveryZone
	}
	if patch.CouponCode != nil {
		s.CouponCode = *patch.CouponCode
	}
	if patch.CustomizationOptions != nil {
		s.CustomizationOptions = *patch.CustomizationOptions
	}
	if patch.CakeText != nil {
		s.CakeText = *patch.CakeText
	}
	if patch.MessageCardText != nil {
		s.MessageCardText = *patch.MessageCardText
	}
	if patch.Notes != nil {
		s.Notes = *patch.Notes
	}
	if patch.Contact != nil {
		s.Contact = patch.Contact
	}
	if patch.PaymentStatus != nil {
		s.PaymentStatus = *patch.PaymentStatus
	}
	if patch.PaymentAttempts != nil {
		s.PaymentAttempts = *patch.PaymentAttempts
	}
	if patch.DatabaseOrderID != nil {
		s.DatabaseOrderID = *patch.DatabaseOrderID
	}
}
