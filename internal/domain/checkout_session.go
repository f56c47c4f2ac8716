package domain

import "time"

// DefaultSessionTTL is how long a checkout session stays alive without
// activity. Tier A slides this window forward on every read; the durable
// and in-memory tiers enforce it from the creation timestamp only.
const DefaultSessionTTL = 30 * time.Minute

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// CartItem is a snapshot of a product line at the moment it entered the
// session. Prices are frozen here; later catalog edits do not affect an
// in-flight checkout.
type CartItem struct {
	ProductID   string  `json:"product_id"`
	Name        string  `json:"name"`
	ImageURL    string  `json:"image_url,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
	Variant     string  `json:"variant,omitempty"`
	CakeText    string  `json:"cake_text,omitempty"`
	MessageCard string  `json:"message_card,omitempty"`
}

type ContactInfo struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	AlternatePhone string `json:"alternate_phone,omitempty"`
}

// CheckoutSession is the ephemeral server-side record of an in-progress
// purchase attempt, distinct from a durable order. The gorm tags describe
// the Tier B table; Tier A stores the whole struct as one JSON value.
type CheckoutSession struct {
	SessionID string `gorm:"primaryKey;size:64" json:"session_id"`

	UserID    string `gorm:"size:64;index" json:"user_id,omitempty"`
	UserEmail string `gorm:"size:256" json:"user_email,omitempty"`

	Items []CartItem `gorm:"serializer:json;type:text" json:"items"`

	Subtotal    float64 `json:"subtotal"`
	Discount    float64 `json:"discount"`
	DeliveryFee float64 `json:"delivery_fee"`
	CGSTAmount  float64 `gorm:"column:cgst_amount" json:"cgst_amount"`
	SGSTAmount  float64 `gorm:"column:sgst_amount" json:"sgst_amount"`
	TotalAmount float64 `json:"total_amount"`

	DeliveryAddressText string  `gorm:"size:1024" json:"delivery_address_text,omitempty"`
	SelectedAddressID   string  `gorm:"size:64" json:"selected_address_id,omitempty"`
	DistanceKm          float64 `json:"distance_km,omitempty"`
	DurationMin         float64 `json:"duration_min,omitempty"`
	DeliveryZone        string  `gorm:"size:64" json:"delivery_zone,omitempty"`

	CouponCode           string            `gorm:"size:64" json:"coupon_code,omitempty"`
	CustomizationOptions map[string]string `gorm:"serializer:json;type:text" json:"customization_options,omitempty"`
	CakeText             string            `gorm:"size:256" json:"cake_text,omitempty"`
	MessageCardText      string            `gorm:"size:512" json:"message_card_text,omitempty"`
	Notes                string            `gorm:"size:2048" json:"notes,omitempty"`

	Contact *ContactInfo `gorm:"serializer:json;type:text" json:"contact,omitempty"`

	PaymentStatus   PaymentStatus `gorm:"size:32;not null" json:"payment_status"`
	PaymentAttempts int           `gorm:"not null" json:"payment_attempts"`

	DatabaseOrderID string `gorm:"size:64" json:"database_order_id,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
}

func (CheckoutSession) TableName() string { return "checkout_sessions" }

// Expired reports whether the session is logically dead at the given
// instant, regardless of whether the backing tier has evicted it yet.
func (s *CheckoutSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Clone returns a deep copy so stored state cannot be mutated through a
// returned pointer.
func (s *CheckoutSession) Clone() *CheckoutSession {
	out := *s
	if s.Items != nil {
		out.Items = make([]CartItem, len(s.Items))
		copy(out.Items, s.Items)
	}
	if s.CustomizationOptions != nil {
		out.CustomizationOptions = make(map[string]string, len(s.CustomizationOptions))
		for k, v := range s.CustomizationOptions {
			out.CustomizationOptions[k] = v
		}
	}
	if s.Contact != nil {
		contact := *s.Contact
		out.Contact = &contact
	}
	return &out
}
