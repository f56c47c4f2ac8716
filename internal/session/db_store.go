package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Its-SuperNova/duchess-backend-sub000/internal/domain"
)

// DBStore is the durable tier. There is no native TTL: expiry lives in the
// expires_at column and is enforced by comparison on every read. Reads do
// not slide the window. Each create opportunistically sweeps expired rows
// so the table does not grow without bound.
type DBStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewDBStore(db *gorm.DB, ttl time.Duration) *DBStore {
	if ttl <= 0 {
		ttl = domain.DefaultSessionTTL
	}
	return &DBStore{db: db, ttl: ttl, now: time.Now}
}

func (s *DBStore) Create(ctx context.Context, input SessionInput) (*domain.CheckoutSession, error) {
	if s.db == nil {
		return nil, fmt.Errorf("db handle is nil")
	}
	record := newSessionFromInput(uuid.NewString(), input, s.now().UTC(), s.ttl)
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	// Opportunistic sweep; a failure here must not fail the create.
	_, _ = s.CleanupExpired(ctx)
	return record, nil
}

func (s *DBStore) Get(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	if s.db == nil {
		return nil, fmt.Errorf("db handle is nil")
	}
	var record domain.CheckoutSession
	err := s.db.WithContext(ctx).First(&record, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select session %s: %w", sessionID, err)
	}
	if record.Expired(s.now().UTC()) {
		if _, err := s.Delete(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &record, nil
}

// Update translates only the set patch fields into a column map so unset
// fields are never written.
func (s *DBStore) Update(ctx context.Context, sessionID string, patch SessionPatch) (*domain.CheckoutSession, error) {
	record, err := s.Get(ctx, sessionID)
	if err != nil || record == nil {
		return nil, err
	}
	columns := patchColumns(patch)
	if len(columns) > 0 {
		err = s.db.WithContext(ctx).
			Model(&domain.CheckoutSession{}).
			Where("session_id = ?", sessionID).
			Updates(columns).Error
		if err != nil {
			return nil, fmt.Errorf("update session %s: %w", sessionID, err)
		}
	}
	applyPatch(record, patch)
	return record, nil
}

func (s *DBStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("db handle is nil")
	}
	res := s.db.WithContext(ctx).Delete(&domain.CheckoutSession{}, "session_id = ?", sessionID)
	if res.Error != nil {
		return false, fmt.Errorf("delete session %s: %w", sessionID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *DBStore) UpdatePaymentStatus(ctx context.Context, sessionID string, status domain.PaymentStatus) (*domain.CheckoutSession, error) {
	record, err := s.Get(ctx, sessionID)
	if err != nil || record == nil {
		return nil, err
	}
	attempts := record.PaymentAttempts + 1
	return s.Update(ctx, sessionID, SessionPatch{PaymentStatus: &status, PaymentAttempts: &attempts})
}

func (s *DBStore) UpdateDatabaseOrderID(ctx context.Context, sessionID, orderID string) (*domain.CheckoutSession, error) {
	return s.Update(ctx, sessionID, SessionPatch{DatabaseOrderID: &orderID})
}

func (s *DBStore) ListAll(ctx context.Context) ([]domain.CheckoutSession, error) {
	if s.db == nil {
		return nil, fmt.Errorf("db handle is nil")
	}
	var records []domain.CheckoutSession
	err := s.db.WithContext(ctx).
		Where("expires_at > ?", s.now().UTC()).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return records, nil
}

func (s *DBStore) ListByUser(ctx context.Context, userID string) ([]domain.CheckoutSession, error) {
	if s.db == nil {
		return nil, fmt.Errorf("db handle is nil")
	}
	var records []domain.CheckoutSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, s.now().UTC()).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions for user %s: %w", userID, err)
	}
	return records, nil
}

func (s *DBStore) Count(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("db handle is nil")
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&domain.CheckoutSession{}).
		Where("expires_at > ?", s.now().UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}

func (s *DBStore) CleanupExpired(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("db handle is nil")
	}
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now().UTC()).
		Delete(&domain.CheckoutSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *DBStore) HealthCheck(ctx context.Context) TierHealth {
	if s.db == nil {
		return TierHealth{Error: "db handle is nil"}
	}
	count, err := s.Count(ctx)
	if err != nil {
		return TierHealth{Error: err.Error()}
	}
	return TierHealth{Connected: true, SessionCount: count}
}

// mustJSON serializes the JSON-column values by hand because map-based
// Updates do not run gorm's field serializers.
func mustJSON(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(raw)
}

// patchColumns maps set patch fields to their snake_case columns.
func patchColumns(patch SessionPatch) map[string]interface{} {
	columns := map[string]interface{}{}
	if patch.UserID != nil {
		columns["user_id"] = *patch.UserID
	}
	if patch.UserEmail != nil {
		columns["user_email"] = *patch.UserEmail
	}
	if patch.Items != nil {
		columns["items"] = mustJSON(*patch.Items)
	}
	if patch.Subtotal != nil {
		columns["subtotal"] = *patch.Subtotal
	}
	if patch.Discount != nil {
		columns["discount"] = *patch.Discount
	}
	if patch.DeliveryFee != nil {
		columns["delivery_fee"] = *patch.DeliveryFee
	}
	if patch.CGSTAmount != nil {
		columns["cgst_amount"] = *patch.CGSTAmount
	}
	if patch.SGSTAmount != nil {
		columns["sgst_amount"] = *patch.SGSTAmount
	}
	if patch.TotalAmount != nil {
		columns["total_amount"] = *patch.TotalAmount
	}
	if patch.DeliveryAddressText != nil {
		columns["delivery_address_text"] = *patch.DeliveryAddressText
	}
	if patch.SelectedAddressID != nil {
		columns["selected_address_id"] = *patch.SelectedAddressID
	}
	if patch.DistanceKm != nil {
		columns["distance_km"] = *patch.DistanceKm
	}
	if patch.DurationMin != nil {
		columns["duration_min"] = *patch.DurationMin
	}
	if patch.DeliveryZone != nil {
		columns["delivery_zone"] = *patch.DeliveryZone
	}
	if patch.CouponCode != nil {
		columns["coupon_code"] = *patch.CouponCode
	}
	if patch.CustomizationOptions != nil {
		columns["customization_options"] = mustJSON(*patch.CustomizationOptions)
	}
	if patch.CakeText != nil {
		columns["cake_text"] = *patch.CakeText
	}
	if patch.MessageCardText != nil {
		columns["message_card_text"] = *patch.MessageCardText
	}
	if patch.Notes != nil {
		columns["notes"] = *patch.Notes
	}
	if patch.Contact != nil {
		columns["contact"] = mustJSON(patch.Contact)
	}
	if patch.PaymentStatus != nil {
		columns["payment_status"] = string(*patch.PaymentStatus)
	}
	if patch.PaymentAttempts != nil {
		columns["payment_attempts"] = *patch.PaymentAttempts
	}
	if patch.DatabaseOrderID != nil {
		columns["database_order_id"] = *patch.DatabaseOrderID
	}
	return columns
}
