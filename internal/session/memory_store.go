package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Its-SuperNova/duchess-backend-sub000/internal/domain"
)

// MemoryStore is the tier of last resort: a process-local map with no
// persistence and no cross-instance visibility. Expiry is lazy, reads do
// not slide the window. The mutex exists because Go maps are unsafe under
// concurrent access; single-key operations stay atomic under it.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.CheckoutSession
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = domain.DefaultSessionTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*domain.CheckoutSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, input SessionInput) (*domain.CheckoutSession, error) {
	record := newSessionFromInput(uuid.NewString(), input, s.now().UTC(), s.ttl)
	s.mu.Lock()
	s.sessions[record.SessionID] = record.Clone()
	s.mu.Unlock()
	return record, nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*domain.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if record.Expired(s.now().UTC()) {
		delete(s.sessions, sessionID)
		return nil, nil
	}
	return record.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, sessionID string, patch SessionPatch) (*domain.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if record.Expired(s.now().UTC()) {
		delete(s.sessions, sessionID)
		return nil, nil
	}
	applyPatch(record, patch)
	return record.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok, nil
}

func (s *MemoryStore) UpdatePaymentStatus(ctx context.Context, sessionID string, status domain.PaymentStatus) (*domain.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if record.Expired(s.now().UTC()) {
		delete(s.sessions, sessionID)
		return nil, nil
	}
	record.PaymentAttempts++
	record.PaymentStatus = status
	return record.Clone(), nil
}

func (s *MemoryStore) UpdateDatabaseOrderID(ctx context.Context, sessionID, orderID string) (*domain.CheckoutSession, error) {
	return s.Update(ctx, sessionID, SessionPatch{DatabaseOrderID: &orderID})
}

func (s *MemoryStore) ListAll(_ context.Context) ([]domain.CheckoutSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now().UTC()
	out := make([]domain.CheckoutSession, 0, len(s.sessions))
	for _, record := range s.sessions {
		if !record.Expired(now) {
			out = append(out, *record.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string) ([]domain.CheckoutSession, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CheckoutSession, 0, len(all))
	for _, record := range all {
		if record.UserID == userID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now().UTC()
	var count int64
	for _, record := range s.sessions {
		if !record.Expired(now) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CleanupExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	var removed int64
	for id, record := range s.sessions {
		if record.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) HealthCheck(ctx context.Context) TierHealth {
	count, _ := s.Count(ctx)
	return TierHealth{Connected: true, SessionCount: count}
}
