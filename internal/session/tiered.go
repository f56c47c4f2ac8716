package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Its-SuperNova/duchess-backend-sub000/internal/domain"
)

const probeTimeout = 2 * time.Second

// TieredStore is the single entry point the rest of the application uses.
// It sequences the fast, durable, and fallback tiers per operation: probe a
// tier's connectivity, run the operation on the first reachable tier, and
// trust that tier's answer. A healthy tier returning a miss is final — the
// chain does not fall through on a confirmed miss, only on tier failure.
//
// There is no cross-tier synchronization: every write lands in exactly the
// tier that served it, so a session created during a Redis outage stays in
// the durable tier even after Redis recovers. Probes run on every call, so
// a recovered tier is picked up immediately.
type TieredStore struct {
	fast     *RedisStore
	durable  *DBStore
	fallback *MemoryStore
	logger   *slog.Logger
}

// NewTieredStore wires the chain. fast and durable may be nil when the
// deployment has no Redis or no database; fallback is always present.
func NewTieredStore(fast *RedisStore, durable *DBStore, fallback *MemoryStore, logger *slog.Logger) *TieredStore {
	if fallback == nil {
		fallback = NewMemoryStore(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TieredStore{fast: fast, durable: durable, fallback: fallback, logger: logger}
}

type tier struct {
	name  string
	store Store
	probe bool
}

func (t *TieredStore) tiers() []tier {
	chain := make([]tier, 0, 3)
	if t.fast != nil {
		chain = append(chain, tier{name: "redis", store: t.fast, probe: true})
	}
	if t.durable != nil {
		chain = append(chain, tier{name: "database", store: t.durable, probe: true})
	}
	chain = append(chain, tier{name: "memory", store: t.fallback})
	return chain
}

// reachable re-probes on every call so the chain self-heals the moment a
// tier comes back.
func (t *TieredStore) reachable(ctx context.Context, tr tier) bool {
	if !tr.probe {
		return true
	}
	health := probeHealth(ctx, tr.store)
	if !health.Connected {
		t.logger.Warn("session tier unreachable", "tier", tr.name, "error", health.Error)
	}
	return health.Connected
}

// probeHealth bounds every connectivity probe so a hung backend cannot
// stall the caller past probeTimeout.
func probeHealth(ctx context.Context, s Store) TierHealth {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return s.HealthCheck(probeCtx)
}

func runTiered[T any](ctx context.Context, t *TieredStore, op string, fn func(context.Context, Store) (T, error)) (T, error) {
	var zero T
	chain := t.tiers()
	for i, tr := range chain {
		last := i == len(chain)-1
		if !last && !t.reachable(ctx, tr) {
			continue
		}
		result, err := fn(ctx, tr.store)
		if err != nil {
			if last {
				return zero, fmt.Errorf("%s: all session tiers failed: %w", op, err)
			}
			t.logger.Warn("session tier operation failed, falling back",
				"op", op, "tier", tr.name, "error", err)
			continue
		}
		return result, nil
	}
	return zero, fmt.Errorf("%s: no session tier available", op)
}

func (t *TieredStore) CreateSession(ctx context.Context, input SessionInput) (*domain.CheckoutSession, error) {
	return runTiered(ctx, t, "create", func(ctx context.Context, s Store) (*domain.CheckoutSession, error) {
		return s.Create(ctx, input)
	})
}

func (t *TieredStore) GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	return runTiered(ctx, t, "get", func(ctx context.Context, s Store) (*domain.CheckoutSession, error) {
		return s.Get(ctx, sessionID)
	})
}

func (t *TieredStore) UpdateSession(ctx context.Context, sessionID string, patch SessionPatch) (*domain.CheckoutSession, error) {
	return runTiered(ctx, t, "update", func(ctx context.Context, s Store) (*domain.CheckoutSession, error) {
		return s.Update(ctx, sessionID, patch)
	})
}

func (t *TieredStore) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	return runTiered(ctx, t, "delete", func(ctx context.Context, s Store) (bool, error) {
		return s.Delete(ctx, sessionID)
	})
}

func (t *TieredStore) UpdatePaymentStatus(ctx context.Context, sessionID string, status domain.PaymentStatus) (*domain.CheckoutSession, error) {
	return runTiered(ctx, t, "update_payment_status", func(ctx context.Context, s Store) (*domain.CheckoutSession, error) {
		return s.UpdatePaymentStatus(ctx, sessionID, status)
	})
}

func (t *TieredStore) UpdateDatabaseOrderID(ctx context.Context, sessionID, orderID string) (*domain.CheckoutSession, error) {
	return runTiered(ctx, t, "update_database_order_id", func(ctx context.Context, s Store) (*domain.CheckoutSession, error) {
		return s.UpdateDatabaseOrderID(ctx, sessionID, orderID)
	})
}

func (t *TieredStore) ListAllSessions(ctx context.Context) ([]domain.CheckoutSession, error) {
	return runTiered(ctx, t, "list_all", func(ctx context.Context, s Store) ([]domain.CheckoutSession, error) {
		return s.ListAll(ctx)
	})
}

func (t *TieredStore) ListSessionsByUser(ctx context.Context, userID string) ([]domain.CheckoutSession, error) {
	return runTiered(ctx, t, "list_by_user", func(ctx context.Context, s Store) ([]domain.CheckoutSession, error) {
		return s.ListByUser(ctx, userID)
	})
}

func (t *TieredStore) SessionCount(ctx context.Context) (int64, error) {
	return runTiered(ctx, t, "count", func(ctx context.Context, s Store) (int64, error) {
		return s.Count(ctx)
	})
}

func (t *TieredStore) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return runTiered(ctx, t, "cleanup_expired", func(ctx context.Context, s Store) (int64, error) {
		return s.CleanupExpired(ctx)
	})
}

// Stats reports the fast tier's counters; nil when Redis is not reachable,
// since no other tier maintains them.
func (t *TieredStore) Stats(ctx context.Context) (*Stats, error) {
	if t.fast == nil {
		return nil, nil
	}
	stats, err := t.fast.Stats(ctx)
	if err != nil {
		t.logger.Warn("session stats unavailable", "error", err)
		return nil, nil
	}
	return stats, nil
}

// Health is the aggregate view over all three tiers. The fallback tier is
// always reported healthy; the session count comes from the first healthy
// tier, mirroring the read path.
type Health struct {
	FastTier     bool  `json:"fast_tier"`
	DurableTier  bool  `json:"durable_tier"`
	FallbackTier bool  `json:"fallback_tier"`
	SessionCount int64 `json:"session_count"`
}

func (t *TieredStore) HealthCheck(ctx context.Context) Health {
	health := Health{FallbackTier: true}
	counted := false
	if t.fast != nil {
		if h := probeHealth(ctx, t.fast); h.Connected {
			health.FastTier = true
			health.SessionCount = h.SessionCount
			counted = true
		}
	}
	if t.durable != nil {
		if h := probeHealth(ctx, t.durable); h.Connected {
			health.DurableTier = true
			if !counted {
				health.SessionCount = h.SessionCount
				counted = true
			}
		}
	}
	if !counted {
		h := t.fallback.HealthCheck(ctx)
		health.SessionCount = h.SessionCount
	}
	return health
}
