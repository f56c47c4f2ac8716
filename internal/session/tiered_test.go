package session

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Its-SuperNova/duchess-backend-sub000/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func closeDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("close sql db: %v", err)
	}
}

func TestTieredStorePrefersFastTier(t *testing.T) {
	_, fast := newRedisStoreForTest(t, time.Minute)
	durable, _ := newDBStoreForTest(t, time.Minute)
	store := NewTieredStore(fast, durable, NewMemoryStore(time.Minute), discardLogger())
	ctx := context.Background()

	record, err := store.CreateSession(ctx, sampleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The write must land in Redis only; no dual write to the database.
	fromFast, err := fast.Get(ctx, record.SessionID)
	if err != nil || fromFast == nil {
		t.Fatalf("expected session in fast tier: record=%v err=%v", fromFast, err)
	}
	fromDurable, err := durable.Get(ctx, record.SessionID)
	if err != nil {
		t.Fatalf("durable get: %v", err)
	}
	if fromDurable != nil {
		t.Fatalf("session must not be dual-written to the durable tier: %+v", fromDurable)
	}
}

func TestTieredStoreFallsBackToDurableTier(t *testing.T) {
	m, fast := newRedisStoreForTest(t, time.Minute)
	durable, _ := newDBStoreForTest(t, time.Minute)
	store := NewTieredStore(fast, durable, NewMemoryStore(time.Minute), discardLogger())
	ctx := context.Background()

	m.Close()

	record, err := store.CreateSession(ctx, sampleInput())
	if err != nil {
		t.Fatalf("create with redis down: %v", err)
	}

	// Retrievable through the facade and directly from Tier B, without
	// Redis ever seeing it.
	got, err := store.GetSession(ctx, record.SessionID)
	if err != nil {
		t.Fatalf("get via facade: %v", err)
	}
	if got == nil || got.SessionID != record.SessionID {
		t.Fatalf("expected session via facade, got %+v", got)
	}
	fromDurable, err := durable.Get(ctx, record.SessionID)
	if err != nil || fromDurable == nil {
		t.Fatalf("expected session in durable tier: record=%v err=%v", fromDurable, err)
	}
}

func TestTieredStoreFallsBackToMemoryTier(t *testing.T) {
	m, fast := newRedisStoreForTest(t, time.Minute)
	durable, db := newDBStoreForTest(t, time.Minute)
	fallback := NewMemoryStore(time.Minute)
	store := NewTieredStore(fast, durable, fallback, discardLogger())
	ctx := context.Background()

	m.Close()
	closeDB(t, db)

	record, err := store.CreateSession(ctx, sampleInput())
	if err != nil {
		t.Fatalf("create with both tiers down: %v", err)
	}

	got, err := fallback.Get(ctx, record.SessionID)
	if err != nil || got == nil {
		t.Fatalf("expected session in fallback tier: record=%v err=%v", got, err)
	}
}

func TestTieredStoreTierIsolation(t *testing.T) {
	// A session created while only the fallback tier was reachable must
	// stay invisible to the other tiers; there is no background sync.
	m, fast := newRedisStoreForTest(t, time.Minute)
	durable, db := newDBStoreForTest(t, time.Minute)
	fallback := NewMemoryStore(time.Minute)
	store := NewTieredStore(fast, durable, fallback, discardLogger())
	ctx := context.Background()

	addr := m.Addr()
	m.Close()
	closeDB(t, db)
	record, err := store.CreateSession(ctx, sampleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Bring Redis back on the same address; the record must not appear.
	m2 := miniredis.NewMiniRedis()
	if err := m2.StartAddr(addr); err != nil {
		t.Fatalf("restart miniredis: %v", err)
	}
	defer m2.Close()

	fromFast, err := fast.Get(ctx, record.SessionID)
	if err != nil {
		t.Fatalf("fast get: %v", err)
	}
	if fromFast != nil {
		t.Fatalf("fallback-created session leaked into fast tier: %+v", fromFast)
	}
}

func TestTieredStoreHealthyMissIsFinal(t *testing.T) {
	// Seed the durable tier directly, keep Redis healthy and empty. A read
	// through the facade must trust the healthy fast tier's miss and NOT
	// fall through to the durable copy.
	_, fast := newRedisStoreForTest(t, time.Minute)
	durable, _ := newDBStoreForTest(t, time.Minute)
	store := NewTieredStore(fast, durable, NewMemoryStore(time.Minute), discardLogger())
	ctx := context.Background()

	seeded, err := durable.Create(ctx, sampleInput())
	if err != nil {
		t.Fatalf("seed durable: %v", err)
	}

	got, err := store.GetSession(ctx, seeded.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("healthy fast-tier miss must be final, got %+v", got)
	}
}

func TestTieredStoreSelfHealsAfterRecovery(t *testing.T) {
	m, fast := newRedisStoreForTest(t, time.Minute)
	durable, _ := newDBStoreForTest(t, time.Minute)
	store := NewTieredStore(fast, durable, NewMemoryStore(time.Minute), discardLogger())
	ctx := context.Background()

	addr := m.Addr()
	m.Close()
	if _, err := store.CreateSession(ctx, sampleInput()); err != nil {
		t.Fatalf("create during outage: %v", err)
	}

	m2 := miniredis.NewMiniRedis()
	if err := m2.StartAddr(addr); err != nil {
		t.Fatalf("restart miniredis: %v", err)
	}
	defer m2.Close()

	// Probes run per call, so the very next write goes back to Redis.
	record, err := store.CreateSession(ctx, sampleInput())
	if err != nil {
		t.Fatalf("create after recovery: %v", err)
	}
	fromFast, err := fast.Get(ctx, record.SessionID)
	if err != nil || fromFast == nil {
		t.Fatalf("expected post-recovery session in fast tier: record=%v err=%v", fromFast, err)
	}
}

func TestTieredStoreDeleteMissingReturnsFalse(t *testing.T) {
	store := NewTieredStore(nil, nil, NewMemoryStore(time.Minute), discardLogger())
	ok, err := store.DeleteSession(context.Background(), "nonexistent-id")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok {
		t.Fatal("expected false for nonexistent session")
	}
}

func TestTieredStorePaymentFlowEndToEnd(t *testing.T) {
	_, fast := newRedisStoreForTest(t, time.Minute)
	store := NewTieredStore(fast, nil, NewMemoryStore(time.Minute), discardLogger())
	ctx := context.Background()

	record, err := store.CreateSession(ctx, sampleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.UpdatePaymentStatus(ctx, record.SessionID, domain.PaymentStatusProcessing); err != nil {
		t.Fatalf("processing: %v", err)
	}
	got, err := store.UpdatePaymentStatus(ctx, record.SessionID, domain.PaymentStatusPaid)
	if err != nil {
		t.Fatalf("paid: %v", err)
	}
	if got.PaymentStatus != domain.PaymentStatusPaid || got.PaymentAttempts != 2 {
		t.Fatalf("expected paid/2, got %s/%d", got.PaymentStatus, got.PaymentAttempts)
	}

	linked, err := store.UpdateDatabaseOrderID(ctx, record.SessionID, "order-1001")
	if err != nil {
		t.Fatalf("link order: %v", err)
	}
	if linked.DatabaseOrderID != "order-1001" {
		t.Fatalf("expected order link, got %q", linked.DatabaseOrderID)
	}
}

func TestTieredStoreHealthCheckAggregates(t *testing.T) {
	m, fast := newRedisStoreForTest(t, time.Minute)
	durable, _ := newDBStoreForTest(t, time.Minute)
	store := NewTieredStore(fast, durable, NewMemoryStore(time.Minute), discardLogger())
	ctx := context.Background()

	health := store.HealthCheck(ctx)
	if !health.FastTier || !health.DurableTier || !health.FallbackTier {
		t.Fatalf("expected all tiers healthy: %+v", health)
	}

	m.Close()
	health = store.HealthCheck(ctx)
	if health.FastTier {
		t.Fatalf("expected fast tier down: %+v", health)
	}
	if !health.DurableTier || !health.FallbackTier {
		t.Fatalf("expected durable and fallback healthy: %+v", health)
	}
}

func TestTieredStoreHealthCheckBoundsProbes(t *testing.T) {
	// A backend that accepts connections and never answers. With the read
	// timeout disabled, only the probe deadline can unblock the ping.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	client := redis.NewClient(&redis.Options{
		Addr:                  ln.Addr().String(),
		DialTimeout:           time.Second,
		ReadTimeout:           -1,
		WriteTimeout:          -1,
		ContextTimeoutEnabled: true,
	})
	t.Cleanup(func() { _ = client.Close() })

	fast := NewRedisStore(client, "cs_test", time.Minute)
	store := NewTieredStore(fast, nil, NewMemoryStore(time.Minute), discardLogger())

	start := time.Now()
	health := store.HealthCheck(context.Background())
	if elapsed := time.Since(start); elapsed > probeTimeout+3*time.Second {
		t.Fatalf("health check took %v, probe deadline not applied", elapsed)
	}
	if health.FastTier {
		t.Fatalf("expected unresponsive fast tier to be reported down: %+v", health)
	}
	if !health.FallbackTier {
		t.Fatalf("fallback tier must stay healthy: %+v", health)
	}
}

func TestTieredStoreStatsNilWhenFastTierDown(t *testing.T) {
	m, fast := newRedisStoreForTest(t, time.Minute)
	store := NewTieredStore(fast, nil, NewMemoryStore(time.Minute), discardLogger())
	ctx := context.Background()

	if _, err := store.CreateSession(ctx, sampleInput()); err != nil {
		t.Fatalf("create: %v", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats == nil || stats.Created != 1 {
		t.Fatalf("expected stats with 1 created, got %+v", stats)
	}

	m.Close()
	stats, err = store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats during outage: %v", err)
	}
	if stats != nil {
		t.Fatalf("expected nil stats during outage, got %+v", stats)
	}
}

func TestTieredStoreListByUserAcrossFacade(t *testing.T) {
	_, fast := newRedisStoreForTest(t, time.Minute)
	store := NewTieredStore(fast, nil, NewMemoryStore(time.Minute), discardLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.CreateSession(ctx, sampleInput()); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	other := sampleInput()
	other.UserID = "user-2"
	if _, err := store.CreateSession(ctx, other); err != nil {
		t.Fatalf("create other: %v", err)
	}

	mine, err := store.ListSessionsByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(mine) != 3 {
		t.Fatalf("expected exactly 3 sessions for user-1, got %d", len(mine))
	}
}
