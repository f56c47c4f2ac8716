package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Its-SuperNova/duchess-backend-sub000/internal/domain"
)

// RedisStore is the fast tier. Sessions live as JSON values under
// namespaced keys with a native TTL; an index set allows enumeration
// without a KEYS scan. Reads slide the expiry window back to the full TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "checkout_session"
	}
	if ttl <= 0 {
		ttl = domain.DefaultSessionTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *RedisStore) dataKey(sessionID string) string {
	return fmt.Sprintf("%s:data:%s", s.prefix, sessionID)
}

func (s *RedisStore) indexKey() string {
	return fmt.Sprintf("%s:index:all", s.prefix)
}

func (s *RedisStore) statsKey() string {
	return fmt.Sprintf("%s:stats", s.prefix)
}

func (s *RedisStore) Create(ctx context.Context, input SessionInput) (*domain.CheckoutSession, error) {
	if s.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	record := newSessionFromInput(uuid.NewString(), input, s.now().UTC(), s.ttl)
	if err := s.persist(ctx, record, true); err != nil {
		return nil, err
	}
	return record, nil
}

// persist writes the full record with a fresh full-TTL expiry and keeps the
// index set alive slightly longer than the data keys it points at.
func (s *RedisStore) persist(ctx context.Context, record *domain.CheckoutSession, created bool) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", record.SessionID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.dataKey(record.SessionID), payload, s.ttl)
	pipe.SAdd(ctx, s.indexKey(), record.SessionID)
	pipe.Expire(ctx, s.indexKey(), s.ttl+time.Minute)
	if created {
		pipe.HIncrBy(ctx, s.statsKey(), "created", 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write session %s: %w", record.SessionID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	if s.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	raw, err := s.client.Get(ctx, s.dataKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	var record domain.CheckoutSession
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	now := s.now().UTC()
	if record.Expired(now) {
		// Lazy expiry: the engine has not evicted the key yet but the
		// record is logically dead.
		if _, err := s.Delete(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	// Sliding expiry: every successful read resets the countdown.
	record.ExpiresAt = now.Add(s.ttl)
	if err := s.persist(ctx, &record, false); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RedisStore) Update(ctx context.Context, sessionID string, patch SessionPatch) (*domain.CheckoutSession, error) {
	record, err := s.Get(ctx, sessionID)
	if err != nil || record == nil {
		return nil, err
	}
	applyPatch(record, patch)
	record.ExpiresAt = s.now().UTC().Add(s.ttl)
	if err := s.persist(ctx, record, false); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	if s.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.dataKey(sessionID))
	pipe.SRem(ctx, s.indexKey(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return del.Val() > 0, nil
}

func (s *RedisStore) UpdatePaymentStatus(ctx context.Context, sessionID string, status domain.PaymentStatus) (*domain.CheckoutSession, error) {
	record, err := s.Get(ctx, sessionID)
	if err != nil || record == nil {
		return nil, err
	}
	attempts := record.PaymentAttempts + 1
	return s.Update(ctx, sessionID, SessionPatch{PaymentStatus: &status, PaymentAttempts: &attempts})
}

func (s *RedisStore) UpdateDatabaseOrderID(ctx context.Context, sessionID, orderID string) (*domain.CheckoutSession, error) {
	return s.Update(ctx, sessionID, SessionPatch{DatabaseOrderID: &orderID})
}

func (s *RedisStore) ListAll(ctx context.Context) ([]domain.CheckoutSession, error) {
	records, _, err := s.listRaw(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	out := make([]domain.CheckoutSession, 0, len(records))
	for _, record := range records {
		if !record.Expired(now) {
			out = append(out, record)
		}
	}
	return out, nil
}

// listRaw bulk-fetches every indexed session without expiry filtering and
// prunes index members whose data key is already gone.
func (s *RedisStore) listRaw(ctx context.Context) ([]domain.CheckoutSession, []string, error) {
	if s.client == nil {
		return nil, nil, fmt.Errorf("redis client is nil")
	}
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil && err != redis.Nil {
		return nil, nil, fmt.Errorf("list session index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.dataKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("bulk fetch sessions: %w", err)
	}
	var stale []string
	records := make([]domain.CheckoutSession, 0, len(values))
	for i, v := range values {
		if v == nil {
			stale = append(stale, ids[i])
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		var record domain.CheckoutSession
		if err := json.Unmarshal([]byte(str), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	if len(stale) > 0 {
		members := make([]interface{}, len(stale))
		for i, id := range stale {
			members[i] = id
		}
		_ = s.client.SRem(ctx, s.indexKey(), members...).Err()
	}
	return records, stale, nil
}

func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]domain.CheckoutSession, error) {
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

func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	if s.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	n, err := s.client.SCard(ctx, s.indexKey()).Result()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (s *RedisStore) CleanupExpired(ctx context.Context) (int64, error) {
	records, _, err := s.listRaw(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now().UTC()
	var removed int64
	for _, record := range records {
		if !record.Expired(now) {
			continue
		}
		ok, err := s.Delete(ctx, record.SessionID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

func (s *RedisStore) HealthCheck(ctx context.Context) TierHealth {
	if s.client == nil {
		return TierHealth{Error: "redis client is nil"}
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return TierHealth{Error: err.Error()}
	}
	count, err := s.Count(ctx)
	if err != nil {
		return TierHealth{Connected: true, Error: err.Error()}
	}
	return TierHealth{Connected: true, SessionCount: count}
}

// Stats reads the counter hash maintained on the create path.
func (s *RedisStore) Stats(ctx context.Context) (*Stats, error) {
	if s.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	created, err := s.client.HGet(ctx, s.statsKey(), "created").Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read session stats: %w", err)
	}
	active, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Created: created, ActiveSessions: active}, nil
}
