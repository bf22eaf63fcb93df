package mockapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDeduperTTL = 24 * time.Hour

// Deduper records processed idempotency keys per user.
type Deduper interface {
	// Add records the key and reports whether it was newly added.
	Add(ctx context.Context, userID int64, key string) (bool, error)
	// Remove forgets a key so a failed command may be retried.
	Remove(ctx context.Context, userID int64, key string) error
}

func dedupeKey(userID int64, key string) string {
	return fmt.Sprintf("mockapi:idem:%d:%s", userID, key)
}

// RedisDeduper stores processed idempotency keys in Redis so all instances
// can avoid reprocessing the same command.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = defaultDeduperTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) Add(ctx context.Context, userID int64, key string) (bool, error) {
	return r.client.SetNX(ctx, dedupeKey(userID, key), 1, r.ttl).Result()
}

func (r *RedisDeduper) Remove(ctx context.Context, userID int64, key string) error {
	return r.client.Del(ctx, dedupeKey(userID, key)).Err()
}

// MemoryDeduper is the single-instance variant used when no Redis is configured.
type MemoryDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = defaultDeduperTTL
	}
	return &MemoryDeduper{ttl: ttl, now: time.Now, seen: map[string]time.Time{}}
}

func (m *MemoryDeduper) Add(_ context.Context, userID int64, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := dedupeKey(userID, key)
	now := m.now()
	if exp, ok := m.seen[k]; ok && now.Before(exp) {
		return false, nil
	}
	m.seen[k] = now.Add(m.ttl)
	return true, nil
}

func (m *MemoryDeduper) Remove(_ context.Context, userID int64, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, dedupeKey(userID, key))
	return nil
}
