package orgcache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store holds encoded cache entries.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte)
	Delete(ctx context.Context, keys ...string)
	DeletePrefix(ctx context.Context, prefix string)
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore is a process-local Store. A zero ttl keeps entries until they
// are invalidated.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl < 0 {
		ttl = 0
	}
	return &MemoryStore{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e.data, true
}

func (m *MemoryStore) Set(_ context.Context, key string, data []byte) {
	e := memoryEntry{data: data}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
}

func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) {
	m.mu.Lock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	m.mu.Unlock()
}

// RedisStore keeps entries in Redis so several CLI processes share them.
// Redis failures degrade to cache misses.
type RedisStore struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedisStore(rc *redis.Client, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{rc: rc, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.rc.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = r.rc.Del(ctx, key).Err()
		}
		return nil, false
	}
	return data, true
}

func (r *RedisStore) Set(ctx context.Context, key string, data []byte) {
	_ = r.rc.Set(ctx, key, data, r.ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	_ = r.rc.Del(ctx, keys...).Err()
}

func (r *RedisStore) DeletePrefix(ctx context.Context, prefix string) {
	iter := r.rc.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	r.Delete(ctx, keys...)
}
