package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "idempotency:"

// RedisIdempotencyStore caches replayable HTTP responses under idempotency:<key>.
type RedisIdempotencyStore struct {
	client redis.Cmdable
}

func NewRedisIdempotencyStore(client redis.Cmdable) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

// Reserve claims key for an in-progress request. It fails when the key is held
// or already completed.
func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, idempotencyKeyPrefix+key+":lock", "1", ttl).Result()
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, idempotencyKeyPrefix+key, value, ttl).Err()
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKeyPrefix+key+":lock").Err()
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryIdempotencyStore is the single-process fallback.
type MemoryIdempotencyStore struct {
	mu       sync.Mutex
	values   map[string]memoryEntry
	reserved map[string]time.Time
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{values: map[string]memoryEntry{}, reserved: map[string]time.Time{}}
}

func (s *MemoryIdempotencyStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, ok := s.reserved[key]; ok && time.Now().Before(exp) {
		return false, nil
	}
	s.reserved[key] = time.Now().Add(ttl)
	return true, nil
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values[key]
	if !ok || time.Now().After(e.expires) {
		delete(s.values, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = memoryEntry{value: append([]byte(nil), value...), expires: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reserved, key)
	return nil
}
