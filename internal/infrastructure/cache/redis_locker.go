package cache

import (
	"context"
	"sync"
	"time"

	"mentor_payments/internal/usecase/interfaces"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type redisLockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// releaseScript deletes the key only while it still holds the caller's token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisLocker is a SetNX lock with a TTL. The TTL bounds how long a crashed
// holder can block the key. Each acquire stores a fresh token so a holder whose
// TTL lapsed cannot release its successor's lock.
type RedisLocker struct {
	client redisLockClient

	mu     sync.Mutex
	tokens map[string]string
}

var _ interfaces.ILocker = (*RedisLocker)(nil)

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return newRedisLocker(client)
}

func newRedisLocker(client redisLockClient) *RedisLocker {
	return &RedisLocker{client: client, tokens: make(map[string]string)}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return false, err
	}
	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	return l.client.Eval(ctx, releaseScript, []string{key}, token).Err()
}

// ConnectRedis accepts either a redis:// URL or a bare host:port.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
