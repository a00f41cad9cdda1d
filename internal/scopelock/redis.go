package scopelock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still carries our token, so
// a lock that expired and was re-taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every API replica. Locks expire after ttl so
// a crashed holder cannot wedge a scope.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to redisURL and verifies the connection.
func NewRedis(redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient creates a Locker from an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{
		client: client,
		prefix: "termbase:reorder:",
		ttl:    ttl,
	}
}

func (r *Redis) key(scopeKey string) string {
	return r.prefix + scopeKey
}

func (r *Redis) Acquire(ctx context.Context, scopeKey string) (Release, error) {
	token := uuid.NewString()
	key := r.key(scopeKey)

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire scope lock: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}

	var (
		once       sync.Once
		releaseErr error
	)
	return func(ctx context.Context) error {
		once.Do(func() {
			if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
				releaseErr = fmt.Errorf("release scope lock: %w", err)
			}
		})
		return releaseErr
	}, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ping checks if Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
