package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a cross-process lock built on SET NX PX with a token-checked release.
// The TTL bounds how long a crashed holder can block others.
type Redis struct {
	client    redis.UniversalClient
	prefix    string
	ttl       time.Duration
	retryWait time.Duration
}

type RedisOption func(*Redis)

func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

func WithRetryWait(d time.Duration) RedisOption {
	return func(r *Redis) { r.retryWait = d }
}

func NewRedis(client redis.UniversalClient, ttl time.Duration, opts ...RedisOption) *Redis {
	if ttl <= 0 {
		ttl = 3 * time.Minute
	}
	r := &Redis{
		client:    client,
		prefix:    "lock:",
		ttl:       ttl,
		retryWait: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := r.prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, fullKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		t := time.NewTimer(r.retryWait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return func() {
		// release must not depend on the request context, which may be done
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.client, []string{fullKey}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", fullKey).Msg("failed to release lock")
		}
	}, nil
}

var _ Locker = (*Redis)(nil)
