// Package redisrate implements the sliding-window rate limiter on a Redis
// sorted set: trim-count-insert runs atomically in a single Lua script so
// the decision never races across concurrent callers sharing a key.
package redisrate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/gateway"
)

const window = 60 * time.Second

// Limiter implements gateway.RateLimiter against a shared Redis instance.
type Limiter struct {
	client *redis.Client
	now    func() time.Time
}

// New wraps client as a gateway.RateLimiter.
func New(client *redis.Client) *Limiter {
	return &Limiter{client: client, now: time.Now}
}

// Allow performs the sliding-window check: drop entries older than
// now-60s, count what remains, insert a new entry, and refresh the key's
// TTL — all atomically via a Lua script so the read-count-insert sequence
// cannot race across callers. On any Redis failure it fails open: the
// request is admitted and the error is returned for logging only.
func (l *Limiter) Allow(ctx context.Context, scope gateway.RateLimitScope, subject string, limit int) (gateway.RateLimitDecision, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", scope, subject)
	now := l.now()
	nowMillis := now.UnixMilli()
	cutoff := now.Add(-window).UnixMilli()
	member := uuid.NewString()

	res, err := slidingWindowScript.Run(ctx, l.client, []string{key},
		cutoff, nowMillis, member, int(window.Seconds())).Result()
	if err != nil {
		// Fail open: availability of the ledger outweighs strict rate
		// enforcement.
		return gateway.RateLimitDecision{Allowed: true}, fmt.Errorf("redisrate: store unreachable: %w", err)
	}

	count, ok := res.(int64)
	if !ok {
		return gateway.RateLimitDecision{Allowed: true}, fmt.Errorf("redisrate: unexpected script result %T", res)
	}

	if int(count) >= limit {
		return gateway.RateLimitDecision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   now.Add(window).Unix(),
		}, nil
	}
	return gateway.RateLimitDecision{
		Allowed:   true,
		Remaining: limit - int(count) - 1,
		ResetAt:   now.Add(window).Unix(),
	}, nil
}

// slidingWindowScript performs the full pre-insert count check atomically:
// it trims expired members, counts what is left, and only then inserts the
// caller's token, so the returned count reflects the window's state before
// this call's own token is added.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local cutoff = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local member = ARGV[3]
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', cutoff)
local count = redis.call('ZCARD', key)
redis.call('ZADD', key, now, member)
redis.call('EXPIRE', key, ttl)
return count
`)
