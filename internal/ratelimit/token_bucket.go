package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// KEYS[1] bucket hash
// ARGV rate per second, burst, cost, ttl ms
// Returns allowed, whole tokens left, ms until cost tokens are available.
const takeScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])

local clock = redis.call("TIME")
local now = clock[1] * 1000 + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local last = tonumber(state[2]) or now
if now > last then
  tokens = math.min(burst, tokens + (now - last) * rate / 1000)
end

local allowed = 0
local wait = 0
if tokens >= cost then
  allowed = 1
  tokens = tokens - cost
else
  wait = math.ceil((cost - tokens) * 1000 / rate)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return {allowed, math.floor(tokens), wait}
`

// Limit is a refill rate in tokens per second and a bucket capacity.
type Limit struct {
	Rate  float64
	Burst int
}

func (l Limit) validate() error {
	if l.Rate <= 0 {
		return errors.New("rate limit rate must be positive")
	}
	if l.Burst <= 0 {
		return errors.New("rate limit burst must be positive")
	}
	return nil
}

// idleTTL keeps a bucket around for twice the time it takes to refill
// from empty, so idle subjects expire on their own.
func (l Limit) idleTTL() time.Duration {
	refill := time.Duration(math.Ceil(2*float64(l.Burst)/l.Rate)) * time.Second
	if refill < time.Second {
		return time.Second
	}
	return refill
}

// Decision is the outcome of one take against a bucket.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// TokenBucket keeps bucket state in redis and refills it inside a script,
// so every replica draws from the same bucket.
type TokenBucket struct {
	client *redis.Client
	take   *redis.Script
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client, take: redis.NewScript(takeScript)}
}

// Take draws cost tokens from the bucket at key. A denied take leaves the
// bucket untouched apart from the refill.
func (t *TokenBucket) Take(ctx context.Context, key string, limit Limit, cost int) (Decision, error) {
	if t == nil || t.client == nil {
		return Decision{}, errors.New("token bucket has no redis client")
	}
	if key == "" {
		return Decision{}, errors.New("token bucket key is empty")
	}
	if err := limit.validate(); err != nil {
		return Decision{}, err
	}
	if cost <= 0 || cost > limit.Burst {
		return Decision{}, fmt.Errorf("token bucket cost %d outside 1..%d", cost, limit.Burst)
	}

	reply, err := t.take.Run(ctx, t.client, []string{key},
		limit.Rate, limit.Burst, cost, limit.idleTTL().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(reply) != 3 {
		return Decision{}, fmt.Errorf("token bucket script returned %d values", len(reply))
	}

	return Decision{
		Allowed:    reply[0] == 1,
		Limit:      limit.Burst,
		Remaining:  int(reply[1]),
		RetryAfter: time.Duration(reply[2]) * time.Millisecond,
	}, nil
}
