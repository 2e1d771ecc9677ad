package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/rfidtrack/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	mr.SetTime(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWriteLimiter_RefillsOverTime(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	limiter, err := NewWriteLimiter(client, config.Config{
		RateLimit: config.RateLimitConfig{WriteRate: 1, WriteBurst: 2},
	})
	require.NoError(t, err)
	require.True(t, limiter.Enabled())

	for i := 0; i < 2; i++ {
		res, err := limiter.AllowWrite(ctx, "HH-01")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2, res.Limit)
	}

	res, err := limiter.AllowWrite(ctx, "HH-01")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)

	// Other devices have their own bucket.
	res, err = limiter.AllowWrite(ctx, "HH-02")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	mr.SetTime(time.Date(2026, 3, 1, 8, 0, 1, 0, time.UTC))
	res, err = limiter.AllowWrite(ctx, "HH-01")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestWriteLimiter_DisabledAllowsAll(t *testing.T) {
	limiter, err := NewWriteLimiter(nil, config.Config{})
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowWrite(context.Background(), "HH-01")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestWriteLimiter_RejectsBadConfig(t *testing.T) {
	_, client := setupRedis(t)
	_, err := NewWriteLimiter(client, config.Config{
		RateLimit: config.RateLimitConfig{WriteRate: 0, WriteBurst: 5},
	})
	assert.Error(t, err)
}

func TestTokenBucket_CostAndRetryAfter(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()
	bucket := NewTokenBucket(client)
	limit := Limit{Rate: 2, Burst: 4}

	d, err := bucket.Take(ctx, "rfidtrack:test", limit, 3)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	// One token left, three wanted at two per second.
	d, err = bucket.Take(ctx, "rfidtrack:test", limit, 3)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, time.Second, d.RetryAfter)
}

func TestTokenBucket_RejectsBadInput(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()
	bucket := NewTokenBucket(client)

	_, err := bucket.Take(ctx, "", Limit{Rate: 1, Burst: 1}, 1)
	assert.Error(t, err)
	_, err = bucket.Take(ctx, "k", Limit{Rate: 0, Burst: 1}, 1)
	assert.Error(t, err)
	_, err = bucket.Take(ctx, "k", Limit{Rate: 1, Burst: 2}, 3)
	assert.Error(t, err)

	var nilBucket *TokenBucket
	_, err = nilBucket.Take(ctx, "k", Limit{Rate: 1, Burst: 1}, 1)
	assert.Error(t, err)
}

func TestLimit_IdleTTL(t *testing.T) {
	assert.Equal(t, 4*time.Second, Limit{Rate: 1, Burst: 2}.idleTTL())
	assert.Equal(t, time.Second, Limit{Rate: 100, Burst: 1}.idleTTL())
}

func TestLocker_SingleHolder(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	locker := NewLocker(client)
	require.True(t, locker.Enabled())

	first, ok, err := locker.Acquire(ctx, "rfidtrack:export", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.Acquire(ctx, "rfidtrack:export", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists("rfidtrack:export"))

	second, ok, err := locker.Acquire(ctx, "rfidtrack:export", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, second)
}

func TestLocker_ExpiredLeaseCannotReleaseNewOwner(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	locker := NewLocker(client)

	stale, ok, err := locker.Acquire(ctx, "rfidtrack:export", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = locker.Acquire(ctx, "rfidtrack:export", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("rfidtrack:export"))
}

func TestLocker_Disabled(t *testing.T) {
	var locker *Locker
	assert.Nil(t, NewLocker(nil))
	assert.False(t, locker.Enabled())

	_, ok, err := locker.Acquire(context.Background(), "k", time.Second)
	assert.Error(t, err)
	assert.False(t, ok)

	var lease *Lease
	assert.NoError(t, lease.Release(context.Background()))
}
