package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/rfidtrack/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyWriteSubject = "rfidtrack:write:%s"

// ErrRateLimited is returned to callers that exhausted their write bucket.
var ErrRateLimited = errors.New("rate_limited")

// WriteLimiter throttles mutating requests per subject, where the subject
// is a device id or a hashed API key. A nil limiter allows everything.
type WriteLimiter struct {
	bucket *TokenBucket
	limit  Limit
}

// NewRedisClient returns nil when rate limiting is disabled.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*redis.Client, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("rate limit redis not reachable", zap.String("addr", addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}

func NewWriteLimiter(client *redis.Client, cfg config.Config) (*WriteLimiter, error) {
	if client == nil {
		return nil, nil
	}
	limit := Limit{Rate: cfg.RateLimit.WriteRate, Burst: cfg.RateLimit.WriteBurst}
	if err := limit.validate(); err != nil {
		return nil, fmt.Errorf("write limiter: %w", err)
	}
	return &WriteLimiter{bucket: NewTokenBucket(client), limit: limit}, nil
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowWrite takes one token from the subject's bucket.
func (l *WriteLimiter) AllowWrite(ctx context.Context, subject string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}
	return l.bucket.Take(ctx, fmt.Sprintf(keyWriteSubject, subject), l.limit, 1)
}
