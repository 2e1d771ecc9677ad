package server

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rfidtrack/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/rfidtrack/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	rateLimitReasonDevice = "device-rate"
	rateLimitReasonAPIKey = "api-key-rate"
)

// WriteRateLimit throttles mutating routes per device, falling back to the
// API key when the client sends no X-Device-Id. Redis failures let the
// request through.
func (s *Server) WriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		subject, reason := rateLimitSubject(c)
		res, err := s.limiter.AllowWrite(ctx, subject)
		if err != nil {
			logger.FromContext(ctx).Warn("write rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			logger.FromContext(ctx).Warn("write rate limit exceeded",
				zap.String("reason", reason),
				zap.String("endpoint", endpoint),
			)
			recordRateLimitDenied(ctx, endpoint, reason, s.obsMetrics)

			retryAfter := int(res.RetryAfter.Seconds())
			if res.RetryAfter > 0 && retryAfter == 0 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-Rate-Limited-Reason", reason)
			AbortWithError(c, ErrRateLimited)
			return
		}

		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

func rateLimitSubject(c *gin.Context) (string, string) {
	if deviceID := strings.TrimSpace(c.GetHeader(HeaderDeviceID)); deviceID != "" {
		return "device:" + strings.ToUpper(deviceID), rateLimitReasonDevice
	}
	return "key:" + c.GetString(contextAPIKeyKey), rateLimitReasonAPIKey
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
