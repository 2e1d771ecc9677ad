package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rfidtrack/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	HeaderAPIKey   = "X-API-Key"
	HeaderActor    = "X-Actor"
	HeaderDeviceID = "X-Device-Id"

	contextAPIKeyKey = "api_key_fingerprint"

	maskToken = "****"
)

// APIKeyRequired checks X-API-Key against the configured key in constant
// time.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(s.cfg.APIKey))

	return func(c *gin.Context) {
		presented := strings.TrimSpace(c.GetHeader(HeaderAPIKey))
		if presented == "" || len(expected) == 0 ||
			subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
			logger.FromContext(c.Request.Context()).Debug("api key rejected",
				zap.String("presented", maskSecret(presented)),
				zap.String("path", c.Request.URL.Path),
			)
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextAPIKeyKey, fingerprint(presented))
		c.Next()
	}
}

// maskSecret redacts a secret while keeping a minimal suffix for auditing.
func maskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= 4 {
		return prefix + maskToken
	}

	return prefix + maskToken + remainder[len(remainder)-4:]
}

func splitPrefix(value string) (string, string) {
	lastUnderscore := strings.LastIndex(value, "_")
	if lastUnderscore == -1 || lastUnderscore == len(value)-1 {
		return "", value
	}
	return value[:lastUnderscore+1], value[lastUnderscore+1:]
}

// fingerprint identifies a key in redis without storing it.
func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}
