package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	tagdomain "github.com/smallbiznis/rfidtrack/internal/tag/domain"
)

const dateOnlyLayout = "2006-01-02"

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseOptionalInt returns 0 for an empty value so services apply their
// default.
func parseOptionalInt(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	return strconv.Atoi(trimmed)
}

// parseSince accepts a row version token, RFC3339 or a bare date. An empty
// value or "0" means the beginning of time.
func parseSince(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == "0" {
		return time.Unix(0, 0).UTC(), nil
	}
	if parsed, err := tagdomain.ParseToken(trimmed); err == nil {
		return parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, errors.New("invalid_since")
}
