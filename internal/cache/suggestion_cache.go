package cache

import (
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/rfidtrack/internal/clock"
)

const (
	DefaultSuggestionTTL = 300 * time.Second

	allItemsKey = "*all*"
)

// SuggestionCache stores item-code autocomplete results keyed by the
// upper-cased query and the requested limit.
type SuggestionCache interface {
	GetSuggestions(query string, limit int) ([]string, bool)
	SetSuggestions(query string, limit int, items []string)
	GetAllItems() ([]string, bool)
	SetAllItems(items []string)
}

type suggestionCache struct {
	items Cache[string, []string]
	ttl   time.Duration
}

// NewSuggestionCache returns an in-memory cache. A non-positive ttl falls
// back to DefaultSuggestionTTL.
func NewSuggestionCache(c clock.Clock, ttl time.Duration) SuggestionCache {
	if ttl <= 0 {
		ttl = DefaultSuggestionTTL
	}
	return &suggestionCache{
		items: NewTTLCacheWithClock[string, []string](c),
		ttl:   ttl,
	}
}

func (c *suggestionCache) GetSuggestions(query string, limit int) ([]string, bool) {
	return c.get(cacheKey(query, strconv.Itoa(limit)))
}

func (c *suggestionCache) SetSuggestions(query string, limit int, items []string) {
	c.items.Set(cacheKey(query, strconv.Itoa(limit)), cloneStrings(items), c.ttl)
}

func (c *suggestionCache) GetAllItems() ([]string, bool) {
	return c.get(allItemsKey)
}

func (c *suggestionCache) SetAllItems(items []string) {
	c.items.Set(allItemsKey, cloneStrings(items), c.ttl)
}

// get hands out a copy so callers cannot edit the shared entry.
func (c *suggestionCache) get(key string) ([]string, bool) {
	items, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	return cloneStrings(items), true
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToUpper(trimmed))
	}
	return strings.Join(values, "|")
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
