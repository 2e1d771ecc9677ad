package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeIdentifier trims and upper-cases an identifier-like value. A
// Caser holds state, so each call builds its own.
func NormalizeIdentifier(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	return cases.Upper(language.Und).String(v)
}

// NormalizeOptional returns nil for values that trim to empty.
func NormalizeOptional(v string) *string {
	n := NormalizeIdentifier(v)
	if n == "" {
		return nil
	}
	return &n
}

// TextOrNil keeps v verbatim and maps blank input to nil.
func TextOrNil(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}
