package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributes(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/tags/verify"),
		attribute.String("remark", "secret"),
		attribute.String("tag.action", "MOVE"),
	)

	assert.Len(t, attrs, 2)
	for _, attr := range attrs {
		assert.NotEqual(t, attribute.Key("remark"), attr.Key)
	}
}

func TestSafeError(t *testing.T) {
	err := fmt.Errorf("%w: label L1 held by T9", errors.New("label_number_conflict"))
	assert.EqualError(t, SafeError(err), "label_number_conflict")
	assert.Nil(t, SafeError(nil))
}

func TestClampRatio(t *testing.T) {
	assert.Equal(t, 0.0, clampRatio(-1))
	assert.Equal(t, 1.0, clampRatio(3))
	assert.Equal(t, 0.25, clampRatio(0.25))
}
