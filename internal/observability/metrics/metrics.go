package metrics

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	decisionAllowed = "allowed"
	decisionDenied  = "denied"
)

// Metrics holds the domain counters. A nil *Metrics records nothing.
type Metrics struct {
	tagMutations  metric.Int64Counter
	verifyReplays metric.Int64Counter
	auditPrints   metric.Int64Counter
	exports       metric.Int64Counter
	writeLimits   metric.Int64Counter
}

type counterDef struct {
	name        string
	description string
	target      *metric.Int64Counter
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "rfidtrack"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	defs := []counterDef{
		{"rfidtrack_tag_mutations_total", "Tag mutations by action and outcome.", &m.tagMutations},
		{"rfidtrack_verify_replays_total", "Verifications answered from an earlier audit entry.", &m.verifyReplays},
		{"rfidtrack_audit_prints_total", "Audit labels confirmed as printed.", &m.auditPrints},
		{"rfidtrack_exports_total", "Changed-tag workbooks by kind and outcome.", &m.exports},
		{"rfidtrack_write_rate_limit_total", "Write rate limit decisions by endpoint.", &m.writeLimits},
	}
	for _, def := range defs {
		counter, err := meter.Int64Counter(def.name, metric.WithDescription(def.description))
		if err != nil {
			return nil, err
		}
		*def.target = counter
	}

	return m, nil
}

// RecordTagMutation counts one mutation. action is the classified action
// (REGISTER, MOVE, ...), outcome is ok or the error class.
func (m *Metrics) RecordTagMutation(ctx context.Context, action, outcome string) {
	if m == nil {
		return
	}
	m.tagMutations.Add(ctx, 1, withAttributes(
		attribute.String("action", strings.TrimSpace(action)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	))
}

func (m *Metrics) RecordVerifyReplay(ctx context.Context) {
	if m == nil {
		return
	}
	m.verifyReplays.Add(ctx, 1)
}

func (m *Metrics) RecordAuditPrint(ctx context.Context) {
	if m == nil {
		return
	}
	m.auditPrints.Add(ctx, 1)
}

// RecordExport counts a workbook download or archive upload.
func (m *Metrics) RecordExport(ctx context.Context, kind string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.exports.Add(ctx, 1, withAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.writeLimits.Add(ctx, 1, withAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("decision", decisionAllowed),
	))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	m.writeLimits.Add(ctx, 1, withAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("decision", decisionDenied),
		attribute.String("reason", strings.TrimSpace(reason)),
	))
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"action":   {},
	"outcome":  {},
	"kind":     {},
	"endpoint": {},
	"decision": {},
	"reason":   {},
}

// FilterAttributes drops labels outside the allow list so tag ids, EPCs and
// actors never become label values.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}

func withAttributes(attrs ...attribute.KeyValue) metric.AddOption {
	return metric.WithAttributes(FilterAttributes(attrs...)...)
}
