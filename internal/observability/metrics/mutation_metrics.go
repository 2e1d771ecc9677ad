package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	OutcomeOK          = "ok"
	OutcomeReplayed    = "replayed"
	OutcomeNotFound    = "not_found"
	OutcomeConflict    = "conflict"
	OutcomeValidation  = "validation"
	OutcomeTimeout     = "timeout"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

const (
	StoreReasonDeadlineExceeded     = "deadline_exceeded"
	StoreReasonLockTimeout          = "lock_timeout"
	StoreReasonSerializationFailure = "serialization_failure"
	StoreReasonUniqueViolation      = "unique_violation"
	StoreReasonUnknown              = "unknown"
)

// MutationMetrics tracks the tag mutation engine for dashboards scraped
// from /metrics.
type MutationMetrics struct {
	mutations   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lockWait    *prometheus.HistogramVec
	storeErrors *prometheus.CounterVec
}

var (
	mutationMetricsOnce sync.Once
	mutationMetrics     *MutationMetrics
)

// MutationsWithConfig returns the process-wide mutation metrics using
// config labels. Only the first call's config is used.
func MutationsWithConfig(cfg Config) *MutationMetrics {
	mutationMetricsOnce.Do(func() {
		mutationMetrics = NewMutationMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return mutationMetrics
}

// NewMutationMetrics registers the collectors on registerer.
func NewMutationMetrics(registerer prometheus.Registerer, cfg Config) *MutationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	constLabels := constLabels(cfg)

	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "rfidtrack_tag_mutations_total",
		Help:        "Tag mutations by change-log action and outcome.",
		ConstLabels: constLabels,
	}, []string{"action", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "rfidtrack_tag_mutation_duration_seconds",
		Help:        "Tag mutation latency including the transaction.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 4},
		ConstLabels: constLabels,
	}, []string{"operation"})
	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "rfidtrack_tag_lock_wait_seconds",
		Help:        "Time spent acquiring the tag row lock.",
		Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		ConstLabels: constLabels,
	}, []string{"operation"})
	storeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "rfidtrack_store_errors_total",
		Help:        "Store errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})

	registerer.MustRegister(mutations, duration, lockWait, storeErrors)

	return &MutationMetrics{
		mutations:   mutations,
		duration:    duration,
		lockWait:    lockWait,
		storeErrors: storeErrors,
	}
}

// ObserveMutation records one finished mutation.
func (m *MutationMetrics) ObserveMutation(operation, action, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if action == "" {
		action = "none"
	}
	m.mutations.WithLabelValues(action, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveLockWait records how long SELECT ... FOR UPDATE took.
func (m *MutationMetrics) ObserveLockWait(operation string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if elapsed < 0 {
		elapsed = 0
	}
	m.lockWait.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// IncStoreError counts an error that came from the store rather than
// from validation.
func (m *MutationMetrics) IncStoreError(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.storeErrors.WithLabelValues(operation, ClassifyStoreReason(err)).Inc()
}

// ClassifyStoreReason maps store errors to low-cardinality reasons.
func ClassifyStoreReason(err error) string {
	if err == nil {
		return StoreReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return StoreReasonDeadlineExceeded
	}
	if isLockTimeout(err) {
		return StoreReasonLockTimeout
	}
	if hasPGCode(err, "40001") || hasMySQLCode(err, 1213) {
		return StoreReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") || hasMySQLCode(err, 1062) {
		return StoreReasonUniqueViolation
	}
	return StoreReasonUnknown
}

func isLockTimeout(err error) bool {
	return hasPGCode(err, "55P03") || hasMySQLCode(err, 1205) ||
		strings.Contains(strings.ToLower(err.Error()), "database is locked")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func hasMySQLCode(err error, code uint16) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == code
	}
	return false
}

func constLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "rfidtrack"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}
