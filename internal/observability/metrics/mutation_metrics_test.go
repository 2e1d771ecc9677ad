package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifyStoreReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: StoreReasonDeadlineExceeded},
		{name: "pg_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: StoreReasonLockTimeout},
		{name: "mysql_lock_wait", err: &mysql.MySQLError{Number: 1205}, want: StoreReasonLockTimeout},
		{name: "sqlite_locked", err: errors.New("database is locked (5) (SQLITE_BUSY)"), want: StoreReasonLockTimeout},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: StoreReasonSerializationFailure},
		{name: "deadlock", err: fmt.Errorf("wrap: %w", &mysql.MySQLError{Number: 1213}), want: StoreReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: StoreReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: StoreReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyStoreReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestObserveMutation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMutationMetrics(registry, Config{ServiceName: "rfidtrack", Environment: "test"})

	m.ObserveMutation("update", "MOVE", OutcomeOK, 10*time.Millisecond)
	m.ObserveMutation("update", "MOVE", OutcomeOK, 20*time.Millisecond)
	m.ObserveMutation("update", "", OutcomeValidation, time.Millisecond)

	if got := testutil.ToFloat64(m.mutations.WithLabelValues("MOVE", OutcomeOK)); got != 2 {
		t.Fatalf("expected 2 MOVE mutations, got %v", got)
	}
	if got := testutil.ToFloat64(m.mutations.WithLabelValues("none", OutcomeValidation)); got != 1 {
		t.Fatalf("expected 1 rejected mutation, got %v", got)
	}
}

func TestIncStoreError(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMutationMetrics(registry, Config{})

	m.IncStoreError("verify", &pgconn.PgError{Code: "55P03"})
	m.IncStoreError("verify", nil)

	if got := testutil.ToFloat64(m.storeErrors.WithLabelValues("verify", StoreReasonLockTimeout)); got != 1 {
		t.Fatalf("expected 1 lock timeout, got %v", got)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{})

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/tags/by-tid", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tags/by-tid?tid=X", nil))

	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/tags/by-tid", "404")); got != 1 {
		t.Fatalf("expected 1 request, got %v", got)
	}
}
