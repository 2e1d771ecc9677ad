package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	auditdomain "github.com/smallbiznis/rfidtrack/internal/audit/domain"
	catalogdomain "github.com/smallbiznis/rfidtrack/internal/catalog/domain"
	"github.com/smallbiznis/rfidtrack/internal/config"
	"github.com/smallbiznis/rfidtrack/internal/observability"
	"github.com/smallbiznis/rfidtrack/internal/ratelimit"
	tagdomain "github.com/smallbiznis/rfidtrack/internal/tag/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testAPIKey = "rfid_secret_key_1234"

type fakeTagService struct {
	tagdomain.Service

	lastUpdate   tagdomain.UpdateRequest
	lastVerify   tagdomain.VerifyRequest
	lastRegister tagdomain.RegisterRequest
	lastChanges  tagdomain.ListChangedSinceRequest
	lastAudited  tagdomain.MarkAuditedRequest
	err          error
}

func (f *fakeTagService) GetByTagID(ctx context.Context, tagID string) (*tagdomain.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tagdomain.Response{TagID: strings.ToUpper(tagID), ItemCode: "BATT-AA-01", Quantity: 10}, nil
}

func (f *fakeTagService) Register(ctx context.Context, req tagdomain.RegisterRequest) (*tagdomain.Response, error) {
	f.lastRegister = req
	if f.err != nil {
		return nil, f.err
	}
	return &tagdomain.Response{TagID: req.TagID, ItemCode: req.ItemCode}, nil
}

func (f *fakeTagService) Update(ctx context.Context, req tagdomain.UpdateRequest) (*tagdomain.Response, error) {
	f.lastUpdate = req
	if f.err != nil {
		return nil, f.err
	}
	return &tagdomain.Response{TagID: req.TagID}, nil
}

func (f *fakeTagService) Verify(ctx context.Context, req tagdomain.VerifyRequest) (*tagdomain.VerifyResponse, error) {
	f.lastVerify = req
	if f.err != nil {
		return nil, f.err
	}
	return &tagdomain.VerifyResponse{AuditID: "1", Result: "NO_CHANGES"}, nil
}

func (f *fakeTagService) MarkAudited(ctx context.Context, req tagdomain.MarkAuditedRequest) (*tagdomain.Response, error) {
	f.lastAudited = req
	return &tagdomain.Response{TagID: req.TagID}, nil
}

func (f *fakeTagService) ListChangedSince(ctx context.Context, req tagdomain.ListChangedSinceRequest) (*tagdomain.ListChangedSinceResponse, error) {
	f.lastChanges = req
	return &tagdomain.ListChangedSinceResponse{Tags: []tagdomain.Response{}}, nil
}

type fakeAuditService struct {
	auditdomain.Service
}

func (f *fakeAuditService) Get(ctx context.Context, id string) (*auditdomain.Entry, error) {
	return nil, auditdomain.ErrInvalidID
}

func (f *fakeAuditService) RenderLabel(ctx context.Context, id string) (io.Reader, error) {
	return strings.NewReader("%PDF-1.4 fake"), nil
}

type fakeCatalogService struct {
	lastQuery string
	lastLimit int
}

func (f *fakeCatalogService) SuggestItems(ctx context.Context, query string, limit int) ([]string, error) {
	f.lastQuery = query
	f.lastLimit = limit
	if strings.TrimSpace(query) == "" {
		return nil, catalogdomain.ErrInvalidQuery
	}
	return []string{"BATT-AA-01"}, nil
}

func (f *fakeCatalogService) ListAllItems(ctx context.Context) ([]string, error) {
	return []string{"BATT-AA-01", "CELL-18650"}, nil
}

type harness struct {
	engine  *gin.Engine
	tags    *fakeTagService
	catalog *fakeCatalogService
}

func newHarness(t *testing.T, limiter *ratelimit.WriteLimiter) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	h := &harness{
		engine:  NewEngine(observability.Config{}, nil),
		tags:    &fakeTagService{},
		catalog: &fakeCatalogService{},
	}
	NewServer(ServerParams{
		Gin:        h.engine,
		Cfg:        config.Config{APIKey: testAPIKey, Timeouts: config.TimeoutConfig{Connect: time.Second}},
		DB:         db,
		TagSvc:     h.tags,
		AuditSvc:   &fakeAuditService{},
		CatalogSvc: h.catalog,
		Limiter:    limiter,
	})
	return h
}

func (h *harness) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderAPIKey, testAPIKey)
	for k, v := range headers {
		if v == "" {
			req.Header.Del(k)
			continue
		}
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthIsOpen(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/health", "", map[string]string{HeaderAPIKey: ""})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"db":"ok"}`, rec.Body.String())
}

func TestAPIKeyRequired(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/tags/by-tid?tid=t1", "", map[string]string{HeaderAPIKey: ""})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Type)

	rec = h.do(http.MethodGet, "/api/tags/by-tid?tid=t1", "", map[string]string{HeaderAPIKey: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodGet, "/api/tags/by-tid?tid=t1", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tag_id":"T1"`)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"not found", tagdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"timeout", fmt.Errorf("%w: lock wait", tagdomain.ErrTimeout), http.StatusGatewayTimeout, "timeout"},
		{"unavailable", tagdomain.ErrUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{"stale", tagdomain.ErrStaleUpdate, http.StatusConflict, "conflict"},
		{"internal", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.tags.err = tc.err

			rec := h.do(http.MethodGet, "/api/tags/by-tid?tid=T1", "", nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.typ, decodeError(t, rec).Type)
		})
	}
}

func TestConflictCarriesDetail(t *testing.T) {
	h := newHarness(t, nil)
	h.tags.err = fmt.Errorf("%w: label L-001 is held by tag T9", tagdomain.ErrLabelConflict)

	rec := h.do(http.MethodPost, "/api/tags/register", `{"tag_id":"T1","label_number":"L-001","item_code":"I","quantity":1}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "label_number_conflict: label L-001 is held by tag T9", decodeError(t, rec).Message)
}

func TestRackRequiredNamesField(t *testing.T) {
	h := newHarness(t, nil)
	h.tags.err = fmt.Errorf("%w: area WAREHOUSE", tagdomain.ErrRackLocationRequired)

	rec := h.do(http.MethodPatch, "/api/tags/T1", `{"prev_updated_at":"2026-03-01T08:00:00.000000Z","rack_location":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "rack_location", payload.Errors[0].Field)
	assert.Equal(t, "rack_location_required", payload.Errors[0].Code)
	assert.Equal(t, "rack_location_required: area WAREHOUSE", payload.Errors[0].Message)
}

func TestUpdateTag_BindsTriState(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPatch, "/api/tags/t1",
		`{"prev_updated_at":"2026-03-01T08:00:00.000000Z","quantity":5,"rack_location":"","area":null}`,
		map[string]string{HeaderActor: "alice"},
	)
	require.Equal(t, http.StatusOK, rec.Code)

	req := h.tags.lastUpdate
	assert.Equal(t, "t1", req.TagID)
	assert.Equal(t, "alice", req.Actor)
	qty, ok := req.Quantity.Value()
	assert.True(t, ok)
	assert.Equal(t, 5, qty)
	assert.True(t, req.RackLocation.IsClear())
	assert.True(t, req.Area.IsUnchanged())
	assert.True(t, req.LabelNumber.IsUnchanged())
}

func TestUpdateTag_RejectsMalformedBody(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPatch, "/api/tags/T1", `{"quantity":"many"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Errors[0].Code)
}

func TestVerifyTag_DeviceFromHeader(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/api/tags/verify", `{"tag_id":"T1","quantity":3,"actor":"bob"}`,
		map[string]string{HeaderDeviceID: "HH-07"},
	)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HH-07", h.tags.lastVerify.DeviceID)
	assert.Equal(t, "bob", h.tags.lastVerify.Actor)
	require.NotNil(t, h.tags.lastVerify.Quantity)
	assert.Equal(t, 3, *h.tags.lastVerify.Quantity)
}

func TestMarkAudited_EmptyBody(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/api/tags/T1/audited", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "T1", h.tags.lastAudited.TagID)
}

func TestListChangedTags_ParsesQuery(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/tags/changes?since=2026-03-01T08:00:00.000001Z&cursor_tag_id=T5&limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, time.Date(2026, 3, 1, 8, 0, 0, 1000, time.UTC).Equal(h.tags.lastChanges.Since))
	assert.Equal(t, "T5", h.tags.lastChanges.CursorTagID)
	assert.Equal(t, 10, h.tags.lastChanges.Limit)

	rec = h.do(http.MethodGet, "/api/tags/changes?since=yesterday", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "since", decodeError(t, rec).Errors[0].Field)
}

func TestAuditRoutes(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/audits/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_audit_id", decodeError(t, rec).Errors[0].Code)

	rec = h.do(http.MethodGet, "/api/audits/1/label.pdf", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
}

func TestCatalogRoutes(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/bom/items?q=aa&limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":["BATT-AA-01"]}`, rec.Body.String())
	assert.Equal(t, "aa", h.catalog.lastQuery)
	assert.Equal(t, 5, h.catalog.lastLimit)

	rec = h.do(http.MethodGet, "/api/bom/items", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "query", decodeError(t, rec).Errors[0].Field)

	rec = h.do(http.MethodGet, "/api/bom/all-items-lite", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":["BATT-AA-01","CELL-18650"]}`, rec.Body.String())
}

func TestExportRoutesWithoutService(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/tags/changes/export", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWriteRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.SetTime(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := ratelimit.NewWriteLimiter(client, config.Config{
		RateLimit: config.RateLimitConfig{WriteRate: 1, WriteBurst: 1},
	})
	require.NoError(t, err)
	h := newHarness(t, limiter)

	device := map[string]string{HeaderDeviceID: "hh-01"}
	rec := h.do(http.MethodPost, "/api/tags/T1/audited", "", device)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "/api/tags/T1/audited", "", device)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, rateLimitReasonDevice, rec.Header().Get("X-Rate-Limited-Reason"))
	assert.Equal(t, "rate_limited", decodeError(t, rec).Type)

	// Reads are never throttled.
	rec = h.do(http.MethodGet, "/api/tags/by-tid?tid=T1", "", device)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Another device has its own bucket.
	rec = h.do(http.MethodPost, "/api/tags/T1/audited", "", map[string]string{HeaderDeviceID: "hh-02"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret("  "))
	assert.Equal(t, "rfid_****", maskSecret("rfid_1234"))
	assert.Equal(t, "rfid_****3456", maskSecret("rfid_abcdef123456"))
	assert.Equal(t, "****", maskSecret("abc"))
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(tagdomain.ErrInvalidQuantity)
	assert.Equal(t, "validation_error", typ)
	assert.Equal(t, "invalid_quantity", code)

	typ, code = classifyErrorForLog(tagdomain.ErrEPCConflict)
	assert.Equal(t, "conflict", typ)
	assert.Equal(t, "conflict", code)
}
