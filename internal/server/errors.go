package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/rfidtrack/internal/audit/domain"
	catalogdomain "github.com/smallbiznis/rfidtrack/internal/catalog/domain"
	"github.com/smallbiznis/rfidtrack/internal/export"
	"github.com/smallbiznis/rfidtrack/internal/ratelimit"
	tagdomain "github.com/smallbiznis/rfidtrack/internal/tag/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = ratelimit.ErrRateLimited
)

// validationSentinels is checked in order; the first match names the code.
var validationSentinels = []error{
	ErrInvalidRequest,
	tagdomain.ErrRackLocationRequired,
	tagdomain.ErrInvalidTagID,
	tagdomain.ErrInvalidEPC,
	tagdomain.ErrInvalidLabelNumber,
	tagdomain.ErrInvalidItemCode,
	tagdomain.ErrInvalidQuantity,
	tagdomain.ErrInvalidCartonQuantity,
	tagdomain.ErrInvalidAction,
	tagdomain.ErrInvalidVersion,
	tagdomain.ErrInvalidCursor,
	tagdomain.ErrInvalidLimit,
	auditdomain.ErrInvalidID,
	auditdomain.ErrInvalidPageToken,
	auditdomain.ErrInvalidResult,
	catalogdomain.ErrInvalidQuery,
	catalogdomain.ErrInvalidLimit,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{Errors: []ValidationError{{Field: field, Code: code, Message: message}}}
}

// statusRule maps a class of errors to a response. Rules are tried in
// order after validation errors.
type statusRule struct {
	match   func(error) bool
	status  int
	kind    string
	message string
	// detail echoes err.Error() instead of message.
	detail bool
}

func matchAny(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

var statusRules = []statusRule{
	{match: matchAny(ErrUnauthorized), status: http.StatusUnauthorized, kind: "unauthorized", message: "unauthorized"},
	// Conflicts carry the holder or version detail for the operator.
	{match: isConflictError, status: http.StatusConflict, kind: "conflict", detail: true},
	{match: matchAny(ErrNotFound, tagdomain.ErrNotFound, auditdomain.ErrNotFound, gorm.ErrRecordNotFound),
		status: http.StatusNotFound, kind: "not_found", message: "not found"},
	{match: matchAny(ErrRateLimited), status: http.StatusTooManyRequests, kind: "rate_limited", message: "too many requests"},
	{match: matchAny(tagdomain.ErrTimeout), status: http.StatusGatewayTimeout, kind: "timeout", message: "store timeout"},
	{match: matchAny(tagdomain.ErrUnavailable, ErrServiceUnavailable),
		status: http.StatusServiceUnavailable, kind: "service_unavailable", message: "service unavailable"},
	{match: matchAny(export.ErrArchiveDisabled),
		status: http.StatusServiceUnavailable, kind: "service_unavailable", message: "export archive is not configured"},
}

var internalError = errorPayload{Type: "internal_error", Message: "internal server error"}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, internalError
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, validationPayload(vErr.Errors...)
	}
	if code, ok := validationErrorCode(err); ok {
		return http.StatusBadRequest, validationPayload(ValidationError{
			Field:   validationErrorField(code),
			Code:    code,
			Message: validationErrorMessage(code, err),
		})
	}

	for _, rule := range statusRules {
		if !rule.match(err) {
			continue
		}
		payload := errorPayload{Type: rule.kind, Message: rule.message}
		if rule.detail {
			payload.Message = err.Error()
		}
		return rule.status, payload
	}
	return http.StatusInternalServerError, internalError
}

func validationPayload(fields ...ValidationError) errorPayload {
	return errorPayload{Type: "validation_error", Message: "validation error", Errors: fields}
}

// classifyErrorForLog returns the payload type and a stable code for the
// request log.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isConflictError(err error) bool {
	return tagdomain.IsConflict(err) || matchAny(ErrConflict, export.ErrArchiveInProgress)(err)
}

func validationErrorCode(err error) (string, bool) {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error(), true
		}
	}
	return "", false
}

func validationErrorField(code string) string {
	switch {
	case code == "invalid_request":
		return "request"
	case code == "invalid_page_token":
		return "page_token"
	case strings.HasSuffix(code, "_required"):
		return strings.TrimSuffix(code, "_required")
	case strings.HasPrefix(code, "invalid_"):
		return strings.TrimPrefix(code, "invalid_")
	default:
		return ""
	}
}

// validationErrorMessage prefers the wrapped detail, e.g. the area that
// demands a rack location.
func validationErrorMessage(code string, err error) string {
	if msg := err.Error(); msg != code {
		return msg
	}
	switch {
	case code == "invalid_request":
		return "invalid request"
	case strings.HasSuffix(code, "_required"):
		return "value is required"
	default:
		return "invalid value"
	}
}
