package domain

import (
	"context"
	"errors"
	"time"

	changelogdomain "github.com/smallbiznis/rfidtrack/internal/changelog/domain"
	"github.com/smallbiznis/rfidtrack/pkg/db"
)

type RegisterRequest struct {
	TagID           string  `json:"tag_id"`
	EPC             string  `json:"epc"`
	LabelNumber     string  `json:"label_number"`
	ManufacturingNo string  `json:"manufacturing_no"`
	FinishedGoodNo  string  `json:"finished_good_no"`
	ItemCode        string  `json:"item_code"`
	BatchNo         string  `json:"batch_no"`
	Quantity        *int    `json:"quantity"`
	CartonQuantity  *int    `json:"carton_quantity"`
	RackLocation    string  `json:"rack_location"`
	Area            string  `json:"area"`
	Remark          *string `json:"remark"`
	Actor           string  `json:"actor"`
}

// UpdateRequest carries a partial field set. Omitted fields stay as they are.
type UpdateRequest struct {
	TagID         string `json:"-"`
	PrevUpdatedAt string `json:"prev_updated_at"`
	Action        string `json:"action"`
	Actor         string `json:"actor"`

	EPC             Field[string] `json:"epc"`
	LabelNumber     Field[string] `json:"label_number"`
	ManufacturingNo Field[string] `json:"manufacturing_no"`
	FinishedGoodNo  Field[string] `json:"finished_good_no"`
	ItemCode        Field[string] `json:"item_code"`
	BatchNo         Field[string] `json:"batch_no"`
	Quantity        Field[int]    `json:"quantity"`
	CartonQuantity  Field[int]    `json:"carton_quantity"`
	RackLocation    Field[string] `json:"rack_location"`
	Area            Field[string] `json:"area"`
	Remark          Field[string] `json:"remark"`
}

// VerifyRequest records a physical verification. Only quantity and rack
// location can change.
type VerifyRequest struct {
	TagID        string        `json:"tag_id"`
	EPC          string        `json:"epc"`
	Quantity     *int          `json:"quantity"`
	RackLocation Field[string] `json:"rack_location"`
	Remark       string        `json:"remark"`
	Actor        string        `json:"actor"`
	DeviceID     string        `json:"device_id"`
}

type VerifyResponse struct {
	AuditID      string   `json:"audit_id"`
	Result       string   `json:"result"`
	ChangeNotes  string   `json:"change_notes"`
	Deduplicated bool     `json:"deduplicated"`
	Tag          Response `json:"tag"`
}

type MarkAuditedRequest struct {
	TagID  string `json:"-"`
	Actor  string `json:"actor"`
	Remark string `json:"remark"`
}

type DeregisterRequest struct {
	TagID         string `json:"-"`
	PrevUpdatedAt string `json:"prev_updated_at"`
	Actor         string `json:"actor"`
	Remark        string `json:"remark"`
}

type ReuseRequest struct {
	TagID          string `json:"-"`
	PrevUpdatedAt  string `json:"prev_updated_at"`
	NewLabelNumber string `json:"new_label_number"`
	Actor          string `json:"actor"`
	Remark         string `json:"remark"`
}

type ListChangedSinceRequest struct {
	Since       time.Time
	CursorTagID string
	Limit       int
}

type ListChangedSinceResponse struct {
	Tags            []Response `json:"tags"`
	NextSince       string     `json:"next_since,omitempty"`
	NextCursorTagID string     `json:"next_cursor_tag_id,omitempty"`
	HasMore         bool       `json:"has_more"`
}

type Service interface {
	GetByTagID(ctx context.Context, tagID string) (*Response, error)
	GetByLabel(ctx context.Context, labelNumber string) (*Response, error)
	GetByEPC(ctx context.Context, epc string) (*Response, error)

	Register(ctx context.Context, req RegisterRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error)
	MarkAudited(ctx context.Context, req MarkAuditedRequest) (*Response, error)
	Deregister(ctx context.Context, req DeregisterRequest) (*Response, error)
	Reuse(ctx context.Context, req ReuseRequest) (*Response, error)

	History(ctx context.Context, tagID string, limit int) ([]changelogdomain.Entry, error)
	ListChangedSince(ctx context.Context, req ListChangedSinceRequest) (*ListChangedSinceResponse, error)
}

var (
	ErrNotFound = errors.New("tag_not_found")

	ErrDuplicateTag  = errors.New("duplicate_tag")
	ErrLabelConflict = errors.New("label_number_conflict")
	ErrEPCConflict   = errors.New("epc_conflict")
	ErrStaleUpdate   = errors.New("stale_update")

	ErrRackLocationRequired  = errors.New("rack_location_required")
	ErrInvalidTagID          = errors.New("invalid_tag_id")
	ErrInvalidEPC            = errors.New("invalid_epc")
	ErrInvalidLabelNumber    = errors.New("invalid_label_number")
	ErrInvalidItemCode       = errors.New("invalid_item_code")
	ErrInvalidQuantity       = errors.New("invalid_quantity")
	ErrInvalidCartonQuantity = errors.New("invalid_carton_quantity")
	ErrInvalidAction         = errors.New("invalid_action")
	ErrInvalidVersion        = errors.New("invalid_prev_updated_at")
	ErrInvalidCursor         = errors.New("invalid_cursor")
	ErrInvalidLimit          = errors.New("invalid_limit")

	ErrTimeout     = db.ErrTimeout
	ErrUnavailable = db.ErrUnavailable
)

func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrRackLocationRequired),
		errors.Is(err, ErrInvalidTagID),
		errors.Is(err, ErrInvalidEPC),
		errors.Is(err, ErrInvalidLabelNumber),
		errors.Is(err, ErrInvalidItemCode),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidCartonQuantity),
		errors.Is(err, ErrInvalidAction),
		errors.Is(err, ErrInvalidVersion),
		errors.Is(err, ErrInvalidCursor),
		errors.Is(err, ErrInvalidLimit):
		return true
	default:
		return false
	}
}

func IsConflict(err error) bool {
	switch {
	case errors.Is(err, ErrDuplicateTag),
		errors.Is(err, ErrLabelConflict),
		errors.Is(err, ErrEPCConflict),
		errors.Is(err, ErrStaleUpdate):
		return true
	default:
		return false
	}
}
