package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/smallbiznis/rfidtrack/pkg/db/pagination"
	"gorm.io/gorm"
)

// ReplayFilter matches an earlier verification with the same requested
// outcome from the same actor and device.
type ReplayFilter struct {
	TagID     string
	QtyAfter  int
	RackAfter *string
	DeviceID  string
	Actor     string
	Since     time.Time
}

type ListFilter struct {
	TagID   string
	Printed *bool
	Result  string
	Cursor  *Cursor
	Limit   int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Entry) error
	FindReplay(ctx context.Context, db *gorm.DB, filter ReplayFilter) (*Entry, error)
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Entry, error)
	MarkPrinted(ctx context.Context, db *gorm.DB, id int64, at time.Time) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Entry, error)
}

type ListRequest struct {
	pagination.Pagination
	TagID   string
	Printed *bool
	Result  string
}

type ListResponse struct {
	pagination.PageInfo
	Entries []Entry `json:"entries"`
}

type Service interface {
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	MarkPrinted(ctx context.Context, id string) (*Entry, error)
	RenderLabel(ctx context.Context, id string) (io.Reader, error)
}

var (
	ErrNotFound         = errors.New("audit_not_found")
	ErrInvalidID        = errors.New("invalid_audit_id")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidResult    = errors.New("invalid_result")
)
