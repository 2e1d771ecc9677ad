package service

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rfidtrack/internal/audit/domain"
	"github.com/smallbiznis/rfidtrack/internal/clock"
	"github.com/smallbiznis/rfidtrack/internal/config"
	"github.com/smallbiznis/rfidtrack/internal/labelprint"
	"github.com/smallbiznis/rfidtrack/pkg/db"
	"github.com/smallbiznis/rfidtrack/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Clock    clock.Clock
	Repo     auditdomain.Repository
	Renderer labelprint.Renderer
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     auditdomain.Repository
	renderer labelprint.Renderer
	timeouts config.TimeoutConfig
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("audit.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		renderer: p.Renderer,
		timeouts: p.Cfg.Timeouts,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*auditdomain.Entry, error) {
	auditID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeouts.Read)
	defer cancel()

	entry, err := s.repo.FindByID(ctx, s.db, auditID.Int64())
	if err != nil {
		return nil, db.TranslateErr(err)
	}
	if entry == nil {
		return nil, auditdomain.ErrNotFound
	}
	return entry, nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	var cursor *auditdomain.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.At)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.Cursor{
			ID:        id,
			CreatedAt: createdAt,
		}
	}

	result := strings.ToUpper(strings.TrimSpace(req.Result))
	switch auditdomain.Result(result) {
	case "", auditdomain.ResultChanged, auditdomain.ResultNoChanges:
	default:
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidResult
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	ctx, cancel := withTimeout(ctx, s.timeouts.Read)
	defer cancel()

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		TagID:   strings.ToUpper(strings.TrimSpace(req.TagID)),
		Printed: req.Printed,
		Result:  result,
		Cursor:  cursor,
		Limit:   pageSize,
	})
	if err != nil {
		return auditdomain.ListResponse{}, db.TranslateErr(err)
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *auditdomain.Entry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID: item.ID.String(),
			At: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	entries := make([]auditdomain.Entry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}

	return auditdomain.ListResponse{PageInfo: pageInfo, Entries: entries}, nil
}

// MarkPrinted flags the entry's label as printed. Printing twice keeps
// the first printed_at.
func (s *Service) MarkPrinted(ctx context.Context, id string) (*auditdomain.Entry, error) {
	auditID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeouts.Write)
	defer cancel()

	var entry *auditdomain.Entry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// MySQL reports zero affected rows for a repeat print, so existence
		// is settled by the read that follows.
		if _, err := s.repo.MarkPrinted(ctx, tx, auditID.Int64(), s.clock.Now().UTC().Truncate(time.Microsecond)); err != nil {
			return err
		}
		var err error
		entry, err = s.repo.FindByID(ctx, tx, auditID.Int64())
		if err != nil {
			return err
		}
		if entry == nil {
			return auditdomain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, db.TranslateErr(err)
	}

	s.log.Info("audit label printed", zap.String("audit_id", auditID.String()), zap.String("tag_id", entry.TagID))
	return entry, nil
}

func (s *Service) RenderLabel(ctx context.Context, id string) (io.Reader, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	label := labelprint.Label{
		TagID:       entry.TagID,
		ItemCode:    entry.ItemCode,
		Quantity:    strconv.Itoa(entry.QtyAfter),
		Result:      entry.Result,
		ChangeNotes: entry.ChangeNotes,
		VerifiedAt:  entry.CreatedAt.UTC().Format(time.RFC3339),
		Actor:       entry.Actor,
	}
	if entry.LabelNumber != nil {
		label.LabelNumber = *entry.LabelNumber
	}
	if entry.RackAfter != nil {
		label.RackLocation = *entry.RackAfter
	}

	return s.renderer.Render(ctx, label)
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, auditdomain.ErrInvalidID
	}
	return id, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
