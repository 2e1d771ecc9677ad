package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/rfidtrack/internal/clock"
	"github.com/smallbiznis/rfidtrack/internal/config"
	obsmetrics "github.com/smallbiznis/rfidtrack/internal/observability/metrics"
	"github.com/smallbiznis/rfidtrack/internal/ratelimit"
	tagdomain "github.com/smallbiznis/rfidtrack/internal/tag/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	exportPageSize = 1000
	kindDownload   = "download"
	kindArchive    = "archive"
	archiveLockKey = "rfidtrack:export:archive"
	archiveLockTTL = 2 * time.Minute
)

var (
	ErrArchiveDisabled   = errors.New("export_archive_disabled")
	ErrArchiveInProgress = errors.New("export_archive_in_progress")
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Clock   clock.Clock
	Tags    tagdomain.Service
	Sink    ObjectSink          `optional:"true"`
	Locker  *ratelimit.Locker   `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	clock   clock.Clock
	tags    tagdomain.Service
	sink    ObjectSink
	locker  *ratelimit.Locker
	metrics *obsmetrics.Metrics
	prefix  string
}

type Workbook struct {
	Filename string
	Body     []byte
	Rows     int
}

type ArchiveResult struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	Rows     int    `json:"rows"`
}

func NewService(p Params) *Service {
	return &Service{
		log:     p.Log.Named("export.service"),
		clock:   p.Clock,
		tags:    p.Tags,
		sink:    p.Sink,
		locker:  p.Locker,
		metrics: p.Metrics,
		prefix:  strings.Trim(p.Cfg.Export.Prefix, "/"),
	}
}

// ChangedTags walks the change feed from since to the end and renders it.
func (s *Service) ChangedTags(ctx context.Context, since time.Time) (*Workbook, error) {
	wb, err := s.build(ctx, since)
	s.metrics.RecordExport(ctx, kindDownload, err)
	return wb, err
}

func (s *Service) build(ctx context.Context, since time.Time) (*Workbook, error) {
	tags, err := s.collect(ctx, since)
	if err != nil {
		return nil, err
	}

	body, err := BuildChangedTagsWorkbook(tags)
	if err != nil {
		return nil, err
	}

	return &Workbook{
		Filename: s.objectName(since) + ".xlsx",
		Body:     body,
		Rows:     len(tags),
	}, nil
}

// Archive uploads the changed-tags workbook to the object sink. Only one
// archive runs at a time when a redis locker is available.
func (s *Service) Archive(ctx context.Context, since time.Time) (*ArchiveResult, error) {
	if s.sink == nil {
		return nil, ErrArchiveDisabled
	}

	if s.locker.Enabled() {
		lease, ok, err := s.locker.Acquire(ctx, archiveLockKey, archiveLockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrArchiveInProgress
		}
		defer func() {
			if err := lease.Release(context.Background()); err != nil {
				s.log.Warn("failed to release archive lock", zap.Error(err))
			}
		}()
	}

	wb, err := s.build(ctx, since)
	if err != nil {
		s.metrics.RecordExport(ctx, kindArchive, err)
		return nil, err
	}

	key := s.objectKey(wb.Filename)
	err = s.sink.Put(ctx, key, wb.Body, contentTypeXLSX)
	s.metrics.RecordExport(ctx, kindArchive, err)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	s.log.Info("changed tags archived",
		zap.String("key", key),
		zap.Int("rows", wb.Rows),
		zap.Time("since", since),
	)

	return &ArchiveResult{
		Key:      key,
		Location: s.sink.Location(key),
		Rows:     wb.Rows,
	}, nil
}

func (s *Service) collect(ctx context.Context, since time.Time) ([]tagdomain.Response, error) {
	var (
		out    []tagdomain.Response
		cursor string
	)
	for {
		page, err := s.tags.ListChangedSince(ctx, tagdomain.ListChangedSinceRequest{
			Since:       since,
			CursorTagID: cursor,
			Limit:       exportPageSize,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page.Tags...)
		if !page.HasMore || len(page.Tags) == 0 {
			return out, nil
		}

		next, err := tagdomain.ParseToken(page.NextSince)
		if err != nil {
			return nil, err
		}
		since = next
		cursor = page.NextCursorTagID
	}
}

func (s *Service) objectName(since time.Time) string {
	now := s.clock.Now().UTC()
	return slug.Make(fmt.Sprintf(
		"changed tags since %s at %s",
		since.UTC().Format("20060102T150405Z"),
		now.Format("20060102T150405Z"),
	))
}

func (s *Service) objectKey(filename string) string {
	dated := s.clock.Now().UTC().Format("2006/01/02") + "/" + filename
	if s.prefix == "" {
		return dated
	}
	return s.prefix + "/" + dated
}
