package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rfidtrack/internal/audit/domain"
	changelogdomain "github.com/smallbiznis/rfidtrack/internal/changelog/domain"
	"github.com/smallbiznis/rfidtrack/internal/clock"
	"github.com/smallbiznis/rfidtrack/internal/config"
	"github.com/smallbiznis/rfidtrack/internal/observability/metrics"
	tagdomain "github.com/smallbiznis/rfidtrack/internal/tag/domain"
	"github.com/smallbiznis/rfidtrack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// actionReplayed marks a verification that reused an earlier audit entry.
// Metrics count it as a replay rather than by its change log action.
const actionReplayed tagdomain.Action = "REPLAYED"

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	defaultChangesLimit = 100
	maxChangesLimit     = 1000
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Cfg       config.Config
	Clock     clock.Clock
	AreaRules *config.AreaRulesHolder
	Repo      tagdomain.Repository
	ChangeLog changelogdomain.Repository
	Audits    auditdomain.Repository

	Metrics         *metrics.Metrics         `optional:"true"`
	MutationMetrics *metrics.MutationMetrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	areaRules *config.AreaRulesHolder
	repo      tagdomain.Repository
	changeLog changelogdomain.Repository
	audits    auditdomain.Repository

	timeouts config.TimeoutConfig
	tags     config.TagConfig

	metrics         *metrics.Metrics
	mutationMetrics *metrics.MutationMetrics
}

func NewService(p Params) tagdomain.Service {
	areaRules := p.AreaRules
	if areaRules == nil {
		areaRules = config.NewStaticAreaRules(p.Cfg.Tags.RequiredAreas...)
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("tag.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		areaRules: areaRules,
		repo:      p.Repo,
		changeLog: p.ChangeLog,
		audits:    p.Audits,

		timeouts: p.Cfg.Timeouts,
		tags:     p.Cfg.Tags,

		metrics:         p.Metrics,
		mutationMetrics: p.MutationMetrics,
	}
}

func (s *Service) GetByTagID(ctx context.Context, tagID string) (*tagdomain.Response, error) {
	tagID = tagdomain.NormalizeIdentifier(tagID)
	if tagID == "" {
		return nil, tagdomain.ErrInvalidTagID
	}
	return s.lookup(ctx, func(ctx context.Context) (*tagdomain.Tag, error) {
		return s.repo.FindByTagID(ctx, s.db, tagID)
	})
}

func (s *Service) GetByLabel(ctx context.Context, labelNumber string) (*tagdomain.Response, error) {
	labelNumber = tagdomain.NormalizeIdentifier(labelNumber)
	if labelNumber == "" {
		return nil, tagdomain.ErrInvalidLabelNumber
	}
	return s.lookup(ctx, func(ctx context.Context) (*tagdomain.Tag, error) {
		return s.repo.FindByLabel(ctx, s.db, labelNumber)
	})
}

func (s *Service) GetByEPC(ctx context.Context, epc string) (*tagdomain.Response, error) {
	epc = tagdomain.NormalizeIdentifier(epc)
	if epc == "" {
		return nil, tagdomain.ErrInvalidEPC
	}
	return s.lookup(ctx, func(ctx context.Context) (*tagdomain.Tag, error) {
		return s.repo.FindByEPC(ctx, s.db, epc)
	})
}

func (s *Service) lookup(ctx context.Context, find func(ctx context.Context) (*tagdomain.Tag, error)) (*tagdomain.Response, error) {
	if err := db.Ping(ctx, s.db, s.timeouts.Connect); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeouts.Read)
	defer cancel()

	tag, err := find(ctx)
	if err != nil {
		return nil, db.TranslateErr(err)
	}
	if tag == nil {
		return nil, tagdomain.ErrNotFound
	}
	resp := tagdomain.ToResponse(*tag)
	return &resp, nil
}

// History returns the newest change-log entries first.
func (s *Service) History(ctx context.Context, tagID string, limit int) ([]changelogdomain.Entry, error) {
	tagID = tagdomain.NormalizeIdentifier(tagID)
	if tagID == "" {
		return nil, tagdomain.ErrInvalidTagID
	}
	if limit < 0 {
		return nil, tagdomain.ErrInvalidLimit
	}
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	if err := db.Ping(ctx, s.db, s.timeouts.Connect); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeouts.Read)
	defer cancel()

	tag, err := s.repo.FindByTagID(ctx, s.db, tagID)
	if err != nil {
		return nil, db.TranslateErr(err)
	}
	if tag == nil {
		return nil, tagdomain.ErrNotFound
	}

	entries, err := s.changeLog.ListByTag(ctx, s.db, tagID, limit)
	if err != nil {
		return nil, db.TranslateErr(err)
	}
	return entries, nil
}

// ListChangedSince pages through tags by (updated_at, tag_id). An empty
// cursor includes rows stamped exactly at since.
func (s *Service) ListChangedSince(ctx context.Context, req tagdomain.ListChangedSinceRequest) (*tagdomain.ListChangedSinceResponse, error) {
	limit := req.Limit
	if limit < 0 {
		return nil, tagdomain.ErrInvalidLimit
	}
	if limit == 0 {
		limit = defaultChangesLimit
	}
	if limit > maxChangesLimit {
		limit = maxChangesLimit
	}

	since := tagdomain.StoreTime(req.Since)
	cursor := tagdomain.NormalizeIdentifier(req.CursorTagID)

	if err := db.Ping(ctx, s.db, s.timeouts.Connect); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeouts.Read)
	defer cancel()

	tags, err := s.repo.ListChangedSince(ctx, s.db, tagdomain.ChangedSinceFilter{
		Since:       since,
		CursorTagID: cursor,
		Limit:       limit,
	})
	if err != nil {
		return nil, db.TranslateErr(err)
	}

	hasMore := len(tags) > limit
	if hasMore {
		tags = tags[:limit]
	}

	resp := &tagdomain.ListChangedSinceResponse{
		Tags:            make([]tagdomain.Response, 0, len(tags)),
		HasMore:         hasMore,
		NextSince:       tagdomain.FormatToken(since),
		NextCursorTagID: cursor,
	}
	for _, tag := range tags {
		resp.Tags = append(resp.Tags, tagdomain.ToResponse(tag))
	}
	if n := len(tags); n > 0 {
		resp.NextSince = tagdomain.FormatToken(tags[n-1].UpdatedAt)
		resp.NextCursorTagID = tags[n-1].TagID
	}
	return resp, nil
}

// mutate runs fn in one transaction under the write timeout. fn returns
// the change-log action it recorded, which only feeds metrics.
func (s *Service) mutate(ctx context.Context, operation string, fn func(ctx context.Context, tx *gorm.DB) (tagdomain.Action, error)) error {
	start := time.Now()

	if err := db.Ping(ctx, s.db, s.timeouts.Connect); err != nil {
		s.observe(ctx, operation, "", err, time.Since(start))
		return err
	}

	ctx, cancel := withTimeout(ctx, s.timeouts.Write)
	defer cancel()

	var action tagdomain.Action
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		action, err = fn(ctx, tx)
		return err
	})
	err = db.TranslateErr(err)

	s.observe(ctx, operation, action, err, time.Since(start))
	return err
}

func (s *Service) observe(ctx context.Context, operation string, action tagdomain.Action, err error, elapsed time.Duration) {
	outcome := outcomeOf(err)
	if action == actionReplayed {
		outcome = metrics.OutcomeReplayed
		action = ""
		s.metrics.RecordVerifyReplay(ctx)
	}
	s.metrics.RecordTagMutation(ctx, string(action), outcome)
	s.mutationMetrics.ObserveMutation(operation, string(action), outcome, elapsed)

	switch outcome {
	case metrics.OutcomeOK, metrics.OutcomeReplayed, metrics.OutcomeNotFound, metrics.OutcomeValidation:
	case metrics.OutcomeConflict:
		s.log.Info("tag mutation rejected",
			zap.String("operation", operation),
			zap.Error(err),
		)
	default:
		s.mutationMetrics.IncStoreError(operation, err)
		s.log.Warn("tag mutation failed",
			zap.String("operation", operation),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, tagdomain.ErrNotFound):
		return metrics.OutcomeNotFound
	case tagdomain.IsConflict(err):
		return metrics.OutcomeConflict
	case tagdomain.IsValidation(err):
		return metrics.OutcomeValidation
	case errors.Is(err, db.ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, db.ErrUnavailable):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeError
	}
}

// lockTag loads the row for update. The caller's transaction holds the
// lock until commit.
func (s *Service) lockTag(ctx context.Context, tx *gorm.DB, operation, tagID, epc string) (*tagdomain.Tag, error) {
	start := time.Now()
	var (
		tag *tagdomain.Tag
		err error
	)
	if tagID != "" {
		tag, err = s.repo.LockByTagID(ctx, tx, tagID)
	} else {
		tag, err = s.repo.LockByEPC(ctx, tx, epc)
	}
	s.mutationMetrics.ObserveLockWait(operation, time.Since(start))
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, tagdomain.ErrNotFound
	}
	return tag, nil
}

// reload re-reads the row inside the transaction so callers see what the
// store kept.
func (s *Service) reload(ctx context.Context, tx *gorm.DB, tagID string) (*tagdomain.Tag, error) {
	tag, err := s.repo.FindByTagID(ctx, tx, tagID)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, tagdomain.ErrNotFound
	}
	return tag, nil
}

func (s *Service) appendLog(ctx context.Context, tx *gorm.DB, before *tagdomain.Tag, after tagdomain.Tag, action tagdomain.Action, remark *string) error {
	qtyNew := after.Quantity
	entry := &changelogdomain.Entry{
		ID:             s.genID.Generate(),
		TagID:          after.TagID,
		EPC:            after.EPC,
		LabelNumber:    after.LabelNumber,
		ItemCode:       after.ItemCode,
		BatchNo:        after.BatchNo,
		Action:         string(action),
		QtyNew:         &qtyNew,
		ToRackLocation: after.RackLocation,
		AreaNew:        after.Area,
		Remark:         remark,
		UpdatedAt:      after.UpdatedAt,
		UpdatedBy:      after.UpdatedBy,
	}
	if before != nil {
		qtyOld := before.Quantity
		entry.QtyOld = &qtyOld
		entry.FromRackLocation = before.RackLocation
		entry.AreaOld = before.Area
	}
	return s.changeLog.Append(ctx, tx, entry)
}

// checkLocation enforces a rack location for areas that require one.
func (s *Service) checkLocation(area, rack *string) error {
	if area == nil || !s.areaRules.RequiresLocation(*area) {
		return nil
	}
	if rack == nil || strings.TrimSpace(*rack) == "" {
		return fmt.Errorf("%w: area %s", tagdomain.ErrRackLocationRequired, *area)
	}
	return nil
}

func (s *Service) checkLabelFree(ctx context.Context, tx *gorm.DB, label, tagID string) error {
	holder, err := s.repo.LabelHolder(ctx, tx, label, tagID)
	if err != nil {
		return err
	}
	if holder != "" {
		return fmt.Errorf("%w: label %s is held by tag %s", tagdomain.ErrLabelConflict, label, holder)
	}
	return nil
}

func (s *Service) checkEPCFree(ctx context.Context, tx *gorm.DB, epc, tagID string) error {
	holder, err := s.repo.EPCHolder(ctx, tx, epc, tagID)
	if err != nil {
		return err
	}
	if holder != "" {
		return fmt.Errorf("%w: epc %s is held by tag %s", tagdomain.ErrEPCConflict, epc, holder)
	}
	return nil
}

// translateDuplicate maps a unique-index violation that slipped past the
// explicit checks onto the matching conflict.
func translateDuplicate(err error, tagID string) error {
	if !db.IsDuplicateKeyErr(err) {
		return err
	}
	switch {
	case db.DuplicateKeyMentions(err, "label_number"):
		return fmt.Errorf("%w: label already in use", tagdomain.ErrLabelConflict)
	case db.DuplicateKeyMentions(err, "epc"):
		return fmt.Errorf("%w: epc already in use", tagdomain.ErrEPCConflict)
	default:
		return fmt.Errorf("%w: tag %s already registered", tagdomain.ErrDuplicateTag, tagID)
	}
}

// checkVersion compares the caller's token with the stored row version.
func checkVersion(prev *time.Time, current time.Time) error {
	if prev == nil {
		return nil
	}
	if !prev.Equal(tagdomain.StoreTime(current)) {
		return fmt.Errorf("%w: tag changed at %s", tagdomain.ErrStaleUpdate, tagdomain.FormatToken(current))
	}
	return nil
}

func parseVersion(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parsed, err := tagdomain.ParseToken(raw)
	if err != nil {
		return nil, tagdomain.ErrInvalidVersion
	}
	return &parsed, nil
}

func (s *Service) actorOr(actor string) string {
	if actor = strings.TrimSpace(actor); actor != "" {
		return actor
	}
	if s.tags.DefaultActor != "" {
		return s.tags.DefaultActor
	}
	return "system"
}

func (s *Service) deviceOr(deviceID string) string {
	if deviceID = strings.TrimSpace(deviceID); deviceID != "" {
		return deviceID
	}
	if s.tags.DefaultDevice != "" {
		return s.tags.DefaultDevice
	}
	return "unknown"
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
