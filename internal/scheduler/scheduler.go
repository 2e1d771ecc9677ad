package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rfidtrack/internal/clock"
	"github.com/smallbiznis/rfidtrack/internal/export"
	obscontext "github.com/smallbiznis/rfidtrack/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	jobArchiveChangedTags = "archive_changed_tags"

	systemActor = "scheduler"
)

var ErrInvalidConfig = errors.New("invalid scheduler config")

// Archiver uploads the changed-tags workbook for everything touched since a
// point in time.
type Archiver interface {
	Archive(ctx context.Context, since time.Time) (*export.ArchiveResult, error)
}

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   Config          `optional:"true"`
	Exporter *export.Service `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	archiver Archiver

	// archivedThrough is the start of the last successful archive run. The
	// next run picks up from there so consecutive objects overlap by at most
	// the run duration.
	archivedThrough time.Time
}

func New(p Params) (*Scheduler, error) {
	var archiver Archiver
	if p.Exporter != nil {
		archiver = p.Exporter
	}
	return newScheduler(p.Log, p.GenID, p.Clock, p.Config, archiver)
}

func newScheduler(log *zap.Logger, genID *snowflake.Node, clk clock.Clock, cfg Config, archiver Archiver) (*Scheduler, error) {
	if log == nil || genID == nil || clk == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      cfg.withDefaults(),
		genID:    genID,
		clock:    clk,
		archiver: archiver,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = obscontext.WithActor(ctx, systemActor)
	ctx, run := s.startJobRun(ctx, name)

	err := fn(ctx)
	run.failed = err != nil
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	// Deadline is a soft failure, the next tick retries.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger(ctx).Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{jobArchiveChangedTags, s.archiver != nil && s.isJobEnabled(jobArchiveChangedTags), func(ctx context.Context) error {
			return s.runJob(ctx, jobArchiveChangedTags, s.cfg.JobTimeout, s.ArchiveChangedTagsJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if enabled == jobName {
			return true
		}
	}
	return false
}

// ArchiveChangedTagsJob uploads tags changed since the previous successful
// run, or within the lookback window on the first run. A run held by another
// replica is skipped without moving the cursor.
func (s *Scheduler) ArchiveChangedTagsJob(ctx context.Context) error {
	startedAt := s.clock.Now().UTC()
	since := s.archivedThrough
	if since.IsZero() {
		since = startedAt.Add(-s.cfg.ArchiveLookback)
	}

	res, err := s.archiver.Archive(ctx, since)
	switch {
	case errors.Is(err, export.ErrArchiveInProgress):
		s.logger(ctx).Info("archive held by another replica, skipping")
		return nil
	case err != nil:
		return err
	}

	jobRunFromContext(ctx).AddRows(res.Rows)
	s.archivedThrough = startedAt
	s.logger(ctx).Info("changed tags archived",
		zap.String("location", res.Location),
		zap.Time("since", since),
	)
	return nil
}
