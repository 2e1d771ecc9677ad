package scheduler

import (
	"context"
	"time"

	obslogger "github.com/smallbiznis/rfidtrack/internal/observability/logger"
	"go.uber.org/zap"
)

type jobRun struct {
	job       string
	runID     string
	startedAt time.Time
	rows      int
	failed    bool
}

type jobRunKey struct{}

func (r *jobRun) AddRows(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.rows += count
}

func (s *Scheduler) startJobRun(ctx context.Context, job string) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		startedAt: s.clock.Now(),
	}
	return context.WithValue(ctx, jobRunKey{}, run), run
}

func jobRunFromContext(ctx context.Context) *jobRun {
	if ctx == nil {
		return nil
	}
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	log := obslogger.WithContext(ctx, s.log)
	if run := jobRunFromContext(ctx); run != nil {
		log = log.With(zap.String("job", run.job), zap.String("run_id", run.runID))
	}
	return log
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	s.logger(ctx).Info("job finished",
		zap.Int("rows", run.rows),
		zap.Bool("failed", run.failed),
		zap.Duration("duration", s.clock.Now().Sub(run.startedAt)),
	)
}
