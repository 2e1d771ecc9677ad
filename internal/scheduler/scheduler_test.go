package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rfidtrack/internal/clock"
	"github.com/smallbiznis/rfidtrack/internal/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeArchiver struct {
	calls []time.Time
	err   error
}

func (f *fakeArchiver) Archive(ctx context.Context, since time.Time) (*export.ArchiveResult, error) {
	f.calls = append(f.calls, since)
	if f.err != nil {
		return nil, f.err
	}
	return &export.ArchiveResult{Key: "k", Location: "s3://b/k", Rows: 3}, nil
}

func newTestScheduler(t *testing.T, archiver Archiver) (*Scheduler, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))

	s, err := newScheduler(zap.NewNop(), node, clk, Config{ArchiveLookback: 6 * time.Hour}, archiver)
	require.NoError(t, err)
	return s, clk
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := newScheduler(nil, nil, nil, Config{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 24*time.Hour, cfg.ArchiveLookback)
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout)
}

func TestArchiveJob_AdvancesCursor(t *testing.T) {
	archiver := &fakeArchiver{}
	s, clk := newTestScheduler(t, archiver)

	require.NoError(t, s.RunOnce(context.Background()))
	clk.Advance(time.Hour)
	require.NoError(t, s.RunOnce(context.Background()))

	require.Len(t, archiver.calls, 2)
	assert.Equal(t, time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC), archiver.calls[0])
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), archiver.calls[1])
}

func TestArchiveJob_SkipsWhenHeldElsewhere(t *testing.T) {
	archiver := &fakeArchiver{err: export.ErrArchiveInProgress}
	s, clk := newTestScheduler(t, archiver)

	require.NoError(t, s.RunOnce(context.Background()))
	clk.Advance(time.Hour)
	require.NoError(t, s.RunOnce(context.Background()))

	require.Len(t, archiver.calls, 2)
	assert.Equal(t, time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC), archiver.calls[1])
	assert.True(t, s.archivedThrough.IsZero())
}

func TestArchiveJob_FailureKeepsCursor(t *testing.T) {
	archiver := &fakeArchiver{err: errors.New("bucket gone")}
	s, _ := newTestScheduler(t, archiver)

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), jobArchiveChangedTags)
	assert.True(t, s.archivedThrough.IsZero())
}

func TestRunOnce_NoArchiver(t *testing.T) {
	s, _ := newTestScheduler(t, nil)
	assert.NoError(t, s.RunOnce(context.Background()))
}

func TestRunOnce_JobFilter(t *testing.T) {
	archiver := &fakeArchiver{}
	s, _ := newTestScheduler(t, archiver)
	s.cfg.EnabledJobs = []string{"something_else"}

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, archiver.calls)
}

func TestRunJob_TimeoutIsSoft(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	err := s.runJob(context.Background(), "slow", time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.NoError(t, err)
}
