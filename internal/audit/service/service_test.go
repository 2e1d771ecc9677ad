package service

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	auditdomain "github.com/smallbiznis/rfidtrack/internal/audit/domain"
	"github.com/smallbiznis/rfidtrack/internal/audit/repository"
	"github.com/smallbiznis/rfidtrack/internal/clock"
	"github.com/smallbiznis/rfidtrack/internal/config"
	"github.com/smallbiznis/rfidtrack/internal/labelprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	svc   auditdomain.Service
	repo  auditdomain.Repository
	clock *clock.FakeClock
	node  *snowflake.Node
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&auditdomain.Entry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	repo := repository.Provide()

	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Cfg:      config.Config{Timeouts: config.TimeoutConfig{Read: 3 * time.Second, Write: 4 * time.Second}},
		Clock:    fake,
		Repo:     repo,
		Renderer: labelprint.New(),
	})

	return &fixture{db: db, svc: svc, repo: repo, clock: fake, node: node}
}

func (f *fixture) seed(t *testing.T, tagID string, at time.Time) *auditdomain.Entry {
	t.Helper()
	rack := "R1"
	label := "LBL-" + tagID
	entry := &auditdomain.Entry{
		ID:          f.node.Generate(),
		TagID:       tagID,
		LabelNumber: &label,
		ItemCode:    "BATT-01",
		QtyBefore:   10,
		QtyAfter:    7,
		RackBefore:  &rack,
		RackAfter:   &rack,
		Result:      string(auditdomain.ResultChanged),
		ChangeNotes: "QTY: 10 -> 7",
		DeviceID:    "HH-01",
		Actor:       "alice",
		CreatedAt:   at,
	}
	require.NoError(t, f.repo.Insert(context.Background(), f.db, entry))
	return entry
}

func TestGet(t *testing.T) {
	f := setup(t)
	entry := f.seed(t, "T1", f.clock.Now())

	got, err := f.svc.Get(context.Background(), entry.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "T1", got.TagID)
	assert.Equal(t, 7, got.QtyAfter)
	assert.False(t, got.Printed)

	_, err = f.svc.Get(context.Background(), "not-a-number")
	assert.ErrorIs(t, err, auditdomain.ErrInvalidID)

	_, err = f.svc.Get(context.Background(), f.node.Generate().String())
	assert.ErrorIs(t, err, auditdomain.ErrNotFound)
}

func TestList_PagesNewestFirst(t *testing.T) {
	f := setup(t)
	base := f.clock.Now()
	for i := 0; i < 5; i++ {
		f.seed(t, "T1", base.Add(time.Duration(i)*time.Second))
	}
	f.seed(t, "T2", base)

	ctx := context.Background()
	req := auditdomain.ListRequest{TagID: "t1"}
	req.PageSize = 2

	seen := make([]time.Time, 0, 5)
	for page := 0; page < 5; page++ {
		resp, err := f.svc.List(ctx, req)
		require.NoError(t, err)
		for _, e := range resp.Entries {
			assert.Equal(t, "T1", e.TagID)
			seen = append(seen, e.CreatedAt)
		}
		if !resp.HasMore {
			break
		}
		require.NotEmpty(t, resp.NextPageToken)
		req.PageToken = resp.NextPageToken
	}

	require.Len(t, seen, 5)
	for i := 1; i < len(seen); i++ {
		assert.True(t, seen[i-1].After(seen[i]))
	}
}

func TestList_InvalidInput(t *testing.T) {
	f := setup(t)

	req := auditdomain.ListRequest{}
	req.PageToken = "%%%"
	_, err := f.svc.List(context.Background(), req)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)

	_, err = f.svc.List(context.Background(), auditdomain.ListRequest{Result: "maybe"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidResult)
}

func TestMarkPrinted_KeepsFirstPrintTime(t *testing.T) {
	f := setup(t)
	entry := f.seed(t, "T1", f.clock.Now())
	ctx := context.Background()

	first, err := f.svc.MarkPrinted(ctx, entry.ID.String())
	require.NoError(t, err)
	assert.True(t, first.Printed)
	require.NotNil(t, first.PrintedAt)
	printedAt := first.PrintedAt.UTC()

	f.clock.Advance(time.Hour)
	second, err := f.svc.MarkPrinted(ctx, entry.ID.String())
	require.NoError(t, err)
	require.NotNil(t, second.PrintedAt)
	assert.True(t, printedAt.Equal(second.PrintedAt.UTC()))

	printed := true
	resp, err := f.svc.List(ctx, auditdomain.ListRequest{Printed: &printed})
	require.NoError(t, err)
	assert.Len(t, resp.Entries, 1)

	_, err = f.svc.MarkPrinted(ctx, f.node.Generate().String())
	assert.ErrorIs(t, err, auditdomain.ErrNotFound)
}

func TestRenderLabel(t *testing.T) {
	f := setup(t)
	entry := f.seed(t, "T1", f.clock.Now())

	r, err := f.svc.RenderLabel(context.Background(), entry.ID.String())
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}
