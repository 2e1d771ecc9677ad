package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/smallbiznis/rfidtrack/internal/cache"
	"github.com/smallbiznis/rfidtrack/internal/catalog/domain"
	"github.com/smallbiznis/rfidtrack/internal/catalog/repository"
	"github.com/smallbiznis/rfidtrack/internal/clock"
	"github.com/smallbiznis/rfidtrack/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, domain.Service, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.BOMItem{}))

	rows := []domain.BOMItem{
		{ID: 1, Item: "batt-aa-01", ItemCat: "BATT"},
		{ID: 2, Item: "BATT-AA-01", ItemCat: "BATT"},
		{ID: 3, Item: "batt-aaa-02", ItemCat: "BATT"},
		{ID: 4, Item: "CELL-18650", ItemCat: "BATT"},
		{ID: 5, Item: "batt-cable", ItemCat: "WIRE"},
		{ID: 6, Item: "", ItemCat: "BATT"},
	}
	require.NoError(t, db.Create(&rows).Error)

	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Cfg:   config.Config{Catalog: config.CatalogConfig{ItemCategory: "batt"}},
		Repo:  repository.Provide(),
		Cache: cache.NewSuggestionCache(fake, 300*time.Second),
	})
	return db, svc, fake
}

func TestSuggestItems(t *testing.T) {
	_, svc, _ := setup(t)
	ctx := context.Background()

	items, err := svc.SuggestItems(ctx, "aa", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"BATT-AA-01", "BATT-AAA-02"}, items)

	items, err = svc.SuggestItems(ctx, "batt", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"BATT-AA-01"}, items)

	_, err = svc.SuggestItems(ctx, "  ", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)

	_, err = svc.SuggestItems(ctx, "aa", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)
}

func TestSuggestItems_CachedUntilTTL(t *testing.T) {
	db, svc, fake := setup(t)
	ctx := context.Background()

	items, err := svc.SuggestItems(ctx, "cell", 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"CELL-18650"}, items)

	require.NoError(t, db.Create(&domain.BOMItem{ID: 7, Item: "cell-21700", ItemCat: "BATT"}).Error)

	// Same query with different case hits the cache.
	items, err = svc.SuggestItems(ctx, "CELL", 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"CELL-18650"}, items)

	fake.Advance(301 * time.Second)
	items, err = svc.SuggestItems(ctx, "cell", 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"CELL-18650", "CELL-21700"}, items)
}

func TestListAllItems(t *testing.T) {
	_, svc, _ := setup(t)

	items, err := svc.ListAllItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BATT-AA-01", "BATT-AAA-02", "CELL-18650"}, items)
}
