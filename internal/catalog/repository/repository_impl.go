package repository

import (
	"context"

	"github.com/smallbiznis/rfidtrack/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// SearchItems expects query already upper-cased.
func (r *repo) SearchItems(ctx context.Context, db *gorm.DB, category, query string, limit int) ([]string, error) {
	items := []string{}
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT UPPER(item) AS item
		 FROM bom
		 WHERE item_cat = ? AND UPPER(item) LIKE ?
		 ORDER BY 1
		 LIMIT ?`,
		category,
		"%"+query+"%",
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, category string) ([]string, error) {
	items := []string{}
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT UPPER(item) AS item
		 FROM bom
		 WHERE item_cat = ? AND item IS NOT NULL AND item <> ''
		 ORDER BY 1`,
		category,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
