package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// BOMItem is one bill-of-materials line. Only item and item_cat are read.
type BOMItem struct {
	ID      int64  `gorm:"column:id;primaryKey"`
	Item    string `gorm:"column:item;size:128"`
	ItemCat string `gorm:"column:item_cat;size:32;index:idx_bom_item_cat"`
}

func (BOMItem) TableName() string { return "bom" }

type Repository interface {
	SearchItems(ctx context.Context, db *gorm.DB, category, query string, limit int) ([]string, error)
	ListItems(ctx context.Context, db *gorm.DB, category string) ([]string, error)
}

type Service interface {
	SuggestItems(ctx context.Context, query string, limit int) ([]string, error)
	ListAllItems(ctx context.Context) ([]string, error)
}

var (
	ErrInvalidQuery = errors.New("invalid_query")
	ErrInvalidLimit = errors.New("invalid_limit")
)
