package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type ChangedSinceFilter struct {
	Since       time.Time
	CursorTagID string
	Limit       int
}

type Repository interface {
	FindByTagID(ctx context.Context, db *gorm.DB, tagID string) (*Tag, error)
	FindByLabel(ctx context.Context, db *gorm.DB, labelNumber string) (*Tag, error)
	FindByEPC(ctx context.Context, db *gorm.DB, epc string) (*Tag, error)

	// LockByTagID and LockByEPC take a row lock for the rest of the
	// transaction carried by db.
	LockByTagID(ctx context.Context, db *gorm.DB, tagID string) (*Tag, error)
	LockByEPC(ctx context.Context, db *gorm.DB, epc string) (*Tag, error)

	// LabelHolder returns the tag_id holding labelNumber, ignoring
	// excludeTagID, or "" when the label is free.
	LabelHolder(ctx context.Context, db *gorm.DB, labelNumber, excludeTagID string) (string, error)
	EPCHolder(ctx context.Context, db *gorm.DB, epc, excludeTagID string) (string, error)

	Insert(ctx context.Context, db *gorm.DB, tag *Tag) error
	Save(ctx context.Context, db *gorm.DB, tag *Tag) error

	ListChangedSince(ctx context.Context, db *gorm.DB, filter ChangedSinceFilter) ([]Tag, error)
}
