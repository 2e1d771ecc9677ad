package repository

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/rfidtrack/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO rfid_tag_audits (
			id, tag_id, label_number, item_code, qty_before, qty_after,
			rack_before, rack_after, result, change_notes, changes, remark,
			printed, printed_at, device_id, actor, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.TagID,
		entry.LabelNumber,
		entry.ItemCode,
		entry.QtyBefore,
		entry.QtyAfter,
		entry.RackBefore,
		entry.RackAfter,
		entry.Result,
		entry.ChangeNotes,
		entry.Changes,
		entry.Remark,
		entry.Printed,
		entry.PrintedAt,
		entry.DeviceID,
		entry.Actor,
		entry.CreatedAt,
	).Error
}

// FindReplay returns the newest entry inside the window whose requested
// outcome matches. A null rack compares equal to another null rack.
func (r *repo) FindReplay(ctx context.Context, db *gorm.DB, filter domain.ReplayFilter) (*domain.Entry, error) {
	rackAfter := ""
	if filter.RackAfter != nil {
		rackAfter = *filter.RackAfter
	}

	var entries []domain.Entry
	err := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("tag_id = ?", filter.TagID).
		Where("qty_after = ?", filter.QtyAfter).
		Where("COALESCE(rack_after, '') = ?", rackAfter).
		Where("device_id = ?", filter.DeviceID).
		Where("actor = ?", filter.Actor).
		Where("created_at >= ?", filter.Since).
		Order("created_at desc, id desc").
		Limit(1).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Entry, error) {
	var entries []domain.Entry
	err := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("id = ?", id).
		Limit(1).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// MarkPrinted keeps the first printed_at when a label is printed again.
func (r *repo) MarkPrinted(ctx context.Context, db *gorm.DB, id int64, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE rfid_tag_audits
		 SET printed = ?, printed_at = COALESCE(printed_at, ?)
		 WHERE id = ?`,
		true,
		at,
		id,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	stmt := db.WithContext(ctx).Model(&domain.Entry{})

	if tagID := strings.TrimSpace(filter.TagID); tagID != "" {
		stmt = stmt.Where("tag_id = ?", tagID)
	}
	if filter.Printed != nil {
		stmt = stmt.Where("printed = ?", *filter.Printed)
	}
	if result := strings.TrimSpace(filter.Result); result != "" {
		stmt = stmt.Where("result = ?", result)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("((created_at < ?) OR (created_at = ? AND id < ?))",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
