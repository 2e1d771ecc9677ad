package repository

import (
	"context"

	"github.com/smallbiznis/rfidtrack/internal/changelog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Append(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO rfid_tags_log (
			id, tag_id, epc, label_number, item_code, batch_no, action,
			qty_old, qty_new, from_rack_location, to_rack_location,
			area_old, area_new, remark, updated_at, updated_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.TagID,
		entry.EPC,
		entry.LabelNumber,
		entry.ItemCode,
		entry.BatchNo,
		entry.Action,
		entry.QtyOld,
		entry.QtyNew,
		entry.FromRackLocation,
		entry.ToRackLocation,
		entry.AreaOld,
		entry.AreaNew,
		entry.Remark,
		entry.UpdatedAt,
		entry.UpdatedBy,
	).Error
}

// ListByTag returns the newest entries first.
func (r *repo) ListByTag(ctx context.Context, db *gorm.DB, tagID string, limit int) ([]domain.Entry, error) {
	var entries []domain.Entry
	stmt := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("tag_id = ?", tagID).
		Order("updated_at desc, id desc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
