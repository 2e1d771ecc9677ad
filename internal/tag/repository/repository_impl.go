package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/rfidtrack/internal/tag/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByTagID(ctx context.Context, db *gorm.DB, tagID string) (*domain.Tag, error) {
	return r.findOne(db.WithContext(ctx).Where("tag_id = ?", tagID))
}

func (r *repo) FindByLabel(ctx context.Context, db *gorm.DB, labelNumber string) (*domain.Tag, error) {
	return r.findOne(db.WithContext(ctx).Where("label_number = ?", labelNumber))
}

func (r *repo) FindByEPC(ctx context.Context, db *gorm.DB, epc string) (*domain.Tag, error) {
	return r.findOne(db.WithContext(ctx).Where("epc = ?", epc))
}

func (r *repo) LockByTagID(ctx context.Context, db *gorm.DB, tagID string) (*domain.Tag, error) {
	return r.findOne(forUpdate(db.WithContext(ctx)).Where("tag_id = ?", tagID))
}

func (r *repo) LockByEPC(ctx context.Context, db *gorm.DB, epc string) (*domain.Tag, error) {
	return r.findOne(forUpdate(db.WithContext(ctx)).Where("epc = ?", epc))
}

func (r *repo) LabelHolder(ctx context.Context, db *gorm.DB, labelNumber, excludeTagID string) (string, error) {
	return r.holder(db.WithContext(ctx).Where("label_number = ?", labelNumber), excludeTagID)
}

func (r *repo) EPCHolder(ctx context.Context, db *gorm.DB, epc, excludeTagID string) (string, error) {
	return r.holder(db.WithContext(ctx).Where("epc = ?", epc), excludeTagID)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tag *domain.Tag) error {
	if tag == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO rfid_tags_current (
			tag_id, epc, label_number, manufacturing_no, finished_good_no,
			item_code, batch_no, quantity, carton_quantity, rack_location,
			area, remark, updated_at, updated_by, audit_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tag.TagID,
		tag.EPC,
		tag.LabelNumber,
		tag.ManufacturingNo,
		tag.FinishedGoodNo,
		tag.ItemCode,
		tag.BatchNo,
		tag.Quantity,
		tag.CartonQuantity,
		tag.RackLocation,
		tag.Area,
		tag.Remark,
		tag.UpdatedAt,
		tag.UpdatedBy,
		tag.AuditAt,
	).Error
}

// Save writes every mutable column. tag_id never changes.
func (r *repo) Save(ctx context.Context, db *gorm.DB, tag *domain.Tag) error {
	if tag == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`UPDATE rfid_tags_current SET
			epc = ?, label_number = ?, manufacturing_no = ?, finished_good_no = ?,
			item_code = ?, batch_no = ?, quantity = ?, carton_quantity = ?,
			rack_location = ?, area = ?, remark = ?, updated_at = ?,
			updated_by = ?, audit_at = ?
		 WHERE tag_id = ?`,
		tag.EPC,
		tag.LabelNumber,
		tag.ManufacturingNo,
		tag.FinishedGoodNo,
		tag.ItemCode,
		tag.BatchNo,
		tag.Quantity,
		tag.CartonQuantity,
		tag.RackLocation,
		tag.Area,
		tag.Remark,
		tag.UpdatedAt,
		tag.UpdatedBy,
		tag.AuditAt,
		tag.TagID,
	).Error
}

// ListChangedSince walks (updated_at, tag_id) in ascending order. It
// fetches one row past the limit so callers can tell whether more remain.
func (r *repo) ListChangedSince(ctx context.Context, db *gorm.DB, filter domain.ChangedSinceFilter) ([]domain.Tag, error) {
	stmt := db.WithContext(ctx).Model(&domain.Tag{})

	if cursor := strings.TrimSpace(filter.CursorTagID); cursor != "" {
		stmt = stmt.Where("((updated_at > ?) OR (updated_at = ? AND tag_id > ?))",
			filter.Since,
			filter.Since,
			cursor,
		)
	} else {
		stmt = stmt.Where("updated_at >= ?", filter.Since)
	}

	stmt = stmt.Order("updated_at asc, tag_id asc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var tags []domain.Tag
	if err := stmt.Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *repo) findOne(stmt *gorm.DB) (*domain.Tag, error) {
	var tags []domain.Tag
	if err := stmt.Model(&domain.Tag{}).Limit(1).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, nil
	}
	return &tags[0], nil
}

func (r *repo) holder(stmt *gorm.DB, excludeTagID string) (string, error) {
	if excludeTagID != "" {
		stmt = stmt.Where("tag_id <> ?", excludeTagID)
	}
	var tagIDs []string
	if err := stmt.Model(&domain.Tag{}).Limit(1).Pluck("tag_id", &tagIDs).Error; err != nil {
		return "", err
	}
	if len(tagIDs) == 0 {
		return "", nil
	}
	return tagIDs[0], nil
}

// forUpdate adds a row lock. SQLite serializes writers on the whole
// database and has no FOR UPDATE syntax.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
