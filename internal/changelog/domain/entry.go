package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Entry is one immutable change-log row. REGISTER entries carry nil old
// values.
type Entry struct {
	ID               snowflake.ID `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	TagID            string       `gorm:"column:tag_id;size:64;not null;index:idx_rfid_tags_log_tag_id_updated_at,priority:1" json:"tag_id"`
	EPC              *string      `gorm:"column:epc;size:128" json:"epc"`
	LabelNumber      *string      `gorm:"column:label_number;size:64" json:"label_number"`
	ItemCode         string       `gorm:"column:item_code;size:64;not null" json:"item_code"`
	BatchNo          *string      `gorm:"column:batch_no;size:64" json:"batch_no"`
	Action           string       `gorm:"column:action;size:32;not null" json:"action"`
	QtyOld           *int         `gorm:"column:qty_old" json:"qty_old"`
	QtyNew           *int         `gorm:"column:qty_new" json:"qty_new"`
	FromRackLocation *string      `gorm:"column:from_rack_location;size:64" json:"from_rack_location"`
	ToRackLocation   *string      `gorm:"column:to_rack_location;size:64" json:"to_rack_location"`
	AreaOld          *string      `gorm:"column:area_old;size:64" json:"area_old"`
	AreaNew          *string      `gorm:"column:area_new;size:64" json:"area_new"`
	Remark           *string      `gorm:"column:remark;size:512" json:"remark"`
	UpdatedAt        time.Time    `gorm:"column:updated_at;not null;autoUpdateTime:false;index:idx_rfid_tags_log_tag_id_updated_at,priority:2" json:"updated_at"`
	UpdatedBy        string       `gorm:"column:updated_by;size:64;not null" json:"updated_by"`
}

func (Entry) TableName() string { return "rfid_tags_log" }

type Repository interface {
	Append(ctx context.Context, db *gorm.DB, entry *Entry) error
	ListByTag(ctx context.Context, db *gorm.DB, tagID string, limit int) ([]Entry, error)
}
