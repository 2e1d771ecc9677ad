package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Result string

const (
	ResultNoChanges Result = "NO_CHANGES"
	ResultChanged   Result = "CHANGED"
)

// Entry is one verification event in the audit ledger. Entries are
// append-only apart from the printed flag.
type Entry struct {
	ID          snowflake.ID      `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	TagID       string            `gorm:"column:tag_id;size:64;not null;index:idx_rfid_tag_audits_tag_id_created_at,priority:1" json:"tag_id"`
	LabelNumber *string           `gorm:"column:label_number;size:64" json:"label_number"`
	ItemCode    string            `gorm:"column:item_code;size:64;not null" json:"item_code"`
	QtyBefore   int               `gorm:"column:qty_before;not null" json:"qty_before"`
	QtyAfter    int               `gorm:"column:qty_after;not null" json:"qty_after"`
	RackBefore  *string           `gorm:"column:rack_before;size:64" json:"rack_before"`
	RackAfter   *string           `gorm:"column:rack_after;size:64" json:"rack_after"`
	Result      string            `gorm:"column:result;size:16;not null" json:"result"`
	ChangeNotes string            `gorm:"column:change_notes;size:1024" json:"change_notes"`
	Changes     datatypes.JSONMap `gorm:"column:changes" json:"changes,omitempty"`
	Remark      *string           `gorm:"column:remark;size:512" json:"remark"`
	Printed     bool              `gorm:"column:printed;not null;default:false" json:"printed"`
	PrintedAt   *time.Time        `gorm:"column:printed_at" json:"printed_at"`
	DeviceID    string            `gorm:"column:device_id;size:64;not null" json:"device_id"`
	Actor       string            `gorm:"column:actor;size:64;not null" json:"actor"`
	CreatedAt   time.Time         `gorm:"column:created_at;not null;autoCreateTime:false;index:idx_rfid_tag_audits_tag_id_created_at,priority:2;index:idx_rfid_tag_audits_created_at_id,priority:1" json:"created_at"`
}

func (Entry) TableName() string { return "rfid_tag_audits" }

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}
