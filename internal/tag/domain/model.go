package domain

import (
	"strings"
	"time"
)

// Tag is the current state of one physical RFID tag.
type Tag struct {
	TagID           string     `gorm:"column:tag_id;primaryKey;size:64;index:idx_rfid_tags_updated_at_tag_id,priority:2"`
	EPC             *string    `gorm:"column:epc;size:128;uniqueIndex:uq_rfid_tags_epc"`
	LabelNumber     *string    `gorm:"column:label_number;size:64;uniqueIndex:uq_rfid_tags_label_number"`
	ManufacturingNo *string    `gorm:"column:manufacturing_no;size:64"`
	FinishedGoodNo  *string    `gorm:"column:finished_good_no;size:64"`
	ItemCode        string     `gorm:"column:item_code;size:64;not null"`
	BatchNo         *string    `gorm:"column:batch_no;size:64"`
	Quantity        int        `gorm:"column:quantity;not null;default:0"`
	CartonQuantity  *int       `gorm:"column:carton_quantity"`
	RackLocation    *string    `gorm:"column:rack_location;size:64"`
	Area            *string    `gorm:"column:area;size:64"`
	Remark          *string    `gorm:"column:remark;size:512"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;not null;autoUpdateTime:false;index:idx_rfid_tags_updated_at_tag_id,priority:1"`
	UpdatedBy       string     `gorm:"column:updated_by;size:64;not null"`
	AuditAt         *time.Time `gorm:"column:audit_at"`
}

func (Tag) TableName() string { return "rfid_tags_current" }

// ItemCodeRetired marks a tag whose business fields were reset.
const ItemCodeRetired = "-"

// TokenLayout renders row versions at the microsecond precision every
// supported store keeps.
const TokenLayout = "2006-01-02T15:04:05.000000Z07:00"

var tokenLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// StoreTime truncates t to what the store round-trips.
func StoreTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func FormatToken(t time.Time) string {
	return StoreTime(t).Format(TokenLayout)
}

// ParseToken accepts the token format plus the plain SQL datetime forms
// older clients send back.
func ParseToken(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range tokenLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return StoreTime(parsed), nil
		}
	}
	return time.Time{}, ErrInvalidVersion
}

// NextUpdatedAt keeps updated_at strictly increasing for a row even when
// the clock stalls or steps back.
func NextUpdatedAt(previous, now time.Time) time.Time {
	now = StoreTime(now)
	previous = StoreTime(previous)
	if !now.After(previous) {
		return previous.Add(time.Microsecond)
	}
	return now
}

type Response struct {
	TagID           string  `json:"tag_id"`
	EPC             *string `json:"epc"`
	LabelNumber     *string `json:"label_number"`
	ManufacturingNo *string `json:"manufacturing_no"`
	FinishedGoodNo  *string `json:"finished_good_no"`
	ItemCode        string  `json:"item_code"`
	BatchNo         *string `json:"batch_no"`
	Quantity        int     `json:"quantity"`
	CartonQuantity  *int    `json:"carton_quantity"`
	RackLocation    *string `json:"rack_location"`
	Area            *string `json:"area"`
	Remark          *string `json:"remark"`
	UpdatedAt       string  `json:"updated_at"`
	UpdatedBy       string  `json:"updated_by"`
	AuditAt         *string `json:"audit_at"`
}

func ToResponse(t Tag) Response {
	resp := Response{
		TagID:           t.TagID,
		EPC:             t.EPC,
		LabelNumber:     t.LabelNumber,
		ManufacturingNo: t.ManufacturingNo,
		FinishedGoodNo:  t.FinishedGoodNo,
		ItemCode:        t.ItemCode,
		BatchNo:         t.BatchNo,
		Quantity:        t.Quantity,
		CartonQuantity:  t.CartonQuantity,
		RackLocation:    t.RackLocation,
		Area:            t.Area,
		Remark:          t.Remark,
		UpdatedAt:       FormatToken(t.UpdatedAt),
		UpdatedBy:       t.UpdatedBy,
	}
	if t.AuditAt != nil {
		auditAt := FormatToken(*t.AuditAt)
		resp.AuditAt = &auditAt
	}
	return resp
}
