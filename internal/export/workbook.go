package export

import (
	"fmt"

	tagdomain "github.com/smallbiznis/rfidtrack/internal/tag/domain"
	"github.com/xuri/excelize/v2"
)

const (
	sheetChangedTags = "Changed Tags"
	contentTypeXLSX  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var changedTagsHeader = []string{
	"Tag ID",
	"EPC",
	"Label Number",
	"Manufacturing No",
	"Finished Good No",
	"Item Code",
	"Batch No",
	"Quantity",
	"Carton Quantity",
	"Rack Location",
	"Area",
	"Remark",
	"Updated At",
	"Updated By",
	"Audit At",
}

var changedTagsWidths = []float64{18, 26, 16, 18, 18, 16, 14, 10, 14, 14, 14, 30, 28, 14, 28}

// BuildChangedTagsWorkbook renders tags in the order given, one row each.
func BuildChangedTagsWorkbook(tags []tagdomain.Response) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetChangedTags)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(changedTagsHeader))
	for i, h := range changedTagsHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetChangedTags, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(changedTagsHeader))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetChangedTags, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	for i, width := range changedTagsWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheetChangedTags, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	if err := f.SetPanes(sheetChangedTags, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze header: %w", err)
	}

	for i, tag := range tags {
		row := changedTagRow(tag)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetChangedTags, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func changedTagRow(tag tagdomain.Response) []interface{} {
	carton := interface{}("")
	if tag.CartonQuantity != nil {
		carton = *tag.CartonQuantity
	}
	return []interface{}{
		tag.TagID,
		deref(tag.EPC),
		deref(tag.LabelNumber),
		deref(tag.ManufacturingNo),
		deref(tag.FinishedGoodNo),
		tag.ItemCode,
		deref(tag.BatchNo),
		tag.Quantity,
		carton,
		deref(tag.RackLocation),
		deref(tag.Area),
		deref(tag.Remark),
		tag.UpdatedAt,
		tag.UpdatedBy,
		deref(tag.AuditAt),
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
