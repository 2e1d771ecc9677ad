package export

import (
	"bytes"
	"testing"

	tagdomain "github.com/smallbiznis/rfidtrack/internal/tag/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func strPtr(v string) *string { return &v }

func TestBuildChangedTagsWorkbook(t *testing.T) {
	carton := 12
	tags := []tagdomain.Response{
		{
			TagID:          "T1",
			LabelNumber:    strPtr("L-001"),
			ItemCode:       "BATT-AA-01",
			Quantity:       7,
			CartonQuantity: &carton,
			RackLocation:   strPtr("R2"),
			Area:           strPtr("WAREHOUSE"),
			UpdatedAt:      "2026-03-01T08:00:00.000000Z",
			UpdatedBy:      "alice",
		},
		{
			TagID:     "T2",
			ItemCode:  "-",
			UpdatedAt: "2026-03-01T08:00:01.000000Z",
			UpdatedBy: "bob",
		},
	}

	body, err := BuildChangedTagsWorkbook(tags)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetChangedTags}, f.GetSheetList())

	header, err := f.GetCellValue(sheetChangedTags, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Tag ID", header)

	cells := map[string]string{
		"A2": "T1",
		"C2": "L-001",
		"F2": "BATT-AA-01",
		"H2": "7",
		"I2": "12",
		"J2": "R2",
		"M2": "2026-03-01T08:00:00.000000Z",
		"A3": "T2",
		"C3": "",
		"F3": "-",
		"H3": "0",
		"N3": "bob",
	}
	for cell, want := range cells {
		got, err := f.GetCellValue(sheetChangedTags, cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, cell)
	}
}

func TestBuildChangedTagsWorkbook_Empty(t *testing.T) {
	body, err := BuildChangedTagsWorkbook(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetChangedTags)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, changedTagsHeader, rows[0])
}
