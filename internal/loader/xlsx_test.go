package loader

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeIOWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("IOT")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().Value = v
		}
	}
	path := filepath.Join(t.TempDir(), "iot.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadIOTable(t *testing.T) {
	path := writeIOWorkbook(t, [][]string{
		{"", "Production", "Services"},
		{"Production", "20", "30"},
		{"Services", "10", "15"},
		{"Total output", "200", "150"},
	})

	c, err := ReadIOTable(path, IOTableOptions{SheetName: "IOT"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Production", "Services"}, c.Sectors())
	assert.InDelta(t, 20.0/200, c.At(0, 0), 1e-12)
	assert.InDelta(t, 30.0/150, c.At(0, 1), 1e-12)
	assert.InDelta(t, 10.0/200, c.At(1, 0), 1e-12)
	assert.InDelta(t, 15.0/150, c.At(1, 1), 1e-12)
}

func TestReadIOTableSkipRowsAndLabel(t *testing.T) {
	path := writeIOWorkbook(t, [][]string{
		{"Supply and use tables, 2017"},
		{"", "Production"},
		{"Production", "40"},
		{"Output at basic prices", "400"},
	})

	c, err := ReadIOTable(path, IOTableOptions{
		SkipRows:      1,
		TotalRowLabel: "Output at basic prices",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, c.At(0, 0), 1e-12)
}

func TestReadIOTableErrors(t *testing.T) {
	t.Run("missing sector row", func(t *testing.T) {
		path := writeIOWorkbook(t, [][]string{
			{"", "Production", "Services"},
			{"Production", "20", "30"},
			{"Total output", "200", "150"},
		})
		_, err := ReadIOTable(path, IOTableOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `no row for sector "Services"`)
	})

	t.Run("missing total output row", func(t *testing.T) {
		path := writeIOWorkbook(t, [][]string{
			{"", "Production"},
			{"Production", "20"},
			{"Another row", "1"},
		})
		_, err := ReadIOTable(path, IOTableOptions{})
		require.Error(t, err)
	})

	t.Run("unknown sheet", func(t *testing.T) {
		path := writeIOWorkbook(t, [][]string{{"", "Production"}})
		_, err := ReadIOTable(path, IOTableOptions{SheetName: "Missing"})
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadIOTable(filepath.Join(t.TempDir(), "absent.xlsx"), IOTableOptions{})
		require.Error(t, err)
	})
}
