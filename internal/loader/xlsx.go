package loader

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/griff-rees/estios/internal/coeff"
)

// IOTableOptions locates the input-output table inside a published
// workbook.
type IOTableOptions struct {
	SheetName     string // if empty, SheetIndex is used
	SheetIndex    int
	SkipRows      int    // rows above the header
	TotalRowLabel string // default "Total output"
}

// ReadIOTable reads a square national input-output table from an XLSX
// workbook and derives technical coefficients from it.
//
// Expected layout, matching the ONS supply and use releases: a header row
// naming the purchasing sectors, one row per supplying sector, and below
// them a row labelled by TotalRowLabel carrying each sector's total output.
func ReadIOTable(path string, opts IOTableOptions) (*coeff.Matrix, error) {
	if opts.TotalRowLabel == "" {
		opts.TotalRowLabel = "Total output"
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "loader: open xlsx")
	}
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	rows := sheet.Rows
	if opts.SkipRows > 0 {
		if opts.SkipRows >= len(rows) {
			return nil, eris.Errorf("loader: sheet has %d rows, cannot skip %d", len(rows), opts.SkipRows)
		}
		rows = rows[opts.SkipRows:]
	}
	if len(rows) < 3 {
		return nil, eris.New("loader: io table needs a header, sector rows and a total output row")
	}

	header := rowToStrings(rows[0])
	if len(header) < 2 {
		return nil, eris.New("loader: io table header needs at least one sector column")
	}
	sectors := make([]string, 0, len(header)-1)
	for _, s := range header[1:] {
		s = strings.TrimSpace(s)
		if s == "" {
			break // trailing annotation columns
		}
		sectors = append(sectors, s)
	}
	if len(sectors) == 0 {
		return nil, eris.New("loader: io table header names no sectors")
	}

	io := make([][]float64, 0, len(sectors))
	var totalOutput []float64
	bySector := make(map[string][]float64, len(sectors))
	for _, row := range rows[1:] {
		cells := rowToStrings(row)
		if len(cells) == 0 {
			continue
		}
		label := strings.TrimSpace(cells[0])
		if label == "" {
			continue
		}
		values, err := parseRowValues(label, cells, len(sectors))
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(label, opts.TotalRowLabel) {
			totalOutput = values
			continue
		}
		bySector[label] = values
	}

	for _, sector := range sectors {
		values, ok := bySector[sector]
		if !ok {
			return nil, eris.Errorf("loader: io table has no row for sector %q", sector)
		}
		io = append(io, values)
	}
	if totalOutput == nil {
		return nil, eris.Errorf("loader: io table has no %q row", opts.TotalRowLabel)
	}

	c, err := coeff.FromIOTable(sectors, io, totalOutput)
	if err != nil {
		return nil, eris.Wrap(err, "loader: io table")
	}
	return c, nil
}

func parseRowValues(label string, cells []string, n int) ([]float64, error) {
	if len(cells) < n+1 {
		return nil, eris.Errorf("loader: row %q has %d value columns, expected %d", label, len(cells)-1, n)
	}
	values := make([]float64, n)
	for j := 0; j < n; j++ {
		v, err := parseValue(cells[j+1])
		if err != nil {
			return nil, eris.Wrapf(err, "loader: row %q", label)
		}
		values[j] = v
	}
	return values, nil
}

func getSheet(f *xlsx.File, opts IOTableOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("loader: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("loader: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
