package loader

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/griff-rees/estios/internal/table"
)

// CSVOptions configures the CSV table readers.
type CSVOptions struct {
	Delimiter   rune // default ','
	Comment     rune // comment character (0 = none)
	Windows1252 bool // decode legacy Windows-1252 exports
}

func newCSVReader(r io.Reader, opts CSVOptions) *csv.Reader {
	if opts.Windows1252 {
		r = transform.NewReader(r, charmap.Windows1252.NewDecoder())
	}
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.FieldsPerRecord = -1
	return reader
}

// ReadSectorTable reads a sector-by-region table laid out the way NOMIS
// exports employment: a header row naming the sectors, then one row per
// region with the region label in the first column.
func ReadSectorTable(r io.Reader, opts CSVOptions) (*table.Table, error) {
	records, err := newCSVReader(r, opts).ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "loader: read csv")
	}
	if len(records) < 2 {
		return nil, eris.New("loader: csv needs a header row and at least one region row")
	}

	header := records[0]
	if len(header) < 2 {
		return nil, eris.New("loader: csv header needs at least one sector column")
	}
	sectors := make([]string, 0, len(header)-1)
	for _, s := range header[1:] {
		sectors = append(sectors, strings.TrimSpace(s))
	}

	regions := make([]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) == 0 {
			continue
		}
		regions = append(regions, strings.TrimSpace(rec[0]))
	}

	out, err := table.New(sectors, regions)
	if err != nil {
		return nil, eris.Wrap(err, "loader: csv")
	}
	for _, rec := range records[1:] {
		if len(rec) == 0 {
			continue
		}
		if len(rec) != len(header) {
			return nil, eris.Errorf("loader: region %q has %d columns, header has %d",
				rec[0], len(rec), len(header))
		}
		region := strings.TrimSpace(rec[0])
		for j, cell := range rec[1:] {
			v, err := parseValue(cell)
			if err != nil {
				return nil, eris.Wrapf(err, "loader: region %q sector %q", region, sectors[j])
			}
			if err := out.Set(sectors[j], region, v); err != nil {
				return nil, eris.Wrap(err, "loader: csv")
			}
		}
	}
	return out, nil
}

// ReadRegionSeries reads a two-column CSV of region label and value, such
// as a mid-year population estimate extract. The header row is skipped.
func ReadRegionSeries(r io.Reader, opts CSVOptions) (map[string]float64, error) {
	records, err := newCSVReader(r, opts).ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "loader: read csv")
	}
	if len(records) < 2 {
		return nil, eris.New("loader: csv needs a header row and at least one region row")
	}

	out := make(map[string]float64, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 2 {
			return nil, eris.Errorf("loader: region series row needs 2 columns, got %d", len(rec))
		}
		region := strings.TrimSpace(rec[0])
		if _, dup := out[region]; dup {
			return nil, eris.Errorf("loader: duplicate region %q", region)
		}
		v, err := parseValue(rec[1])
		if err != nil {
			return nil, eris.Wrapf(err, "loader: region %q", region)
		}
		out[region] = v
	}
	return out, nil
}
