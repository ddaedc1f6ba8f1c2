// Package loader parses published statistics into model inputs: employment
// and population tables from CSV, input-output tables from XLSX workbooks,
// national accounts and region centroids from JSON, and centroids derived
// from boundary shapefiles. The fetcher package gets the bytes here; this
// package owns their meaning.
package loader

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// parseValue reads one numeric cell. Published tables use thousands
// separators and a bare "-" for nil returns, so both are tolerated; an
// empty cell reads as zero.
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "loader: parse value %q", s)
	}
	return v, nil
}
