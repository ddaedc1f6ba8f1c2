// Package model defines the shared domain types of the trade-flow engine:
// time periods, national accounts, solve options, results, diagnostics, and
// the error taxonomy.
package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Period is a discrete year-quarter label under which one full model solve
// is computed. Periods are independent: no entity carries state between them.
type Period struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter"` // 1-4
}

// String renders the period as e.g. "2017Q4".
func (p Period) String() string {
	return fmt.Sprintf("%dQ%d", p.Year, p.Quarter)
}

// Valid reports whether the period has a plausible year and quarter.
func (p Period) Valid() bool {
	return p.Year > 0 && p.Quarter >= 1 && p.Quarter <= 4
}

// ParsePeriod parses a "2017Q4" style label.
func ParsePeriod(s string) (Period, error) {
	year, quarter, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(s)), "Q")
	if !ok {
		return Period{}, eris.Errorf("model: period %q: want YYYYQN", s)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return Period{}, eris.Wrapf(err, "model: period %q: year", s)
	}
	q, err := strconv.Atoi(quarter)
	if err != nil {
		return Period{}, eris.Wrapf(err, "model: period %q: quarter", s)
	}
	p := Period{Year: y, Quarter: q}
	if !p.Valid() {
		return Period{}, eris.Errorf("model: period %q out of range", s)
	}
	return p, nil
}
