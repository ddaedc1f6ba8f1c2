// Package table provides dense numeric tables indexed by sector and region.
//
// A Table holds one value per (sector, region) pair over fixed sector and
// region lists; a Flows holds one value per (sector, origin, destination)
// triple. Both are plain value containers: they carry no model semantics and
// never mutate their index lists after construction.
package table

import (
	"encoding/json"
	"math"

	"github.com/rotisserie/eris"
)

// Table is a dense sector-by-region value table. The zero value is not
// usable; construct with New.
type Table struct {
	sectors []string
	regions []string
	sIdx    map[string]int
	rIdx    map[string]int
	data    []float64 // row-major: data[m*len(regions)+i]
}

// New creates a zero-filled table over the given sector and region lists.
// Duplicate or empty labels are rejected.
func New(sectors, regions []string) (*Table, error) {
	sIdx, err := index(sectors)
	if err != nil {
		return nil, eris.Wrap(err, "table: sectors")
	}
	rIdx, err := index(regions)
	if err != nil {
		return nil, eris.Wrap(err, "table: regions")
	}
	return &Table{
		sectors: append([]string(nil), sectors...),
		regions: append([]string(nil), regions...),
		sIdx:    sIdx,
		rIdx:    rIdx,
		data:    make([]float64, len(sectors)*len(regions)),
	}, nil
}

func index(labels []string) (map[string]int, error) {
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		if l == "" {
			return nil, eris.New("empty label")
		}
		if _, dup := idx[l]; dup {
			return nil, eris.Errorf("duplicate label %q", l)
		}
		idx[l] = i
	}
	return idx, nil
}

// Sectors returns the sector labels in table order.
func (t *Table) Sectors() []string { return t.sectors }

// Regions returns the region labels in table order.
func (t *Table) Regions() []string { return t.regions }

// Value returns the value at (sector, region). The second return is false
// when either label is unknown to this table.
func (t *Table) Value(sector, region string) (float64, bool) {
	m, ok := t.sIdx[sector]
	if !ok {
		return 0, false
	}
	i, ok := t.rIdx[region]
	if !ok {
		return 0, false
	}
	return t.data[m*len(t.regions)+i], true
}

// At returns the value at sector index m and region index i.
func (t *Table) At(m, i int) float64 {
	return t.data[m*len(t.regions)+i]
}

// Set assigns the value at (sector, region).
func (t *Table) Set(sector, region string, v float64) error {
	m, ok := t.sIdx[sector]
	if !ok {
		return eris.Errorf("table: unknown sector %q", sector)
	}
	i, ok := t.rIdx[region]
	if !ok {
		return eris.Errorf("table: unknown region %q", region)
	}
	t.data[m*len(t.regions)+i] = v
	return nil
}

// SetAt assigns the value at sector index m and region index i.
func (t *Table) SetAt(m, i int, v float64) {
	t.data[m*len(t.regions)+i] = v
}

// Row returns a copy of the values for one sector, in region order.
func (t *Table) Row(m int) []float64 {
	n := len(t.regions)
	return append([]float64(nil), t.data[m*n:(m+1)*n]...)
}

// RowTotal returns the sum across regions for sector index m.
func (t *Table) RowTotal(m int) float64 {
	var sum float64
	n := len(t.regions)
	for _, v := range t.data[m*n : (m+1)*n] {
		sum += v
	}
	return sum
}

// Clone returns a deep copy sharing no state with the receiver.
func (t *Table) Clone() *Table {
	c, _ := New(t.sectors, t.regions)
	copy(c.data, t.data)
	return c
}

// MaxAbsDiff returns the largest absolute elementwise difference between two
// tables with identical index lists.
func (t *Table) MaxAbsDiff(o *Table) (float64, error) {
	if len(t.data) != len(o.data) {
		return 0, eris.New("table: dimension mismatch")
	}
	var max float64
	for k := range t.data {
		if d := math.Abs(t.data[k] - o.data[k]); d > max {
			max = d
		}
	}
	return max, nil
}

// ValidateNonNegative returns an error naming the first negative cell, if any.
func (t *Table) ValidateNonNegative() error {
	n := len(t.regions)
	for k, v := range t.data {
		if v < 0 {
			return eris.Errorf("table: negative value %g at sector %q region %q",
				v, t.sectors[k/n], t.regions[k%n])
		}
	}
	return nil
}

type tableJSON struct {
	Sectors []string  `json:"sectors"`
	Regions []string  `json:"regions"`
	Data    []float64 `json:"data"`
}

// MarshalJSON encodes the table as sector list, region list, and row-major data.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(tableJSON{Sectors: t.sectors, Regions: t.regions, Data: t.data})
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (t *Table) UnmarshalJSON(b []byte) error {
	var w tableJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return eris.Wrap(err, "table: unmarshal")
	}
	nt, err := New(w.Sectors, w.Regions)
	if err != nil {
		return err
	}
	if len(w.Data) != len(nt.data) {
		return eris.Errorf("table: data length %d does not match %d sectors x %d regions",
			len(w.Data), len(w.Sectors), len(w.Regions))
	}
	copy(nt.data, w.Data)
	*t = *nt
	return nil
}
