// Package coeff derives and holds national technical coefficients: the
// amount of sector m input required to produce one unit of sector n output.
// A Matrix is read-only once built and safe for concurrent use.
package coeff

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/griff-rees/estios/internal/model"
)

// Matrix is a square sector-by-sector technical coefficient table a_mn.
type Matrix struct {
	sectors []string
	idx     map[string]int
	a       []float64 // row-major: a[m*len(sectors)+n]
}

// New builds a coefficient matrix from explicit values. Coefficients must
// be non-negative; the matrix must be square over the sector list.
func New(sectors []string, a [][]float64) (*Matrix, error) {
	s := len(sectors)
	if len(a) != s {
		return nil, eris.Errorf("coeff: %d rows for %d sectors", len(a), s)
	}
	idx := make(map[string]int, s)
	for i, name := range sectors {
		if name == "" {
			return nil, eris.New("coeff: empty sector label")
		}
		if _, dup := idx[name]; dup {
			return nil, eris.Errorf("coeff: duplicate sector %q", name)
		}
		idx[name] = i
	}
	data := make([]float64, s*s)
	for m := range a {
		if len(a[m]) != s {
			return nil, eris.Errorf("coeff: row %d has %d columns, want %d", m, len(a[m]), s)
		}
		for n, v := range a[m] {
			if v < 0 {
				return nil, eris.Errorf("coeff: negative coefficient a[%q][%q] = %g",
					sectors[m], sectors[n], v)
			}
			data[m*s+n] = v
		}
	}
	return &Matrix{sectors: append([]string(nil), sectors...), idx: idx, a: data}, nil
}

// FromIOTable computes a_mn = io[m][n] / totalOutput[n] from a national
// input-output flow table and the total output of each consuming sector.
// A sector with zero total output has an undefined coefficient column and
// is reported as a DataGapError.
func FromIOTable(sectors []string, io [][]float64, totalOutput []float64) (*Matrix, error) {
	s := len(sectors)
	if len(io) != s || len(totalOutput) != s {
		return nil, eris.Errorf("coeff: io table %dx%d with %d outputs for %d sectors",
			len(io), len(io), len(totalOutput), s)
	}
	for n, out := range totalOutput {
		if out == 0 {
			return nil, &model.DataGapError{
				Sector: sectors[n],
				Reason: "zero total output: technical coefficients undefined",
			}
		}
		if out < 0 {
			return nil, eris.Errorf("coeff: negative total output for sector %q", sectors[n])
		}
	}
	a := make([][]float64, s)
	for m := range io {
		if len(io[m]) != s {
			return nil, eris.Errorf("coeff: io row %d has %d columns, want %d", m, len(io[m]), s)
		}
		a[m] = make([]float64, s)
		for n := range io[m] {
			a[m][n] = io[m][n] / totalOutput[n]
		}
	}
	return New(sectors, a)
}

// Sectors returns the sector labels in matrix order.
func (c *Matrix) Sectors() []string { return c.sectors }

// Dim returns the number of sectors.
func (c *Matrix) Dim() int { return len(c.sectors) }

// At returns a_mn by sector index.
func (c *Matrix) At(m, n int) float64 {
	return c.a[m*len(c.sectors)+n]
}

// Value returns a_mn by sector name. The second return is false when either
// sector is unknown.
func (c *Matrix) Value(m, n string) (float64, bool) {
	mi, ok := c.idx[m]
	if !ok {
		return 0, false
	}
	ni, ok := c.idx[n]
	if !ok {
		return 0, false
	}
	return c.At(mi, ni), true
}

type matrixJSON struct {
	Sectors []string  `json:"sectors"`
	A       []float64 `json:"a"`
}

// MarshalJSON encodes sectors plus row-major coefficient data.
func (c *Matrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(matrixJSON{Sectors: c.sectors, A: c.a})
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (c *Matrix) UnmarshalJSON(b []byte) error {
	var w matrixJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return eris.Wrap(err, "coeff: unmarshal")
	}
	s := len(w.Sectors)
	if len(w.A) != s*s {
		return eris.Errorf("coeff: data length %d for %d sectors", len(w.A), s)
	}
	rows := make([][]float64, s)
	for m := range rows {
		rows[m] = w.A[m*s : (m+1)*s]
	}
	nc, err := New(w.Sectors, rows)
	if err != nil {
		return err
	}
	*c = *nc
	return nil
}
