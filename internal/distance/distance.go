// Package distance builds the symmetric inter-region distance matrix used as
// the deterrence-function input of the gravity model. Distances are
// kilometres between projected region centroids; the matrix is immutable
// once constructed and safe for concurrent reads.
package distance

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

const metresPerKilometre = 1000

// Matrix is a symmetric region-by-region distance table with a zero
// diagonal and strictly positive off-diagonal entries.
type Matrix struct {
	regions []string
	idx     map[string]int
	data    []float64 // row-major, kilometres
}

// New builds a matrix from explicit kilometre distances. The input must be
// square, symmetric, zero on the diagonal, and positive off it.
func New(regions []string, km [][]float64) (*Matrix, error) {
	n := len(regions)
	if len(km) != n {
		return nil, eris.Errorf("distance: %d rows for %d regions", len(km), n)
	}
	idx := make(map[string]int, n)
	for i, r := range regions {
		if r == "" {
			return nil, eris.New("distance: empty region label")
		}
		if _, dup := idx[r]; dup {
			return nil, eris.Errorf("distance: duplicate region %q", r)
		}
		idx[r] = i
	}
	for i := range km {
		if len(km[i]) != n {
			return nil, eris.Errorf("distance: row %d has %d columns, want %d", i, len(km[i]), n)
		}
	}
	data := make([]float64, n*n)
	for i := range km {
		for j, d := range km[i] {
			switch {
			case i == j && d != 0:
				return nil, eris.Errorf("distance: nonzero self-distance for region %q", regions[i])
			case i != j && d <= 0:
				return nil, eris.Errorf("distance: non-positive distance between %q and %q", regions[i], regions[j])
			case km[j][i] != d:
				return nil, eris.Errorf("distance: asymmetry between %q and %q", regions[i], regions[j])
			}
			data[i*n+j] = d
		}
	}
	return &Matrix{regions: append([]string(nil), regions...), idx: idx, data: data}, nil
}

// NewFromCentroids computes pairwise planar distances between projected
// region centroids (coordinates in metres, e.g. an equal-area national
// grid) and converts them to kilometres. Regions are ordered by name.
// Coincident centroids are rejected: a zero distance between distinct
// regions breaks the deterrence function.
func NewFromCentroids(centroids map[string]geom.Coord) (*Matrix, error) {
	if len(centroids) == 0 {
		return nil, eris.New("distance: no centroids")
	}
	regions := make([]string, 0, len(centroids))
	for r := range centroids {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	n := len(regions)
	km := make([][]float64, n)
	for i := range km {
		km[i] = make([]float64, n)
	}
	for i, a := range regions {
		ca := centroids[a]
		for j := i + 1; j < n; j++ {
			cb := centroids[regions[j]]
			d := math.Hypot(cb.X()-ca.X(), cb.Y()-ca.Y()) / metresPerKilometre
			if d == 0 {
				return nil, eris.Errorf("distance: coincident centroids for %q and %q", a, regions[j])
			}
			km[i][j] = d
			km[j][i] = d
		}
	}
	return New(regions, km)
}

// Regions returns the region labels in matrix order.
func (m *Matrix) Regions() []string { return m.regions }

// Len returns the number of regions.
func (m *Matrix) Len() int { return len(m.regions) }

// At returns the distance in kilometres between region indexes i and j.
func (m *Matrix) At(i, j int) float64 {
	return m.data[i*len(m.regions)+j]
}

// Between returns the distance between two named regions. The second return
// is false when either region is unknown.
func (m *Matrix) Between(a, b string) (float64, bool) {
	i, ok := m.idx[a]
	if !ok {
		return 0, false
	}
	j, ok := m.idx[b]
	if !ok {
		return 0, false
	}
	return m.At(i, j), true
}

// Reorder returns a matrix over the same distances with regions in the
// given order, which must be a permutation of the matrix regions. The
// solver uses this to align the matrix with its table region order.
func (m *Matrix) Reorder(regions []string) (*Matrix, error) {
	if len(regions) != len(m.regions) {
		return nil, eris.Errorf("distance: reorder with %d regions, have %d", len(regions), len(m.regions))
	}
	perm := make([]int, len(regions))
	for i, r := range regions {
		j, ok := m.idx[r]
		if !ok {
			return nil, eris.Errorf("distance: unknown region %q", r)
		}
		perm[i] = j
	}
	n := len(regions)
	km := make([][]float64, n)
	for i := range km {
		km[i] = make([]float64, n)
		for j := range km[i] {
			km[i][j] = m.At(perm[i], perm[j])
		}
	}
	return New(regions, km)
}

type matrixJSON struct {
	Regions []string  `json:"regions"`
	Data    []float64 `json:"data"`
}

// MarshalJSON encodes the matrix as region list plus row-major kilometre data.
func (m *Matrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(matrixJSON{Regions: m.regions, Data: m.data})
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON, re-validating
// the symmetry invariants.
func (m *Matrix) UnmarshalJSON(b []byte) error {
	var w matrixJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return eris.Wrap(err, "distance: unmarshal")
	}
	n := len(w.Regions)
	if len(w.Data) != n*n {
		return eris.Errorf("distance: data length %d for %d regions", len(w.Data), n)
	}
	km := make([][]float64, n)
	for i := range km {
		km[i] = w.Data[i*n : (i+1)*n]
	}
	nm, err := New(w.Regions, km)
	if err != nil {
		return err
	}
	*m = *nm
	return nil
}
