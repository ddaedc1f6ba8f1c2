package table

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Flows is a dense sector-by-origin-by-destination flow table. Diagonal
// entries (origin == destination) are structurally zero: internal
// consumption is not a trade flow.
type Flows struct {
	sectors []string
	regions []string
	sIdx    map[string]int
	rIdx    map[string]int
	data    []float64 // data[(m*n+i)*n+j], n = len(regions)
}

// NewFlows creates a zero-filled flow table over the given labels.
func NewFlows(sectors, regions []string) (*Flows, error) {
	sIdx, err := index(sectors)
	if err != nil {
		return nil, eris.Wrap(err, "flows: sectors")
	}
	rIdx, err := index(regions)
	if err != nil {
		return nil, eris.Wrap(err, "flows: regions")
	}
	n := len(regions)
	return &Flows{
		sectors: append([]string(nil), sectors...),
		regions: append([]string(nil), regions...),
		sIdx:    sIdx,
		rIdx:    rIdx,
		data:    make([]float64, len(sectors)*n*n),
	}, nil
}

// Sectors returns the sector labels in table order.
func (f *Flows) Sectors() []string { return f.sectors }

// Regions returns the region labels in table order.
func (f *Flows) Regions() []string { return f.regions }

// Value returns the flow for sector from origin to destination. The second
// return is false when any label is unknown.
func (f *Flows) Value(sector, from, to string) (float64, bool) {
	m, ok := f.sIdx[sector]
	if !ok {
		return 0, false
	}
	i, ok := f.rIdx[from]
	if !ok {
		return 0, false
	}
	j, ok := f.rIdx[to]
	if !ok {
		return 0, false
	}
	return f.At(m, i, j), true
}

// At returns the flow at sector index m from region index i to region index j.
func (f *Flows) At(m, i, j int) float64 {
	n := len(f.regions)
	return f.data[(m*n+i)*n+j]
}

// SetMatrix copies an n-by-n flow matrix into sector index m. Diagonal
// entries must be zero.
func (f *Flows) SetMatrix(m int, flows [][]float64) error {
	n := len(f.regions)
	if len(flows) != n {
		return eris.Errorf("flows: matrix has %d rows, want %d", len(flows), n)
	}
	for i := range flows {
		if len(flows[i]) != n {
			return eris.Errorf("flows: row %d has %d columns, want %d", i, len(flows[i]), n)
		}
		if flows[i][i] != 0 {
			return eris.Errorf("flows: nonzero self-flow for region %q", f.regions[i])
		}
		copy(f.data[(m*n+i)*n:(m*n+i+1)*n], flows[i])
	}
	return nil
}

// RowSums returns, for sector index m, the total outflow of each origin region.
func (f *Flows) RowSums(m int) []float64 {
	n := len(f.regions)
	sums := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sums[i] += f.At(m, i, j)
		}
	}
	return sums
}

// ColSums returns, for sector index m, the total inflow of each destination region.
func (f *Flows) ColSums(m int) []float64 {
	n := len(f.regions)
	sums := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sums[j] += f.At(m, i, j)
		}
	}
	return sums
}

type flowsJSON struct {
	Sectors []string  `json:"sectors"`
	Regions []string  `json:"regions"`
	Data    []float64 `json:"data"`
}

// MarshalJSON encodes the flow table with row-major (sector, origin,
// destination) data.
func (f *Flows) MarshalJSON() ([]byte, error) {
	return json.Marshal(flowsJSON{Sectors: f.sectors, Regions: f.regions, Data: f.data})
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (f *Flows) UnmarshalJSON(b []byte) error {
	var w flowsJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return eris.Wrap(err, "flows: unmarshal")
	}
	nf, err := NewFlows(w.Sectors, w.Regions)
	if err != nil {
		return err
	}
	if len(w.Data) != len(nf.data) {
		return eris.Errorf("flows: data length %d does not match %d sectors x %d regions squared",
			len(w.Data), len(w.Sectors), len(w.Regions))
	}
	copy(nf.data, w.Data)
	*f = *nf
	return nil
}
