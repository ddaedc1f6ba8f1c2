package coeff

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griff-rees/estios/internal/model"
)

func TestFromIOTable(t *testing.T) {
	sectors := []string{"Production", "Services"}
	io := [][]float64{
		{10, 30}, // Production inputs consumed by each sector
		{20, 40}, // Services inputs consumed by each sector
	}
	total := []float64{100, 200}

	c, err := FromIOTable(sectors, io, total)
	require.NoError(t, err)

	v, ok := c.Value("Production", "Services")
	require.True(t, ok)
	assert.InDelta(t, 0.15, v, 1e-12) // 30 / 200

	v, ok = c.Value("Services", "Production")
	require.True(t, ok)
	assert.InDelta(t, 0.2, v, 1e-12) // 20 / 100
}

func TestFromIOTable_ZeroOutputIsDataGap(t *testing.T) {
	_, err := FromIOTable([]string{"Production"}, [][]float64{{5}}, []float64{0})
	require.Error(t, err)

	var gap *model.DataGapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, "Production", gap.Sector)
}

func TestNew_RejectsNegative(t *testing.T) {
	_, err := New([]string{"Production", "Services"}, [][]float64{
		{0.1, -0.2},
		{0.3, 0.4},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative coefficient")
}

func TestNew_RejectsShape(t *testing.T) {
	_, err := New([]string{"Production", "Services"}, [][]float64{{0.1, 0.2}})
	assert.Error(t, err)

	_, err = New([]string{"Production", "Production"}, [][]float64{{0, 0}, {0, 0}})
	assert.Error(t, err)
}

func TestMatrix_JSONRoundTrip(t *testing.T) {
	c, err := New([]string{"Production", "Services"}, [][]float64{
		{0.1, 0.15},
		{0.2, 0.05},
	})
	require.NoError(t, err)

	b, err := json.Marshal(c)
	require.NoError(t, err)

	var got Matrix
	require.NoError(t, json.Unmarshal(b, &got))
	v, ok := got.Value("Services", "Production")
	require.True(t, ok)
	assert.Equal(t, 0.2, v)
}
