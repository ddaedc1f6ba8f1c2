package gravity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griff-rees/estios/internal/distance"
	"github.com/griff-rees/estios/internal/model"
)

func threeRegions(t *testing.T) *distance.Matrix {
	t.Helper()
	m, err := distance.New(
		[]string{"Leeds", "Manchester", "Liverpool"},
		[][]float64{
			{0, 70, 115},
			{70, 0, 55},
			{115, 55, 0},
		},
	)
	require.NoError(t, err)
	return m
}

func TestDeterrenceFunctions(t *testing.T) {
	exp := Exponential(0.01)
	assert.InDelta(t, math.Exp(-0.7), exp(70), 1e-12)
	assert.Greater(t, exp(10), exp(100))

	pow := PowerLaw(1.5)
	assert.InDelta(t, math.Pow(55, -1.5), pow(55), 1e-12)
	assert.Greater(t, pow(10), pow(100))
}

func TestForOptions(t *testing.T) {
	opts := model.DefaultSolveOptions()
	f, err := ForOptions(opts)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-opts.DecayParameter*100), f(100), 1e-12)

	opts.Deterrence = model.DeterrencePower
	opts.DecayParameter = 2
	f, err = ForOptions(opts)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, f(10), 1e-12)

	opts.Deterrence = "nope"
	_, err = ForOptions(opts)
	assert.Error(t, err)
}

func TestBalance_MarginsHold(t *testing.T) {
	dist := threeRegions(t)
	supply := []float64{120, 80, 50}
	demand := []float64{60, 90, 100} // same total as supply

	flows, diag, err := Balance(supply, demand, dist, Exponential(0.01), 1e-10, 200)
	require.NoError(t, err)
	require.True(t, diag.Converged, "residual %g after %d iterations", diag.Residual, diag.Iterations)

	for i := range flows {
		var rowSum float64
		for j := range flows[i] {
			rowSum += flows[i][j]
			assert.GreaterOrEqual(t, flows[i][j], 0.0)
		}
		assert.InDelta(t, supply[i], rowSum, 1e-6, "row %d", i)
	}
	for j := range flows {
		var colSum float64
		for i := range flows {
			colSum += flows[i][j]
		}
		assert.InDelta(t, demand[j], colSum, 1e-6, "col %d", j)
	}
}

func TestBalance_SelfFlowAlwaysZero(t *testing.T) {
	dist := threeRegions(t)
	flows, _, err := Balance([]float64{10, 20, 30}, []float64{30, 20, 10}, dist, PowerLaw(1.5), 1e-10, 200)
	require.NoError(t, err)
	for i := range flows {
		assert.Zero(t, flows[i][i])
	}
}

func TestBalance_ZeroSupplyRegion(t *testing.T) {
	dist := threeRegions(t)
	supply := []float64{0, 100, 50}
	demand := []float64{70, 50, 30}

	flows, diag, err := Balance(supply, demand, dist, Exponential(0.01), 1e-10, 200)
	require.NoError(t, err)
	require.True(t, diag.Converged)

	// No outflow from the zero-supply region, but its demand is still served.
	for j := range flows[0] {
		assert.Zero(t, flows[0][j])
	}
	var into0 float64
	for i := range flows {
		into0 += flows[i][0]
	}
	assert.InDelta(t, 70, into0, 1e-6)
}

func TestBalance_AllZeroMargins(t *testing.T) {
	dist := threeRegions(t)
	flows, diag, err := Balance([]float64{0, 0, 0}, []float64{0, 0, 0}, dist, Exponential(0.01), 1e-10, 50)
	require.NoError(t, err)
	assert.True(t, diag.Converged)
	for i := range flows {
		for j := range flows[i] {
			assert.Zero(t, flows[i][j])
		}
	}
}

func TestBalance_ZeroIterationBudget(t *testing.T) {
	dist := threeRegions(t)
	supply := []float64{10, 10, 10}
	demand := []float64{10, 10, 10}

	flows, diag, err := Balance(supply, demand, dist, Exponential(0.01), 1e-10, 0)
	require.NoError(t, err)
	assert.False(t, diag.Converged)
	assert.Zero(t, diag.Iterations)
	assert.True(t, math.IsInf(diag.Residual, 1))

	// Uniform factors A = B = 1: flows are supply_i * demand_j * f(d_ij).
	f := Exponential(0.01)
	d, _ := dist.Between("Leeds", "Manchester")
	assert.InDelta(t, 10*10*f(d), flows[0][1], 1e-12)
}

func TestBalance_SingleRegionConverges(t *testing.T) {
	one, err := distance.New([]string{"Leeds"}, [][]float64{{0}})
	require.NoError(t, err)

	flows, diag, err := Balance([]float64{5}, []float64{5}, one, Exponential(0.01), 1e-10, 50)
	require.NoError(t, err)
	assert.True(t, diag.Converged)
	assert.Zero(t, flows[0][0])
}

func TestBalance_InputValidation(t *testing.T) {
	dist := threeRegions(t)

	_, _, err := Balance([]float64{1, 2}, []float64{1, 2, 3}, dist, Exponential(0.01), 1e-10, 10)
	assert.Error(t, err)

	_, _, err = Balance([]float64{1, -2, 3}, []float64{1, 2, 3}, dist, Exponential(0.01), 1e-10, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative margin")
}
