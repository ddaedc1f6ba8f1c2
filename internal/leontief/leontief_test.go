package leontief

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griff-rees/estios/internal/coeff"
	"github.com/griff-rees/estios/internal/model"
)

func TestSolve_IdentityWhenNoCoefficients(t *testing.T) {
	c, err := coeff.New([]string{"Production", "Services"}, [][]float64{
		{0, 0},
		{0, 0},
	})
	require.NoError(t, err)

	sys, err := NewSystem(c, 1e-12)
	require.NoError(t, err)

	x, err := sys.Solve([]float64{42, 7})
	require.NoError(t, err)
	assert.InDelta(t, 42, x[0], 1e-12)
	assert.InDelta(t, 7, x[1], 1e-12)
}

func TestSolve_SatisfiesBalanceEquation(t *testing.T) {
	// a chosen well inside the convergence radius.
	c, err := coeff.New([]string{"Production", "Services"}, [][]float64{
		{0.2, 0.3},
		{0.1, 0.4},
	})
	require.NoError(t, err)

	sys, err := NewSystem(c, 1e-12)
	require.NoError(t, err)

	rhs := []float64{100, 50}
	x, err := sys.Solve(rhs)
	require.NoError(t, err)

	// Check X_m = rhs_m + sum_n a_mn X_n.
	for m := 0; m < 2; m++ {
		var demand float64
		for n := 0; n < 2; n++ {
			demand += c.At(m, n) * x[n]
		}
		assert.InDelta(t, x[m], rhs[m]+demand, 1e-9)
	}
}

func TestNewSystem_SingularLoop(t *testing.T) {
	// A two-sector loop with a_12 = a_21 = 1 makes (I - A) exactly singular.
	c, err := coeff.New([]string{"Production", "Services"}, [][]float64{
		{0, 1},
		{1, 0},
	})
	require.NoError(t, err)

	_, err = NewSystem(c, 1e-12)
	require.Error(t, err)

	var sing *model.SingularSystemError
	require.ErrorAs(t, err, &sing)
	assert.Less(t, sing.RCond, 1e-12)
}

func TestNewSystem_ThresholdRejectsIllConditioned(t *testing.T) {
	// A near-unit two-sector loop leaves (I - A) invertible but with a
	// reciprocal condition number around 1e-6: rejected under a harsh
	// threshold, accepted under the default.
	c, err := coeff.New([]string{"Production", "Services"}, [][]float64{
		{0, 1 - 1e-6},
		{1 - 1e-6, 0},
	})
	require.NoError(t, err)

	_, err = NewSystem(c, 1e-3)
	require.Error(t, err)

	var sing *model.SingularSystemError
	require.ErrorAs(t, err, &sing)
	assert.Less(t, sing.RCond, 1e-3)

	sys, err := NewSystem(c, 1e-12)
	require.NoError(t, err)
	x, err := sys.Solve([]float64{1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1e6, x[0], 10)
	assert.InDelta(t, 1e6, x[1], 10)
}

func TestSolve_RHSLengthMismatch(t *testing.T) {
	c, err := coeff.New([]string{"Production"}, [][]float64{{0}})
	require.NoError(t, err)
	sys, err := NewSystem(c, 1e-12)
	require.NoError(t, err)

	_, err = sys.Solve([]float64{1, 2})
	assert.Error(t, err)
}
