package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griff-rees/estios/internal/table"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2017Q4")
	require.NoError(t, err)
	assert.Equal(t, Period{Year: 2017, Quarter: 4}, p)
	assert.Equal(t, "2017Q4", p.String())

	p, err = ParsePeriod(" 2020q1 ")
	require.NoError(t, err)
	assert.Equal(t, Period{Year: 2020, Quarter: 1}, p)

	for _, bad := range []string{"2017", "2017Q5", "2017Q0", "Q4", "xQ4", "2017Qx"} {
		_, err := ParsePeriod(bad)
		assert.Error(t, err, bad)
	}
}

func TestSolveOptions_Validate(t *testing.T) {
	opts := DefaultSolveOptions()
	require.NoError(t, opts.Validate())

	// Zero balancing iterations is a legal budget.
	opts.BalancingMaxIterations = 0
	require.NoError(t, opts.Validate())

	bad := DefaultSolveOptions()
	bad.Deterrence = "inverse-square"
	assert.Error(t, bad.Validate())

	bad = DefaultSolveOptions()
	bad.DecayParameter = 0
	assert.Error(t, bad.Validate())

	bad = DefaultSolveOptions()
	bad.OuterMaxIterations = 0
	assert.Error(t, bad.Validate())

	bad = DefaultSolveOptions()
	bad.SingularityThreshold = -1
	assert.Error(t, bad.Validate())
}

func TestPeriodInputs_Validate(t *testing.T) {
	emp, err := table.New([]string{"Production"}, []string{"Leeds"})
	require.NoError(t, err)

	in := PeriodInputs{
		Period:     Period{Year: 2017, Quarter: 4},
		Employment: emp,
		National: NationalAccounts{
			Output:     map[string]float64{"Production": 100},
			Employment: map[string]float64{"Production": 10},
			Population: 1000,
		},
		Population: map[string]float64{"Leeds": 500},
	}
	require.NoError(t, in.Validate())

	in.National.Imports = map[string]float64{"Production": -5}
	err = in.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative national imports")

	in.National.Imports = nil
	in.Employment = nil
	assert.Error(t, in.Validate())
}

func TestErrorMessages(t *testing.T) {
	gap := &DataGapError{Sector: "Production", Reason: "absent from national output table"}
	assert.Contains(t, gap.Error(), `sector "Production"`)

	sing := &SingularSystemError{Region: "Leeds", RCond: 1e-18}
	assert.Contains(t, sing.Error(), `region "Leeds"`)

	warn := &ConvergenceWarning{Scope: "outer loop", Iterations: 15, Residual: 0.02}
	assert.Contains(t, warn.Error(), "did not converge after 15 iterations")
}

func TestContentHash_DeterministicAndSensitive(t *testing.T) {
	emp, _ := table.New([]string{"Production"}, []string{"Leeds"})
	in := PeriodInputs{
		Period:     Period{Year: 2017, Quarter: 4},
		Employment: emp,
		Population: map[string]float64{"Leeds": 500, "Manchester": 400},
	}
	opts := DefaultSolveOptions()

	h1, err := ContentHash(in, opts)
	require.NoError(t, err)
	h2, err := ContentHash(in, opts)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	opts.DecayParameter = 0.5
	h3, err := ContentHash(in, opts)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
