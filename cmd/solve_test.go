package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griff-rees/estios/internal/coeff"
	"github.com/griff-rees/estios/internal/distance"
	"github.com/griff-rees/estios/internal/model"
	"github.com/griff-rees/estios/internal/scenario"
	"github.com/griff-rees/estios/internal/solver"
	"github.com/griff-rees/estios/internal/store"
	"github.com/griff-rees/estios/internal/table"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "estios.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func periodInputs(t *testing.T, period string) model.PeriodInputs {
	t.Helper()
	p, err := model.ParsePeriod(period)
	require.NoError(t, err)

	employment, err := table.New([]string{"production"}, []string{"leeds"})
	require.NoError(t, err)
	employment.SetAt(0, 0, 50)

	return model.PeriodInputs{
		Period: p,
		National: model.NationalAccounts{
			Output:      map[string]float64{"production": 100},
			Employment:  map[string]float64{"production": 50},
			FinalDemand: map[string]float64{"production": 80},
			Exports:     map[string]float64{"production": 30},
			Imports:     map[string]float64{"production": 10},
			Population:  300,
		},
		Employment: employment,
		Population: map[string]float64{"leeds": 300},
	}
}

// testAssembled builds a single-region scenario for the given periods.
func testAssembled(t *testing.T, periods ...string) *scenario.Assembled {
	t.Helper()

	national, err := coeff.New([]string{"production"}, [][]float64{{0}})
	require.NoError(t, err)
	dist, err := distance.New([]string{"leeds"}, [][]float64{{0}})
	require.NoError(t, err)

	inputs := make([]model.PeriodInputs, 0, len(periods))
	for _, period := range periods {
		inputs = append(inputs, periodInputs(t, period))
	}

	return &scenario.Assembled{
		Coefficients: solver.Coefficients{National: national},
		Distances:    dist,
		Periods:      inputs,
		Options:      model.DefaultSolveOptions(),
	}
}

func TestRunScenario_SolvesAndCaches(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	asm := testAssembled(t, "2017Q3", "2017Q4")

	outcomes, err := runScenario(ctx, st, "yorkshire", asm, 2, false)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	for _, out := range outcomes {
		require.NoError(t, out.Err)
		assert.False(t, out.Cached)
		require.NotNil(t, out.Result)
		assert.True(t, out.Result.Diagnostics.Converged)
	}

	// Same scenario again: every period comes from the cache.
	again, err := runScenario(ctx, st, "yorkshire", asm, 2, false)
	require.NoError(t, err)
	require.Len(t, again, 2)
	for i, out := range again {
		require.NoError(t, out.Err)
		assert.True(t, out.Cached)
		assert.Equal(t, outcomes[i].Hash, out.Hash)
		assert.Equal(t, outcomes[i].Result, out.Result)
	}
}

func TestRunScenario_NoCacheSolvesAnyway(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	asm := testAssembled(t, "2017Q3")

	_, err := runScenario(ctx, st, "yorkshire", asm, 1, false)
	require.NoError(t, err)

	outcomes, err := runScenario(ctx, st, "yorkshire", asm, 1, true)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Cached)
	require.NotNil(t, outcomes[0].Result)
}

func TestRunScenario_PeriodFailureIsNotCached(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	asm := testAssembled(t, "2017Q3", "2017Q4")
	// A negative employment cell fails validation for Q4 alone.
	asm.Periods[1].Employment.SetAt(0, 0, -1)

	outcomes, err := runScenario(ctx, st, "yorkshire", asm, 1, false)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	require.NoError(t, outcomes[0].Err)
	require.Error(t, outcomes[1].Err)
	assert.Nil(t, outcomes[1].Result)

	summaries, err := st.ListResults(ctx, store.ResultFilter{})
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestWriteResults(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	asm := testAssembled(t, "2017Q3")

	outcomes, err := runScenario(ctx, st, "yorkshire", asm, 1, false)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, writeResults(dir, outcomes))

	data, err := os.ReadFile(filepath.Join(dir, "2017Q3.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"input_hash"`)
}
