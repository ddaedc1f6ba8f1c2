package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/griff-rees/estios/internal/model"
	"github.com/griff-rees/estios/internal/table"
)

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// testResult builds a small two-region result with the given hash. The
// period label must parse ("2017Q3" style).
func testResult(t *testing.T, period string, converged bool, hash string) *model.PeriodResult {
	t.Helper()

	p, err := model.ParsePeriod(period)
	require.NoError(t, err)

	sectors := []string{"production", "services"}
	regions := []string{"leeds", "manchester"}

	newTable := func(values [][]float64) *table.Table {
		tb, err := table.New(sectors, regions)
		require.NoError(t, err)
		for m := range sectors {
			for i := range regions {
				tb.SetAt(m, i, values[m][i])
			}
		}
		return tb
	}

	flows, err := table.NewFlows(sectors, regions)
	require.NoError(t, err)
	require.NoError(t, flows.SetMatrix(0, [][]float64{{0, 5.5}, {3.2, 0}}))
	require.NoError(t, flows.SetMatrix(1, [][]float64{{0, 1.1}, {0.4, 0}}))

	return &model.PeriodResult{
		Period:          p,
		Output:          newTable([][]float64{{120, 80}, {60, 40}}),
		InternalExports: newTable([][]float64{{5.5, 3.2}, {1.1, 0.4}}),
		InternalImports: newTable([][]float64{{3.2, 5.5}, {0.4, 1.1}}),
		Flows:           flows,
		Diagnostics: model.PeriodDiagnostics{
			Converged:       converged,
			OuterIterations: 4,
			Residual:        2.5e-7,
		},
		InputHash: hash,
	}
}
