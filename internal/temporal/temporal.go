// Package temporal runs independent per-period solves with bounded
// parallelism. Periods share only immutable configuration: the coefficient
// matrices, the distance matrix and the solve options are read-only after
// construction, so no locking is needed across workers.
package temporal

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/griff-rees/estios/internal/distance"
	"github.com/griff-rees/estios/internal/model"
	"github.com/griff-rees/estios/internal/solver"
)

// solveFunc matches solver.SolvePeriod; swapped out in tests.
type solveFunc func(context.Context, model.PeriodInputs, solver.Coefficients, *distance.Matrix, model.SolveOptions) (*model.PeriodResult, error)

// Outcome pairs one period with its result or failure. A failed period
// never suppresses the others.
type Outcome struct {
	Period model.Period
	Result *model.PeriodResult
	Err    error
}

// Orchestrator fans period solves out over a bounded worker pool.
type Orchestrator struct {
	coeffs      solver.Coefficients
	dist        *distance.Matrix
	opts        model.SolveOptions
	parallelism int
	solve       solveFunc
}

// New builds an orchestrator. Parallelism caps how many periods solve at
// once; values below one mean one.
func New(coeffs solver.Coefficients, dist *distance.Matrix, opts model.SolveOptions, parallelism int) (*Orchestrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if coeffs.National == nil {
		return nil, eris.New("temporal: national coefficient matrix is required")
	}
	if dist == nil {
		return nil, eris.New("temporal: distance matrix is required")
	}
	if parallelism < 1 {
		parallelism = 1
	}
	return &Orchestrator{
		coeffs:      coeffs,
		dist:        dist,
		opts:        opts,
		parallelism: parallelism,
		solve:       solver.SolvePeriod,
	}, nil
}

// Run solves every period and returns outcomes in input order. Individual
// period failures are recorded in their Outcome; Run itself only fails when
// ctx is cancelled before all periods finish.
func (o *Orchestrator) Run(ctx context.Context, periods []model.PeriodInputs) ([]Outcome, error) {
	outcomes := make([]Outcome, len(periods))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for i, inputs := range periods {
		i, inputs := i, inputs
		g.Go(func() error {
			res, err := o.solve(gctx, inputs, o.coeffs, o.dist, o.opts)
			outcomes[i] = Outcome{Period: inputs.Period, Result: res, Err: err}
			return nil // don't abort the run on an individual period failure
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "temporal: run")
	}
	if err := ctx.Err(); err != nil {
		return outcomes, eris.Wrap(err, "temporal: run cancelled")
	}
	return outcomes, nil
}
