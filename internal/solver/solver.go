// Package solver couples the regional input-output accounting with the
// doubly-constrained flow balancing in an explicit outer fixed-point loop.
//
// Both halves stay pure: leontief and gravity hold no iteration state and no
// reference to each other. The loop here owns the current output estimates
// and trade margins, and alternates between the two until total output
// settles or the iteration budget runs out. Non-convergence is a diagnostic,
// not a failure.
package solver

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/griff-rees/estios/internal/coeff"
	"github.com/griff-rees/estios/internal/disagg"
	"github.com/griff-rees/estios/internal/distance"
	"github.com/griff-rees/estios/internal/gravity"
	"github.com/griff-rees/estios/internal/leontief"
	"github.com/griff-rees/estios/internal/model"
	"github.com/griff-rees/estios/internal/table"
)

// InitialExportShare is the fraction of international exports used to seed
// the internal-export margin before the first balancing pass.
const InitialExportShare = 0.1

// Coefficients carries the technical coefficients for a solve. Regional
// overrides take precedence; regions without an entry fall back to the
// national matrix.
type Coefficients struct {
	National *coeff.Matrix            `json:"national"`
	Regional map[string]*coeff.Matrix `json:"regional,omitempty"`
}

// ForRegion returns the coefficient matrix that applies to region.
func (c Coefficients) ForRegion(region string) *coeff.Matrix {
	if m, ok := c.Regional[region]; ok {
		return m
	}
	return c.National
}

// InputHash derives the cache key for one period solve. The distance matrix
// is reordered to the inputs' region order first, so equivalent inputs hash
// identically regardless of how the matrix was built.
func InputHash(inputs model.PeriodInputs, coeffs Coefficients, dist *distance.Matrix, opts model.SolveOptions) (string, error) {
	ordered, err := dist.Reorder(inputs.Employment.Regions())
	if err != nil {
		return "", eris.Wrap(err, "solver: distance matrix")
	}
	hash, err := model.ContentHash(inputs, coeffs, ordered, opts)
	if err != nil {
		return "", eris.Wrap(err, "solver: input hash")
	}
	return hash, nil
}

// SolvePeriod runs the full joint solve for one period: disaggregate
// national accounts to regions, then iterate Leontief output solves against
// gravity flow balancing until output converges.
//
// Regions whose (I - A) system is singular are excluded from the period:
// their columns are zeroed, they take no part in flow balancing, and the
// exclusion is recorded in Diagnostics.FailedRegions. Only when every region
// fails does SolvePeriod return an error. Cancellation is checked at each
// outer-iteration boundary.
func SolvePeriod(ctx context.Context, inputs model.PeriodInputs, coeffs Coefficients, dist *distance.Matrix, opts model.SolveOptions) (*model.PeriodResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := inputs.Validate(); err != nil {
		return nil, err
	}
	if coeffs.National == nil {
		return nil, eris.New("solver: national coefficient matrix is required")
	}
	if dist == nil {
		return nil, eris.New("solver: distance matrix is required")
	}

	sectors := inputs.Employment.Sectors()
	regions := inputs.Employment.Regions()
	if err := sameSectors(sectors, coeffs.National.Sectors()); err != nil {
		return nil, err
	}
	for region, m := range coeffs.Regional {
		if err := sameSectors(sectors, m.Sectors()); err != nil {
			return nil, eris.Wrapf(err, "solver: region %q coefficients", region)
		}
	}
	dist, err := dist.Reorder(regions)
	if err != nil {
		return nil, eris.Wrap(err, "solver: distance matrix")
	}

	f, err := gravity.ForOptions(opts)
	if err != nil {
		return nil, err
	}

	hash, err := InputHash(inputs, coeffs, dist, opts)
	if err != nil {
		return nil, err
	}

	// Regional disaggregation of the national accounts.
	output, err := disagg.Output(inputs.National, inputs.Employment)
	if err != nil {
		return nil, err
	}
	exports, err := disagg.Exports(inputs.National, inputs.Employment)
	if err != nil {
		return nil, err
	}
	finalDemand, err := disagg.FinalDemand(inputs.National, inputs.Population, sectors, regions)
	if err != nil {
		return nil, err
	}
	imports, err := disagg.Imports(inputs.National, inputs.Population, sectors, regions)
	if err != nil {
		return nil, err
	}

	// Factorize (I - A) per region up front. A singular region is excluded
	// here, before any margin it could distort enters the loop.
	systems := make([]*leontief.System, len(regions))
	diag := model.PeriodDiagnostics{}
	for i, region := range regions {
		sys, err := leontief.NewSystem(coeffs.ForRegion(region), opts.SingularityThreshold)
		if err != nil {
			var sing *model.SingularSystemError
			if eris.As(err, &sing) {
				sing.Region = region
				diag.FailedRegions = append(diag.FailedRegions, model.RegionFailure{
					Region: region,
					Reason: sing.Error(),
				})
				continue
			}
			return nil, eris.Wrapf(err, "solver: region %q", region)
		}
		systems[i] = sys
	}
	if len(diag.FailedRegions) == len(regions) {
		return nil, eris.New("solver: every region has a singular coefficient system")
	}
	for i := range regions {
		if systems[i] == nil {
			zeroColumn(i, output, exports, finalDemand, imports)
		}
	}

	// Seed the internal-export margin from international exports.
	internalExports := exports.Clone()
	for m := range sectors {
		for i := range regions {
			internalExports.SetAt(m, i, InitialExportShare*exports.At(m, i))
		}
	}

	flows, err := table.NewFlows(sectors, regions)
	if err != nil {
		return nil, eris.Wrap(err, "solver: flows")
	}
	internalImports, err := table.New(sectors, regions)
	if err != nil {
		return nil, eris.Wrap(err, "solver: imports margin")
	}

	residual := math.Inf(1)
	for iter := 1; iter <= opts.OuterMaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "solver: period %s cancelled", inputs.Period)
		}
		diag.OuterIterations = iter

		// Exogenous remainder of the balance equation, then its sector-wide
		// sum redistributed by employment share. The redistribution absorbs
		// activity outside the modelled regions and leaves the supply and
		// demand margins summing to the same total per sector, which the
		// doubly-constrained balancing needs.
		demand := requiredImports(inputs.Employment, coeffs, output, finalDemand, exports, imports, internalExports, regions, systems)

		diag.Balancing = diag.Balancing[:0]
		for m, sector := range sectors {
			sectorFlows, bd, err := gravity.Balance(
				internalExports.Row(m), demand.Row(m), dist, f,
				opts.BalancingTolerance, opts.BalancingMaxIterations,
			)
			if err != nil {
				return nil, eris.Wrapf(err, "solver: balancing sector %q", sector)
			}
			if err := flows.SetMatrix(m, sectorFlows); err != nil {
				return nil, eris.Wrapf(err, "solver: balancing sector %q", sector)
			}
			diag.Balancing = append(diag.Balancing, model.BalancingDiagnostics{
				Sector:     sector,
				Converged:  bd.Converged,
				Iterations: bd.Iterations,
				Residual:   bd.Residual,
			})
		}

		// Margins realised by the balanced flows feed the output solve, so
		// the accounting always reflects the flow matrix actually produced.
		for m := range sectors {
			rows, cols := flows.RowSums(m), flows.ColSums(m)
			for i := range regions {
				internalExports.SetAt(m, i, rows[i])
				internalImports.SetAt(m, i, cols[i])
			}
		}

		residual = 0
		for i := range regions {
			if systems[i] == nil {
				continue
			}
			rhs := make([]float64, len(sectors))
			for m := range sectors {
				rhs[m] = finalDemand.At(m, i) + internalExports.At(m, i) + exports.At(m, i) -
					internalImports.At(m, i) - imports.At(m, i)
			}
			x, err := systems[i].Solve(rhs)
			if err != nil {
				return nil, eris.Wrapf(err, "solver: region %q", regions[i])
			}
			for m := range sectors {
				if d := math.Abs(x[m] - output.At(m, i)); d > residual {
					residual = d
				}
				output.SetAt(m, i, x[m])
			}
		}

		if residual < opts.OuterTolerance {
			diag.Converged = true
			break
		}
	}
	diag.Residual = residual

	for _, bd := range diag.Balancing {
		if !bd.Converged {
			w := model.ConvergenceWarning{
				Scope:      "balancing sector " + bd.Sector,
				Iterations: bd.Iterations,
				Residual:   bd.Residual,
			}
			diag.Warnings = append(diag.Warnings, w.Error())
		}
	}
	if !diag.Converged {
		w := model.ConvergenceWarning{
			Scope:      "outer loop",
			Iterations: diag.OuterIterations,
			Residual:   residual,
		}
		diag.Warnings = append(diag.Warnings, w.Error())
	}

	return &model.PeriodResult{
		Period:          inputs.Period,
		Output:          output,
		InternalExports: internalExports,
		InternalImports: internalImports,
		Flows:           flows,
		Diagnostics:     diag,
		InputHash:       hash,
	}, nil
}

// requiredImports derives each region's internal-import requirement from the
// rearranged balance equation m = e + (F + E + Σ_n a_mn X_n - X - M), with
// the sector-wide sum of the parenthesised remainder redistributed in
// proportion to sector employment before the margin is formed. The
// redistribution shares are taken over the regions still in the solve, so
// employment held by an excluded region never strands part of the remainder.
// Negative requirements clamp to zero, and excluded regions get none.
func requiredImports(employment *table.Table, coeffs Coefficients, output, finalDemand, exports, imports, internalExports *table.Table, regions []string, systems []*leontief.System) *table.Table {
	sectors := employment.Sectors()
	demand, _ := table.New(sectors, regions)
	exo := make([]float64, len(regions))
	for m := range sectors {
		var total float64
		for i, region := range regions {
			a := coeffs.ForRegion(region)
			var intermediate float64
			for n := range sectors {
				intermediate += a.At(m, n) * output.At(n, i)
			}
			exo[i] = finalDemand.At(m, i) + exports.At(m, i) + intermediate -
				output.At(m, i) - imports.At(m, i)
			total += exo[i]
		}
		var rowTotal float64
		var active int
		for i := range regions {
			if systems[i] == nil {
				continue
			}
			rowTotal += employment.At(m, i)
			active++
		}
		for i := range regions {
			if systems[i] == nil {
				continue
			}
			share := 1 / float64(active)
			if rowTotal > 0 {
				share = employment.At(m, i) / rowTotal
			}
			req := internalExports.At(m, i) + exo[i] - total*share
			if req < 0 {
				req = 0
			}
			demand.SetAt(m, i, req)
		}
	}
	return demand
}

func sameSectors(want, got []string) error {
	if len(want) != len(got) {
		return eris.Errorf("solver: coefficient matrix has %d sectors, inputs have %d", len(got), len(want))
	}
	for i := range want {
		if want[i] != got[i] {
			return eris.Errorf("solver: coefficient sector %q does not match input sector %q", got[i], want[i])
		}
	}
	return nil
}

func zeroColumn(i int, tables ...*table.Table) {
	for _, t := range tables {
		for m := range t.Sectors() {
			t.SetAt(m, i, 0)
		}
	}
}
