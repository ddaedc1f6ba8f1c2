// Package gravity implements the doubly-constrained spatial interaction
// model: it distributes each region's supply and demand for a sector across
// trading partners by distance deterrence, with balancing factors solved by
// iterative proportional fitting (the Furness procedure).
//
// The package is pure computation. It never logs; convergence state is
// returned as Diagnostics for the caller to report.
package gravity

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/griff-rees/estios/internal/distance"
	"github.com/griff-rees/estios/internal/model"
)

// Deterrence is a monotonically decreasing function of distance in
// kilometres, weighting the attractiveness of a trading pair.
type Deterrence func(km float64) float64

// Exponential returns f(d) = exp(-beta * d).
func Exponential(beta float64) Deterrence {
	return func(km float64) float64 { return math.Exp(-beta * km) }
}

// PowerLaw returns f(d) = d^-beta.
func PowerLaw(beta float64) Deterrence {
	return func(km float64) float64 { return math.Pow(km, -beta) }
}

// ForOptions builds the deterrence function selected by the solve options.
func ForOptions(opts model.SolveOptions) (Deterrence, error) {
	if opts.DecayParameter <= 0 {
		return nil, eris.New("gravity: decay parameter must be positive")
	}
	switch opts.Deterrence {
	case model.DeterrenceExponential:
		return Exponential(opts.DecayParameter), nil
	case model.DeterrencePower:
		return PowerLaw(opts.DecayParameter), nil
	default:
		return nil, eris.Errorf("gravity: unknown deterrence function %q", opts.Deterrence)
	}
}

// Diagnostics reports how the balancing iteration ended.
type Diagnostics struct {
	Converged  bool
	Iterations int
	Residual   float64 // max abs change in any balancing factor, last iteration
}

// Balance computes the flow matrix y_ij = A_i * B_j * supply_i * demand_j *
// f(d_ij) whose rows sum to supply and columns sum to demand, by iterating
// the balancing-factor updates
//
//	A_i = 1 / sum_j(B_j * demand_j * f(d_ij))
//	B_j = 1 / sum_i(A_i * supply_i * f(d_ij))
//
// until the largest absolute factor change falls below tol or maxIter is
// reached. Self-flows (i == j) are excluded. A region with zero supply or
// demand produces zero flows on its margin; a zero update denominator
// yields a zero factor rather than a division error.
//
// On a spent iteration budget the best-available matrix is returned with
// Diagnostics.Converged false; the caller decides whether that is a
// ConvergenceWarning or a failure. maxIter of zero returns the flows
// implied by uniform factors A = B = 1.
func Balance(supply, demand []float64, dist *distance.Matrix, f Deterrence, tol float64, maxIter int) ([][]float64, Diagnostics, error) {
	n := dist.Len()
	if len(supply) != n || len(demand) != n {
		return nil, Diagnostics{}, eris.Errorf(
			"gravity: %d supply and %d demand entries for %d regions", len(supply), len(demand), n)
	}
	for i := 0; i < n; i++ {
		if supply[i] < 0 || demand[i] < 0 {
			return nil, Diagnostics{}, eris.Errorf(
				"gravity: negative margin for region %q", dist.Regions()[i])
		}
	}

	// Deterrence weights, zero on the diagonal so self-flow never forms.
	w := make([][]float64, n)
	for i := range w {
		w[i] = make([]float64, n)
		for j := range w[i] {
			if i != j {
				w[i][j] = f(dist.At(i, j))
			}
		}
	}

	a := ones(n)
	b := ones(n)
	diag := Diagnostics{Residual: math.Inf(1)}

	for it := 0; it < maxIter; it++ {
		var change float64

		for i := 0; i < n; i++ {
			var denom float64
			for j := 0; j < n; j++ {
				denom += b[j] * demand[j] * w[i][j]
			}
			next := 0.0
			if denom > 0 {
				next = 1 / denom
			}
			change = math.Max(change, math.Abs(next-a[i]))
			a[i] = next
		}

		for j := 0; j < n; j++ {
			var denom float64
			for i := 0; i < n; i++ {
				denom += a[i] * supply[i] * w[i][j]
			}
			next := 0.0
			if denom > 0 {
				next = 1 / denom
			}
			change = math.Max(change, math.Abs(next-b[j]))
			b[j] = next
		}

		diag.Iterations = it + 1
		diag.Residual = change
		if change < tol {
			diag.Converged = true
			break
		}
	}

	flows := make([][]float64, n)
	for i := range flows {
		flows[i] = make([]float64, n)
		for j := range flows[i] {
			flows[i][j] = a[i] * b[j] * supply[i] * demand[j] * w[i][j]
		}
	}
	return flows, diag, nil
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}
