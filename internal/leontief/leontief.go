// Package leontief solves the regional input-output balance system
// (I - A) X = F + e + E - m - M by direct LU factorization of the Leontief
// matrix. Factorization happens once per coefficient matrix; solves against
// different right-hand sides reuse it, so the type is safe for concurrent
// Solve calls after construction.
package leontief

import (
	"gonum.org/v1/gonum/mat"

	"github.com/rotisserie/eris"

	"github.com/griff-rees/estios/internal/coeff"
	"github.com/griff-rees/estios/internal/model"
)

// System is a factorized (I - A) system for one technical-coefficient
// matrix.
type System struct {
	sectors []string
	lu      mat.LU
	rcond   float64
}

// NewSystem builds and factorizes (I - A). It fails with
// SingularSystemError when the reciprocal condition number of (I - A) falls
// below threshold: a degenerate coefficient configuration must be surfaced,
// not silently approximated. The error's Region field is left empty; the
// caller attributes it to the region whose coefficients these are.
func NewSystem(c *coeff.Matrix, threshold float64) (*System, error) {
	if threshold <= 0 {
		return nil, eris.New("leontief: singularity threshold must be positive")
	}
	s := c.Dim()
	if s == 0 {
		return nil, eris.New("leontief: empty coefficient matrix")
	}

	ia := mat.NewDense(s, s, nil)
	for m := 0; m < s; m++ {
		for n := 0; n < s; n++ {
			v := -c.At(m, n)
			if m == n {
				v++
			}
			ia.Set(m, n, v)
		}
	}

	sys := &System{sectors: c.Sectors()}
	sys.lu.Factorize(ia)

	cond := sys.lu.Cond()
	sys.rcond = 1 / cond
	if sys.rcond < threshold {
		return nil, &model.SingularSystemError{RCond: sys.rcond}
	}
	return sys, nil
}

// Sectors returns the sector labels in system order.
func (s *System) Sectors() []string { return s.sectors }

// RCond returns the reciprocal condition number of the factorized system.
func (s *System) RCond() float64 { return s.rcond }

// Solve returns X with (I - A) X = rhs, for rhs in sector order.
func (s *System) Solve(rhs []float64) ([]float64, error) {
	if len(rhs) != len(s.sectors) {
		return nil, eris.Errorf("leontief: rhs has %d entries for %d sectors", len(rhs), len(s.sectors))
	}
	b := mat.NewVecDense(len(rhs), append([]float64(nil), rhs...))
	var x mat.VecDense
	if err := s.lu.SolveVecTo(&x, false, b); err != nil {
		return nil, eris.Wrap(err, "leontief: solve")
	}
	return x.RawVector().Data, nil
}
