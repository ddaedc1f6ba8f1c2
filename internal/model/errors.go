package model

import "fmt"

// DataGapError reports missing or inconsistent input data: a sector absent
// from a national table, a zero national denominator with nonzero regional
// presence, or a schema mismatch between tables.
type DataGapError struct {
	Sector string
	Region string
	Reason string
}

func (e *DataGapError) Error() string {
	switch {
	case e.Sector != "" && e.Region != "":
		return fmt.Sprintf("data gap for sector %q region %q: %s", e.Sector, e.Region, e.Reason)
	case e.Sector != "":
		return fmt.Sprintf("data gap for sector %q: %s", e.Sector, e.Reason)
	case e.Region != "":
		return fmt.Sprintf("data gap for region %q: %s", e.Region, e.Reason)
	default:
		return "data gap: " + e.Reason
	}
}

// SingularSystemError reports a numerically singular or ill-conditioned
// (I - A) system for one region. It is fatal for that region's solve in the
// period and is surfaced, never approximated around.
type SingularSystemError struct {
	Region string
	RCond  float64 // reciprocal condition number of (I - A)
}

func (e *SingularSystemError) Error() string {
	if e.Region == "" {
		return fmt.Sprintf("singular input-output system (rcond %.3g)", e.RCond)
	}
	return fmt.Sprintf("singular input-output system for region %q (rcond %.3g)", e.Region, e.RCond)
}

// ConvergenceWarning reports that an iterative procedure exhausted its
// iteration budget. It is non-fatal: the best-available result is returned
// with diagnostics flagged unconverged.
type ConvergenceWarning struct {
	Scope      string // e.g. "balancing sector Production", "outer loop"
	Iterations int
	Residual   float64
}

func (e *ConvergenceWarning) Error() string {
	return fmt.Sprintf("%s did not converge after %d iterations (residual %.3g)",
		e.Scope, e.Iterations, e.Residual)
}
