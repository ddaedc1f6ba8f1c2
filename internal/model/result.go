package model

import (
	"github.com/griff-rees/estios/internal/table"
)

// BalancingDiagnostics records the outcome of the flow balancing for one
// sector in the final outer iteration.
type BalancingDiagnostics struct {
	Sector     string  `json:"sector"`
	Converged  bool    `json:"converged"`
	Iterations int     `json:"iterations"`
	Residual   float64 `json:"residual"`
}

// RegionFailure records a region excluded from a period's aggregate results,
// with the error that excluded it.
type RegionFailure struct {
	Region string `json:"region"`
	Reason string `json:"reason"`
}

// PeriodDiagnostics summarises how a period's joint solve went. Warnings
// carry rendered ConvergenceWarning messages; FailedRegions carry
// SingularSystemError scopes. Nothing here is fatal by itself.
type PeriodDiagnostics struct {
	Converged       bool                   `json:"converged"`
	OuterIterations int                    `json:"outer_iterations"`
	Residual        float64                `json:"residual"`
	Balancing       []BalancingDiagnostics `json:"balancing,omitempty"`
	FailedRegions   []RegionFailure        `json:"failed_regions,omitempty"`
	Warnings        []string               `json:"warnings,omitempty"`
}

// Complete reports whether every region of the period solved.
func (d PeriodDiagnostics) Complete() bool {
	return len(d.FailedRegions) == 0
}

// PeriodResult is the immutable outcome of one period's solve. Once
// returned it is never mutated; the caching layer persists it keyed by
// InputHash.
type PeriodResult struct {
	Period          Period            `json:"period"`
	Output          *table.Table      `json:"output"`           // X_i^m
	InternalExports *table.Table      `json:"internal_exports"` // e_i^m
	InternalImports *table.Table      `json:"internal_imports"` // m_i^m
	Flows           *table.Flows      `json:"flows"`            // y_m,i->j
	Diagnostics     PeriodDiagnostics `json:"diagnostics"`
	InputHash       string            `json:"input_hash"`
}
