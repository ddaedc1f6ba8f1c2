package model

import "github.com/rotisserie/eris"

// DeterrenceKind selects the distance-decay function of the gravity model.
type DeterrenceKind string

const (
	// DeterrenceExponential is f(d) = exp(-beta * d).
	DeterrenceExponential DeterrenceKind = "exponential"
	// DeterrencePower is f(d) = d^-beta.
	DeterrencePower DeterrenceKind = "power"
)

// Default decay parameters, matching the calibration the model was
// published with (distances in kilometres).
const (
	DefaultExponentialBeta = 0.0002
	DefaultPowerBeta       = 1.5
)

// SolveOptions configures one period solve. The zero value is not usable;
// start from DefaultSolveOptions.
type SolveOptions struct {
	Deterrence             DeterrenceKind `json:"deterrence_function" mapstructure:"deterrence_function"`
	DecayParameter         float64        `json:"decay_parameter" mapstructure:"decay_parameter"`
	BalancingTolerance     float64        `json:"balancing_tolerance" mapstructure:"balancing_tolerance"`
	BalancingMaxIterations int            `json:"balancing_max_iterations" mapstructure:"balancing_max_iterations"`
	OuterTolerance         float64        `json:"outer_tolerance" mapstructure:"outer_tolerance"`
	OuterMaxIterations     int            `json:"outer_max_iterations" mapstructure:"outer_max_iterations"`
	SingularityThreshold   float64        `json:"singularity_threshold" mapstructure:"singularity_threshold"`
}

// DefaultSolveOptions returns the standard solve configuration.
func DefaultSolveOptions() SolveOptions {
	return SolveOptions{
		Deterrence:             DeterrenceExponential,
		DecayParameter:         DefaultExponentialBeta,
		BalancingTolerance:     1e-9,
		BalancingMaxIterations: 100,
		OuterTolerance:         1e-6,
		OuterMaxIterations:     15,
		SingularityThreshold:   1e-12,
	}
}

// Validate checks option ranges. BalancingMaxIterations may be zero, in
// which case balancing reports non-convergence with uniform factors rather
// than failing.
func (o SolveOptions) Validate() error {
	switch o.Deterrence {
	case DeterrenceExponential, DeterrencePower:
	default:
		return eris.Errorf("model: unknown deterrence function %q", o.Deterrence)
	}
	if o.DecayParameter <= 0 {
		return eris.New("model: decay parameter must be positive")
	}
	if o.BalancingTolerance <= 0 {
		return eris.New("model: balancing tolerance must be positive")
	}
	if o.BalancingMaxIterations < 0 {
		return eris.New("model: balancing max iterations must not be negative")
	}
	if o.OuterTolerance <= 0 {
		return eris.New("model: outer tolerance must be positive")
	}
	if o.OuterMaxIterations <= 0 {
		return eris.New("model: outer max iterations must be positive")
	}
	if o.SingularityThreshold <= 0 {
		return eris.New("model: singularity threshold must be positive")
	}
	return nil
}
