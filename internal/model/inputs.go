package model

import (
	"github.com/rotisserie/eris"

	"github.com/griff-rees/estios/internal/table"
)

// NationalAccounts holds the national-level totals for one period, keyed by
// sector label. Population is the single national population count used to
// disaggregate final demand and international imports.
type NationalAccounts struct {
	Output      map[string]float64 `json:"output"`       // X_*^m
	Employment  map[string]float64 `json:"employment"`   // Q_*^m
	FinalDemand map[string]float64 `json:"final_demand"` // F_*^m
	Exports     map[string]float64 `json:"exports"`      // E_*^m
	Imports     map[string]float64 `json:"imports"`      // M_*^m
	Population  float64            `json:"population"`   // P_*
}

// PeriodInputs is the complete immutable input set for one period's solve.
type PeriodInputs struct {
	Period     Period             `json:"period"`
	National   NationalAccounts   `json:"national"`
	Employment *table.Table       `json:"employment"` // Q_i^m
	Population map[string]float64 `json:"population"` // P_i
}

// Validate checks the structural invariants the solver relies on:
// non-negative quantities and a present employment table.
func (in PeriodInputs) Validate() error {
	if !in.Period.Valid() {
		return eris.Errorf("model: invalid period %s", in.Period)
	}
	if in.Employment == nil {
		return eris.New("model: employment table is required")
	}
	if err := in.Employment.ValidateNonNegative(); err != nil {
		return eris.Wrap(err, "model: employment")
	}
	for name, m := range map[string]map[string]float64{
		"output":       in.National.Output,
		"employment":   in.National.Employment,
		"final demand": in.National.FinalDemand,
		"exports":      in.National.Exports,
		"imports":      in.National.Imports,
	} {
		for sector, v := range m {
			if v < 0 {
				return eris.Errorf("model: negative national %s for sector %q", name, sector)
			}
		}
	}
	if in.National.Population < 0 {
		return eris.New("model: negative national population")
	}
	for region, v := range in.Population {
		if v < 0 {
			return eris.Errorf("model: negative population for region %q", region)
		}
	}
	return nil
}
