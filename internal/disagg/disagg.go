// Package disagg distributes national sector accounts across regions.
//
// Output and international exports scale by each region's share of national
// sector employment (X_i^m = X_*^m * Q_i^m / Q_*^m); final demand and
// international imports scale by population share (F_i^m = F_*^m * P_i/P_*).
// All functions are pure: they read their inputs and return fresh tables.
package disagg

import (
	"github.com/rotisserie/eris"

	"github.com/griff-rees/estios/internal/model"
	"github.com/griff-rees/estios/internal/table"
)

// Output estimates each region's sector output from national output and
// regional employment shares.
//
// A sector present in the employment table but absent from the national
// output table is a schema mismatch and fails with DataGapError. A zero
// national employment total for a sector is a DataGapError when any region
// reports employment in it (the share is undefined); with no regional
// presence either, the sector's regional output is zero everywhere.
func Output(national model.NationalAccounts, employment *table.Table) (*table.Table, error) {
	return byEmploymentShare(national.Output, national.Employment, employment, "output")
}

// Exports estimates regional international exports from national exports
// and employment shares, under the same gap rules as Output.
func Exports(national model.NationalAccounts, employment *table.Table) (*table.Table, error) {
	return byEmploymentShare(national.Exports, national.Employment, employment, "exports")
}

func byEmploymentShare(totals, nationalEmployment map[string]float64, employment *table.Table, what string) (*table.Table, error) {
	if employment == nil {
		return nil, eris.Errorf("disagg: employment table required for %s", what)
	}
	out, err := table.New(employment.Sectors(), employment.Regions())
	if err != nil {
		return nil, eris.Wrapf(err, "disagg: %s", what)
	}
	for m, sector := range employment.Sectors() {
		total, ok := totals[sector]
		if !ok {
			return nil, &model.DataGapError{
				Sector: sector,
				Reason: "absent from national " + what + " table",
			}
		}
		qNational, ok := nationalEmployment[sector]
		if !ok {
			return nil, &model.DataGapError{
				Sector: sector,
				Reason: "absent from national employment table",
			}
		}
		if qNational == 0 {
			if regional := employment.RowTotal(m); regional > 0 {
				return nil, &model.DataGapError{
					Sector: sector,
					Reason: "zero national employment with nonzero regional employment",
				}
			}
			continue // sector inactive everywhere: regional values stay zero
		}
		for i := range employment.Regions() {
			out.SetAt(m, i, total*employment.At(m, i)/qNational)
		}
	}
	return out, nil
}

// FinalDemand estimates regional final demand from national final demand
// and population shares over the given sector and region lists.
func FinalDemand(national model.NationalAccounts, population map[string]float64, sectors, regions []string) (*table.Table, error) {
	return byPopulationShare(national.FinalDemand, national.Population, population, sectors, regions, "final demand")
}

// Imports estimates regional international imports from national imports
// and population shares.
func Imports(national model.NationalAccounts, population map[string]float64, sectors, regions []string) (*table.Table, error) {
	return byPopulationShare(national.Imports, national.Population, population, sectors, regions, "imports")
}

func byPopulationShare(totals map[string]float64, nationalPopulation float64, population map[string]float64, sectors, regions []string, what string) (*table.Table, error) {
	if nationalPopulation <= 0 {
		return nil, &model.DataGapError{Reason: "national population must be positive to scale " + what}
	}
	out, err := table.New(sectors, regions)
	if err != nil {
		return nil, eris.Wrapf(err, "disagg: %s", what)
	}
	shares := make([]float64, len(regions))
	for i, region := range regions {
		p, ok := population[region]
		if !ok {
			return nil, &model.DataGapError{
				Region: region,
				Reason: "absent from regional population table",
			}
		}
		shares[i] = p / nationalPopulation
	}
	for m, sector := range sectors {
		total, ok := totals[sector]
		if !ok {
			return nil, &model.DataGapError{
				Sector: sector,
				Reason: "absent from national " + what + " table",
			}
		}
		for i := range regions {
			out.SetAt(m, i, total*shares[i])
		}
	}
	return out, nil
}
