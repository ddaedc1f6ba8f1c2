package scenario

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/griff-rees/estios/internal/distance"
	"github.com/griff-rees/estios/internal/loader"
	"github.com/griff-rees/estios/internal/model"
	"github.com/griff-rees/estios/internal/solver"
)

// Assembled is a scenario with all of its source files read: everything a
// run needs, ready for the orchestrator.
type Assembled struct {
	Coefficients solver.Coefficients
	Distances    *distance.Matrix
	Periods      []model.PeriodInputs
	Options      model.SolveOptions
	Parallelism  int
}

// Assemble reads every data file the scenario names. Relative paths
// resolve against baseDir, normally the scenario file's directory.
func (s *Scenario) Assemble(baseDir string) (*Assembled, error) {
	national, err := loader.ReadIOTable(s.resolve(baseDir, s.Data.IOTable), loader.IOTableOptions{
		SheetName:     s.Data.IOSheet,
		SkipRows:      s.Data.IOSkipRows,
		TotalRowLabel: s.Data.TotalRowLabel,
	})
	if err != nil {
		return nil, err
	}

	centroids, err := s.readCentroids(baseDir)
	if err != nil {
		return nil, err
	}
	dist, err := distance.NewFromCentroids(centroids)
	if err != nil {
		return nil, eris.Wrap(err, "scenario: distances")
	}

	csvOpts := loader.CSVOptions{Windows1252: s.Data.Windows1252}
	population, err := s.readRegionSeries(s.resolve(baseDir, s.Data.Population), csvOpts)
	if err != nil {
		return nil, err
	}

	periods, err := s.ParsedPeriods()
	if err != nil {
		return nil, err
	}
	inputs := make([]model.PeriodInputs, 0, len(periods))
	for _, p := range periods {
		in, err := s.assemblePeriod(baseDir, p, population, csvOpts)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}

	return &Assembled{
		Coefficients: solver.Coefficients{National: national},
		Distances:    dist,
		Periods:      inputs,
		Options:      s.Options(),
		Parallelism:  s.Parallelism,
	}, nil
}

func (s *Scenario) assemblePeriod(baseDir string, p model.Period, population map[string]float64, csvOpts loader.CSVOptions) (model.PeriodInputs, error) {
	empPath := s.resolve(baseDir, PathFor(s.Data.Employment, p))
	empFile, err := os.Open(empPath)
	if err != nil {
		return model.PeriodInputs{}, eris.Wrapf(err, "scenario: period %s employment", p)
	}
	defer empFile.Close() //nolint:errcheck
	employment, err := loader.ReadSectorTable(empFile, csvOpts)
	if err != nil {
		return model.PeriodInputs{}, eris.Wrapf(err, "scenario: period %s employment", p)
	}

	accPath := s.resolve(baseDir, PathFor(s.Data.NationalAccounts, p))
	accFile, err := os.Open(accPath)
	if err != nil {
		return model.PeriodInputs{}, eris.Wrapf(err, "scenario: period %s national accounts", p)
	}
	defer accFile.Close() //nolint:errcheck
	national, err := loader.ReadNationalAccounts(accFile)
	if err != nil {
		return model.PeriodInputs{}, eris.Wrapf(err, "scenario: period %s national accounts", p)
	}

	in := model.PeriodInputs{
		Period:     p,
		National:   national,
		Employment: employment,
		Population: population,
	}
	if err := in.Validate(); err != nil {
		return model.PeriodInputs{}, eris.Wrapf(err, "scenario: period %s", p)
	}
	return in, nil
}

func (s *Scenario) readCentroids(baseDir string) (map[string]geom.Coord, error) {
	if s.Data.Shapefile != "" {
		return loader.ReadShapefileCentroids(s.resolve(baseDir, s.Data.Shapefile), s.Data.ShapefileNameField)
	}
	f, err := os.Open(s.resolve(baseDir, s.Data.Centroids))
	if err != nil {
		return nil, eris.Wrap(err, "scenario: centroids")
	}
	defer f.Close() //nolint:errcheck
	return loader.ReadCentroids(f)
}

func (s *Scenario) readRegionSeries(path string, opts loader.CSVOptions) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "scenario: population")
	}
	defer f.Close() //nolint:errcheck
	return loader.ReadRegionSeries(f, opts)
}

func (s *Scenario) resolve(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
