// Package scenario reads YAML run descriptions: which periods to solve,
// where the source data files live, and any solve option overrides. A
// scenario is the unit a whole run is configured by; everything not set in
// it falls back to the model defaults.
package scenario

import (
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/griff-rees/estios/internal/model"
)

// DataPaths locates the source files of a scenario. Employment and
// national accounts vary by period; a "{period}" placeholder in their
// paths expands to the period label (e.g. 2017Q3). Centroids come either
// from a JSON file or from a boundary shapefile, not both.
type DataPaths struct {
	IOTable            string `yaml:"io_table"`
	IOSheet            string `yaml:"io_sheet"`
	IOSkipRows         int    `yaml:"io_skip_rows"`
	TotalRowLabel      string `yaml:"total_row_label"`
	Employment         string `yaml:"employment"`
	Population         string `yaml:"population"`
	NationalAccounts   string `yaml:"national_accounts"`
	Centroids          string `yaml:"centroids"`
	Shapefile          string `yaml:"shapefile"`
	ShapefileNameField string `yaml:"shapefile_name_field"`
	Windows1252        bool   `yaml:"windows1252"`
}

// ModelOverrides carries solve options set in the scenario file. Unset
// fields keep their defaults.
type ModelOverrides struct {
	Deterrence             *string  `yaml:"deterrence_function"`
	DecayParameter         *float64 `yaml:"decay_parameter"`
	BalancingTolerance     *float64 `yaml:"balancing_tolerance"`
	BalancingMaxIterations *int     `yaml:"balancing_max_iterations"`
	OuterTolerance         *float64 `yaml:"outer_tolerance"`
	OuterMaxIterations     *int     `yaml:"outer_max_iterations"`
	SingularityThreshold   *float64 `yaml:"singularity_threshold"`
}

// Apply lays the overrides over base and returns the result.
func (o ModelOverrides) Apply(base model.SolveOptions) model.SolveOptions {
	if o.Deterrence != nil {
		base.Deterrence = model.DeterrenceKind(*o.Deterrence)
	}
	if o.DecayParameter != nil {
		base.DecayParameter = *o.DecayParameter
	}
	if o.BalancingTolerance != nil {
		base.BalancingTolerance = *o.BalancingTolerance
	}
	if o.BalancingMaxIterations != nil {
		base.BalancingMaxIterations = *o.BalancingMaxIterations
	}
	if o.OuterTolerance != nil {
		base.OuterTolerance = *o.OuterTolerance
	}
	if o.OuterMaxIterations != nil {
		base.OuterMaxIterations = *o.OuterMaxIterations
	}
	if o.SingularityThreshold != nil {
		base.SingularityThreshold = *o.SingularityThreshold
	}
	return base
}

// Scenario is one parsed run description.
type Scenario struct {
	Name        string         `yaml:"name"`
	Periods     []string       `yaml:"periods"`
	Data        DataPaths      `yaml:"data"`
	Model       ModelOverrides `yaml:"model"`
	Parallelism int            `yaml:"parallelism"`
}

// Parse reads a scenario from r. Unknown fields are rejected so typos in
// scenario files fail loudly instead of silently keeping a default.
func Parse(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, eris.Wrap(err, "scenario: decode yaml")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a scenario from a file.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scenario: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Parse(f)
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return eris.New("scenario: name is required")
	}
	if len(s.Periods) == 0 {
		return eris.New("scenario: at least one period is required")
	}
	if _, err := s.ParsedPeriods(); err != nil {
		return err
	}
	if s.Data.IOTable == "" {
		return eris.New("scenario: data.io_table is required")
	}
	if s.Data.Employment == "" {
		return eris.New("scenario: data.employment is required")
	}
	if s.Data.Population == "" {
		return eris.New("scenario: data.population is required")
	}
	if s.Data.NationalAccounts == "" {
		return eris.New("scenario: data.national_accounts is required")
	}
	if s.Data.Centroids == "" && s.Data.Shapefile == "" {
		return eris.New("scenario: one of data.centroids or data.shapefile is required")
	}
	if s.Data.Centroids != "" && s.Data.Shapefile != "" {
		return eris.New("scenario: data.centroids and data.shapefile are mutually exclusive")
	}
	if s.Data.Shapefile != "" && s.Data.ShapefileNameField == "" {
		return eris.New("scenario: data.shapefile_name_field is required with data.shapefile")
	}
	if s.Parallelism < 0 {
		return eris.New("scenario: parallelism must not be negative")
	}
	if err := s.Options().Validate(); err != nil {
		return eris.Wrap(err, "scenario: model overrides")
	}
	return nil
}

// ParsedPeriods returns the scenario's periods in file order.
func (s *Scenario) ParsedPeriods() ([]model.Period, error) {
	periods := make([]model.Period, 0, len(s.Periods))
	seen := make(map[model.Period]bool, len(s.Periods))
	for _, label := range s.Periods {
		p, err := model.ParsePeriod(label)
		if err != nil {
			return nil, eris.Wrap(err, "scenario: periods")
		}
		if seen[p] {
			return nil, eris.Errorf("scenario: duplicate period %s", p)
		}
		seen[p] = true
		periods = append(periods, p)
	}
	return periods, nil
}

// Options returns the scenario's solve options: the defaults with the
// file's overrides applied.
func (s *Scenario) Options() model.SolveOptions {
	return s.Model.Apply(model.DefaultSolveOptions())
}

// PathFor expands the {period} placeholder in a data path.
func PathFor(path string, p model.Period) string {
	return strings.ReplaceAll(path, "{period}", p.String())
}
