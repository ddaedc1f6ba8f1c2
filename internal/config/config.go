// Package config loads application configuration from file, environment and
// defaults, and installs the global logger.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/griff-rees/estios/internal/model"
	"github.com/griff-rees/estios/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Model  ModelConfig  `yaml:"model" mapstructure:"model"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Solve  SolveConfig  `yaml:"solve" mapstructure:"solve"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the result cache backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Path        string            `yaml:"path" mapstructure:"path"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ModelConfig mirrors the solve option keys so a config file or ESTIOS_
// environment variables can override them globally. Scenario files may
// override them again per run.
type ModelConfig struct {
	DeterrenceFunction     string  `yaml:"deterrence_function" mapstructure:"deterrence_function"`
	DecayParameter         float64 `yaml:"decay_parameter" mapstructure:"decay_parameter"`
	BalancingTolerance     float64 `yaml:"balancing_tolerance" mapstructure:"balancing_tolerance"`
	BalancingMaxIterations int     `yaml:"balancing_max_iterations" mapstructure:"balancing_max_iterations"`
	OuterTolerance         float64 `yaml:"outer_tolerance" mapstructure:"outer_tolerance"`
	OuterMaxIterations     int     `yaml:"outer_max_iterations" mapstructure:"outer_max_iterations"`
	SingularityThreshold   float64 `yaml:"singularity_threshold" mapstructure:"singularity_threshold"`
}

// Options converts the config keys into solver options.
func (m ModelConfig) Options() model.SolveOptions {
	return model.SolveOptions{
		Deterrence:             model.DeterrenceKind(m.DeterrenceFunction),
		DecayParameter:         m.DecayParameter,
		BalancingTolerance:     m.BalancingTolerance,
		BalancingMaxIterations: m.BalancingMaxIterations,
		OuterTolerance:         m.OuterTolerance,
		OuterMaxIterations:     m.OuterMaxIterations,
		SingularityThreshold:   m.SingularityThreshold,
	}
}

// FetchConfig configures dataset downloads.
type FetchConfig struct {
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SolveConfig configures the solve command.
type SolveConfig struct {
	Parallelism int  `yaml:"parallelism" mapstructure:"parallelism"`
	NoCache     bool `yaml:"no_cache" mapstructure:"no_cache"`
}

// ServerConfig configures the results API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ESTIOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	defaults := model.DefaultSolveOptions()
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "estios.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("solve.parallelism", 4)
	v.SetDefault("fetch.temp_dir", "/tmp/estios")
	v.SetDefault("fetch.user_agent", "estios/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("model.deterrence_function", string(defaults.Deterrence))
	v.SetDefault("model.decay_parameter", defaults.DecayParameter)
	v.SetDefault("model.balancing_tolerance", defaults.BalancingTolerance)
	v.SetDefault("model.balancing_max_iterations", defaults.BalancingMaxIterations)
	v.SetDefault("model.outer_tolerance", defaults.OuterTolerance)
	v.SetDefault("model.outer_max_iterations", defaults.OuterMaxIterations)
	v.SetDefault("model.singularity_threshold", defaults.SingularityThreshold)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration can support the given command mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}

	if err := c.Model.Options().Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	switch mode {
	case "solve":
		if c.Solve.Parallelism < 1 || c.Solve.Parallelism > 64 {
			problems = append(problems, "solve.parallelism must be between 1 and 64")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "results":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
