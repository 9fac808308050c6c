package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// AppConfig represents the application configuration
type AppConfig struct {
	Schema SchemaConfig `toml:"schema"`
}

// SchemaConfig selects the classification schema. Either a builtin version
// is named, or the value lists are given in full together with a version
// label of their own.
type SchemaConfig struct {
	Version     string   `toml:"version"`
	Tools       []string `toml:"tools"`
	Scenarios   []string `toml:"scenarios"`
	DataSources []string `toml:"data_sources"`
}

func (s *SchemaConfig) isCustom() bool {
	return len(s.Tools) > 0 || len(s.Scenarios) > 0 || len(s.DataSources) > 0
}

// ToSchema converts the configuration into the domain schema
func (s *SchemaConfig) ToSchema() (types.EnumSchema, error) {
	if !s.isCustom() {
		if s.Version == "" {
			return types.DefaultSchema, nil
		}
		schema, err := types.LookupSchema(types.SchemaVersion(s.Version))
		if err != nil {
			return types.EnumSchema{}, goerr.Wrap(ErrInvalidConfig, "unknown schema version", goerr.V(ValueKey, s.Version))
		}
		return schema, nil
	}

	schema := types.EnumSchema{
		Version: types.SchemaVersion(s.Version),
	}
	for _, v := range s.Tools {
		schema.Tools = append(schema.Tools, types.Tool(v))
	}
	for _, v := range s.Scenarios {
		schema.Scenarios = append(schema.Scenarios, types.Scenario(v))
	}
	for _, v := range s.DataSources {
		schema.DataSources = append(schema.DataSources, types.DataSource(v))
	}
	if err := schema.Validate(); err != nil {
		return types.EnumSchema{}, goerr.Wrap(ErrInvalidConfig, "invalid custom schema", goerr.V("cause", err.Error()))
	}
	return schema, nil
}

// Validate checks if the AppConfig is valid
func (a *AppConfig) Validate() error {
	if _, err := a.Schema.ToSchema(); err != nil {
		return goerr.Wrap(err, "invalid schema section")
	}
	return nil
}

// LoadAppConfiguration loads the application configuration from a TOML file
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "config file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var config AppConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML config",
			goerr.V(ConfigPathKey, path),
			goerr.V("cause", err.Error()))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &config, nil
}

// App holds the CLI flag pointing at the TOML configuration
type App struct {
	path string
}

func (x *App) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to TOML configuration file",
			Category:    "Config",
			Sources:     cli.EnvVars("TRACEDESK_CONFIG"),
			Destination: &x.path,
		},
	}
}

func (x App) LogValue() slog.Value {
	return slog.GroupValue(slog.String("path", x.path))
}

// Schema returns the configured schema, or the default one when no file is
// given
func (x *App) Schema() (types.EnumSchema, error) {
	if x.path == "" {
		return types.DefaultSchema, nil
	}

	cfg, err := LoadAppConfiguration(x.path)
	if err != nil {
		return types.EnumSchema{}, err
	}
	return cfg.Schema.ToSchema()
}
