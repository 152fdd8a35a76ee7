package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cwbudde/fireflyviz/internal/firefly"
	"github.com/cwbudde/fireflyviz/internal/objective"
	"gopkg.in/yaml.v3"
)

// RunConfig describes one optimization run as stored in a YAML file.
type RunConfig struct {
	Objective string             `yaml:"objective" json:"objective"`
	Dimension int                `yaml:"dimension" json:"dimension"`
	Seed      int64              `yaml:"seed" json:"seed"`
	LogLevel  string             `yaml:"log_level,omitempty" json:"-"` // Empty keeps the --log-level flag
	Params    firefly.Parameters `yaml:"params" json:"params"`
	Server    ServerConfig       `yaml:"server" json:"-"`
}

// ServerConfig holds settings for the animation service.
type ServerConfig struct {
	Addr     string        `yaml:"addr"`
	DataDir  string        `yaml:"data_dir"`
	Interval time.Duration `yaml:"interval"` // Wall-clock time between animated steps
}

// Default returns the configuration of the interactive example.
func Default() *RunConfig {
	return &RunConfig{
		Objective: "example",
		Dimension: 1,
		Params:    firefly.DefaultParameters(),
		Server: ServerConfig{
			Addr:     ":8080",
			DataDir:  "./data",
			Interval: 500 * time.Millisecond,
		},
	}
}

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ParseYAML parses a RunConfig from YAML bytes and validates it. Fields
// missing from the document keep their defaults; missing bounds are taken
// from the objective's suggested search range.
func ParseYAML(data []byte) (*RunConfig, error) {
	cfg := Default()
	cfg.Params.Lower = nil
	cfg.Params.Upper = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	def, err := objective.Lookup(cfg.Objective)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Params.Lower == nil {
		cfg.Params.Lower = []float64{def.Lower}
	}
	if cfg.Params.Upper == nil {
		cfg.Params.Upper = []float64{def.Upper}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the objective, dimension and algorithm parameters.
func (c *RunConfig) Validate() error {
	def, err := objective.Lookup(c.Objective)
	if err != nil {
		return err
	}
	if err := def.CheckDimension(c.Dimension); err != nil {
		return err
	}
	if err := c.Params.Validate(c.Dimension); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	if c.Server.Interval < 0 {
		return fmt.Errorf("server.interval cannot be negative")
	}
	return nil
}

// Func resolves the configured objective, guarded against NaN results.
func (c *RunConfig) Func() (objective.Func, error) {
	def, err := objective.Lookup(c.Objective)
	if err != nil {
		return nil, err
	}
	return objective.Guard(def.Func), nil
}

// Marshal renders the configuration back to YAML.
func (c *RunConfig) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
