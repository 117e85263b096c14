package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-stmt-graph/internal/log"
	"github.com/l3aro/go-stmt-graph/pkg/analysis"
)

// Output formats
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Config holds all configuration for sgraph
type Config struct {
	// Encoding of written graphs
	Format string `yaml:"format" env:"SGRAPH_FORMAT"`

	// Attach code and variable names to nodes and edges
	Debug bool `yaml:"debug" env:"SGRAPH_DEBUG"`

	// Normalization cap for upper guard bounds and buffer sizes
	UpperBoundCap int `yaml:"upper_bound_cap" env:"SGRAPH_UPPER_BOUND_CAP"`

	// Batch settings
	Workers    int      `yaml:"workers" env:"SGRAPH_WORKERS"`
	Extensions []string `yaml:"extensions" env:"SGRAPH_EXTENSIONS"`
	OutputDir  string   `yaml:"output_dir" env:"SGRAPH_OUTPUT_DIR"`

	// Logging
	LogLevel string `yaml:"log_level" env:"SGRAPH_LOG_LEVEL"`
	LogJSON  bool   `yaml:"log_json" env:"SGRAPH_LOG_JSON"`
	Verbose  bool   `yaml:"verbose" env:"SGRAPH_VERBOSE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Format:        FormatJSON,
		Debug:         true,
		UpperBoundCap: 100,
		Workers:       4,
		Extensions:    []string{".json", ".c"},
		OutputDir:     "graphs",
		LogLevel:      "info",
		LogJSON:       false,
		Verbose:       false,
	}
}

// GlobalConfigFilePath returns the global config file path (~/.sgraph/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ProjectConfigFilePath()
	}
	return filepath.Join(home, ".sgraph", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.sgraph/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(".sgraph", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.sgraph/config.yaml)
// 3. Global config (~/.sgraph/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigFilePath(), ProjectConfigFilePath()} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SGRAPH_FORMAT"); v != "" {
		cfg.Format = strings.ToLower(v)
	}
	if v := os.Getenv("SGRAPH_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("SGRAPH_UPPER_BOUND_CAP"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.UpperBoundCap = i
		}
	}
	if v := os.Getenv("SGRAPH_WORKERS"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Workers = i
		}
	}
	if v := os.Getenv("SGRAPH_EXTENSIONS"); v != "" {
		cfg.Extensions = splitList(v)
	}
	if v := os.Getenv("SGRAPH_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("SGRAPH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SGRAPH_LOG_JSON"); v != "" {
		cfg.LogJSON = parseBool(v)
	}
	if v := os.Getenv("SGRAPH_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	switch c.Format {
	case FormatJSON, FormatMsgpack:
	default:
		return fmt.Errorf("invalid format: %s (must be 'json' or 'msgpack')", c.Format)
	}
	if c.UpperBoundCap <= 0 {
		return fmt.Errorf("upper_bound_cap must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("extensions must not be empty")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("invalid extension %q (must start with '.')", ext)
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// AnalysisOptions returns the pipeline options this configuration selects.
func (c *Config) AnalysisOptions() analysis.Options {
	return analysis.Options{UpperBoundCap: c.UpperBoundCap, Debug: c.Debug}
}

// Level returns the configured log level, falling back to Info.
func (c *Config) Level() log.Level {
	if c.Verbose {
		return log.DebugLevel
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// parseInt attempts to parse a string as int
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0
	}
	return i
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
