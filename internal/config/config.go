// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/venture-planner/internal/llm"
	"github.com/jonathan/venture-planner/internal/schemas"
)

// Store backends accepted in the "store" field.
var storeBackends = []string{"memory", "file", "sqlite", "postgres"}

// DefaultStorePath is used by the file and sqlite backends when store_path is empty.
const DefaultStorePath = ".venture-planner"

// Config represents the configuration that can be loaded from a JSON or YAML file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Generation
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"` // Gemini API key
	Model  string `json:"model,omitempty" yaml:"model,omitempty"`     // Force one model for every stage
	Tier   string `json:"tier,omitempty" yaml:"tier,omitempty"`       // Force one tier (lite|standard|advanced) for every stage

	// Persistence
	Store       string `json:"store,omitempty" yaml:"store,omitempty"`               // memory|file|sqlite|postgres
	StorePath   string `json:"store_path,omitempty" yaml:"store_path,omitempty"`     // Directory (file) or database file (sqlite)
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"` // PostgreSQL connection URL

	// Pipeline
	Focus            string         `json:"focus,omitempty" yaml:"focus,omitempty"` // Ranking focus
	Pins             map[string]int `json:"pins,omitempty" yaml:"pins,omitempty"`   // Contract version per stage
	Retry            RetryConfig    `json:"retry,omitempty" yaml:"retry,omitempty"`
	BuildModeTimeout Duration       `json:"build_mode_timeout,omitempty" yaml:"build_mode_timeout,omitempty"`
	Checkpoint       bool           `json:"checkpoint,omitempty" yaml:"checkpoint,omitempty"`

	// Behavior
	Addr       string `json:"addr,omitempty" yaml:"addr,omitempty"`               // Server listen address
	UseBrowser bool   `json:"use_browser,omitempty" yaml:"use_browser,omitempty"` // Use headless browser for JS-rendered sources
	Verbose    bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`         // Print detailed debug information
}

// RetryConfig bounds retries of failed provider calls.
type RetryConfig struct {
	MaxAttempts    int      `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	InitialBackoff Duration `json:"initial_backoff,omitempty" yaml:"initial_backoff,omitempty"`
	MaxBackoff     Duration `json:"max_backoff,omitempty" yaml:"max_backoff,omitempty"`
	Multiplier     float64  `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
}

// Duration is a time.Duration written as a string such as "90s" or "2m".
// Plain numbers are read as seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
		return nil
	case string:
		return d.parse(v)
	}
	return fmt.Errorf("invalid duration %s", string(data))
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	if value.Tag == "!!int" || value.Tag == "!!float" {
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.Tier != "" {
		if _, err := llm.ParseTier(c.Tier); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	}

	if c.Store != "" && !contains(storeBackends, c.Store) {
		return fmt.Errorf("config error: 'store' must be one of %s, got %q", strings.Join(storeBackends, ", "), c.Store)
	}
	if c.Store == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("config error: 'database_url' is required for the postgres store")
	}

	for stage, version := range c.Pins {
		if _, err := schemas.Lookup(schemas.Stage(stage), version); err != nil {
			return fmt.Errorf("config error: pin %s=%d: %w", stage, version, err)
		}
	}

	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("config error: 'retry.max_attempts' must be non-negative")
	}
	if c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < 0 {
		return fmt.Errorf("config error: retry backoff must be non-negative")
	}
	if c.Retry.Multiplier != 0 && c.Retry.Multiplier < 1 {
		return fmt.Errorf("config error: 'retry.multiplier' must be at least 1")
	}
	if c.BuildModeTimeout < 0 {
		return fmt.Errorf("config error: 'build_mode_timeout' must be non-negative")
	}

	return nil
}

// ContractPins returns the configured pins applied over the latest contracts.
func (c *Config) ContractPins() schemas.Pins {
	overrides := make(map[schemas.Stage]int, len(c.Pins))
	for stage, version := range c.Pins {
		overrides[schemas.Stage(stage)] = version
	}
	return schemas.LatestPins().With(overrides)
}

// ResolvedStorePath returns the store path, defaulting per backend.
func (c *Config) ResolvedStorePath() string {
	if c.StorePath != "" {
		return c.StorePath
	}
	if c.Store == "sqlite" {
		return filepath.Join(DefaultStorePath, "plans.db")
	}
	return DefaultStorePath
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.Tier == "" {
		result.Tier = defaults.Tier
	}
	if result.Store == "" {
		result.Store = defaults.Store
	}
	if result.StorePath == "" {
		result.StorePath = defaults.StorePath
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.Focus == "" {
		result.Focus = defaults.Focus
	}
	if result.Addr == "" {
		result.Addr = defaults.Addr
	}

	if result.Store == "" {
		result.Store = "file"
	}
	if result.Addr == "" {
		result.Addr = ":8080"
	}

	// Pins: defaults first, ours win
	if len(defaults.Pins) > 0 {
		merged := make(map[string]int, len(defaults.Pins)+len(result.Pins))
		for k, v := range defaults.Pins {
			merged[k] = v
		}
		for k, v := range result.Pins {
			merged[k] = v
		}
		result.Pins = merged
	}

	// Numeric fields: use default if zero
	if result.Retry.MaxAttempts == 0 {
		result.Retry.MaxAttempts = defaults.Retry.MaxAttempts
	}
	if result.Retry.InitialBackoff == 0 {
		result.Retry.InitialBackoff = defaults.Retry.InitialBackoff
	}
	if result.Retry.MaxBackoff == 0 {
		result.Retry.MaxBackoff = defaults.Retry.MaxBackoff
	}
	if result.Retry.Multiplier == 0 {
		result.Retry.Multiplier = defaults.Retry.Multiplier
	}
	if result.BuildModeTimeout == 0 {
		result.BuildModeTimeout = defaults.BuildModeTimeout
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
