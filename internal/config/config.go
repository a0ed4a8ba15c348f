// Package config loads selfheal.yaml and applies environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"selfheal/internal/browser"
	"selfheal/internal/locator"
	"selfheal/internal/logging"
	"selfheal/internal/predictor"
	"selfheal/internal/scenario"
	"selfheal/internal/store"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for configuration.
const DefaultPath = "selfheal.yaml"

// Config holds all selfheal configuration.
type Config struct {
	// Resolution chain
	Locator locator.Config `yaml:"locator"`

	// Model lifecycle and inference
	Predictor predictor.Config `yaml:"predictor"`

	// Training corpus
	Training store.Config `yaml:"training"`

	// Chrome
	Browser browser.Config `yaml:"browser"`

	// Scenario scheduling
	Runner scenario.Config `yaml:"runner"`

	Logging logging.Config `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Locator:   locator.DefaultConfig(),
		Predictor: predictor.DefaultConfig(),
		Training:  store.DefaultConfig(),
		Browser:   browser.DefaultConfig(),
		Runner:    scenario.DefaultConfig(),
		Logging:   logging.DefaultConfig(),
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("SELFHEAL_MODEL_PATH"); path != "" {
		c.Predictor.ModelPath = path
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Predictor.GenAIAPIKey = key
	}

	if path := os.Getenv("SELFHEAL_TRAINING_PATH"); path != "" {
		c.Training.Path = path
	}
	if backend := os.Getenv("SELFHEAL_TRAINING_BACKEND"); backend != "" {
		c.Training.Backend = strings.ToLower(backend)
	}

	if v := os.Getenv("SELFHEAL_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Runner.Parallel = n
		}
	}
	if v := os.Getenv("SELFHEAL_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Predictor.Backend {
	case predictor.BackendNeighbor, "":
		if c.Predictor.ModelPath == "" {
			return fmt.Errorf("predictor.model_path is required for the %s backend", predictor.BackendNeighbor)
		}
	case predictor.BackendGenAI:
		if c.Predictor.GenAIAPIKey == "" {
			return fmt.Errorf("GenAI API key not configured (set GEMINI_API_KEY)")
		}
	default:
		return fmt.Errorf("invalid predictor backend: %s (valid: %s, %s)", c.Predictor.Backend, predictor.BackendNeighbor, predictor.BackendGenAI)
	}
	if c.Predictor.MinSimilarity < 0 || c.Predictor.MinSimilarity > 1 {
		return fmt.Errorf("predictor.min_similarity must be within [0, 1], got %v", c.Predictor.MinSimilarity)
	}

	switch c.Training.Backend {
	case store.BackendFile, "":
	case store.BackendSQLite:
		switch c.Training.SQLiteDriver {
		case store.DriverMattn, store.DriverModernc, "":
		default:
			return fmt.Errorf("invalid training.sqlite_driver: %s (valid: %s, %s)", c.Training.SQLiteDriver, store.DriverMattn, store.DriverModernc)
		}
	default:
		return fmt.Errorf("invalid training backend: %s (valid: %s, %s)", c.Training.Backend, store.BackendFile, store.BackendSQLite)
	}
	if c.Training.Path == "" {
		return fmt.Errorf("training.path is required")
	}

	if c.Locator.ValidationTimeoutMs <= 0 {
		return fmt.Errorf("locator.validation_timeout_ms must be positive")
	}
	if c.Runner.Parallel < 1 {
		return fmt.Errorf("runner.parallel must be at least 1, got %d", c.Runner.Parallel)
	}
	if c.Runner.Retry < 0 {
		return fmt.Errorf("runner.retry must not be negative")
	}
	return nil
}
