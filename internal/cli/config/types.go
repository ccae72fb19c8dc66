// Package config loads CLI configuration from file, environment variables,
// and flags with koanf. Shared target types live in internal/config; this
// package adds the CLI-facing fields around them.
package config

import (
	"fmt"
	"os"

	sharedcfg "github.com/quarrydata/quarry/internal/config"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = sharedcfg.TargetConfig

// Config holds all CLI configuration options.
type Config struct {
	ModelsDir    string               `koanf:"models_dir"`
	StatePath    string               `koanf:"state_path"`
	StageSchema  string               `koanf:"stage_schema"`
	Environment  string               `koanf:"environment"`
	Verbose      bool                 `koanf:"verbose"`
	Project      string               `koanf:"project"`
	Target       *TargetConfig        `koanf:"target"`
	Environments map[string]EnvConfig `koanf:"environments"`
}

// EnvConfig holds environment-specific overrides.
type EnvConfig struct {
	ModelsDir   string        `koanf:"models_dir"`
	StatePath   string        `koanf:"state_path"`
	StageSchema string        `koanf:"stage_schema"`
	Target      *TargetConfig `koanf:"target"`
}

// Default configuration values.
const (
	DefaultModelsDir = "models"
	DefaultStateFile = ".quarry/state.json"
	DefaultEnv       = "dev"
	DefaultProject   = "quarry"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ModelsDir == "" {
		return fmt.Errorf("models_dir is required")
	}
	return nil
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.ModelsDir); os.IsNotExist(err) {
		return fmt.Errorf("models directory does not exist: %s\nHint: create the directory or use --models-dir to specify a different path", c.ModelsDir)
	}
	return nil
}
