// Package config provides shared target configuration, decoupled from CLI
// concerns so other tools can load the same project settings.
package config

import (
	"fmt"
	"strings"

	"github.com/quarrydata/quarry/pkg/adapter"
)

// TargetConfig holds database target configuration.
type TargetConfig struct {
	Type string `koanf:"type"` // duckdb, postgres

	// File-based databases (DuckDB)
	Database string `koanf:"database"` // file path or database name

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Common
	Schema string `koanf:"schema"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`
}

// DefaultSchemaForType returns the default schema for a database type.
func DefaultSchemaForType(dbType string) string {
	switch strings.ToLower(dbType) {
	case "postgres":
		return "public"
	default:
		return "main"
	}
}

// ApplyTargetDefaults fills in type-dependent defaults on a TargetConfig.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}
	if t.Type == "" {
		t.Type = "duckdb"
	}
	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
	if t.Type == "postgres" && t.Port == 0 {
		t.Port = 5432
	}
}

// Validate checks if the target configuration is valid. The adapter registry
// is the single source of truth for which types are available.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if _, ok := adapter.Get(strings.ToLower(t.Type)); !ok {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.List(),
		}
	}
	return nil
}

// ToAdapterConfig converts the target into a connection config.
func (t *TargetConfig) ToAdapterConfig() adapter.Config {
	return adapter.Config{
		Type:     strings.ToLower(t.Type),
		Path:     t.Database,
		Database: t.Database,
		Host:     t.Host,
		Port:     t.Port,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
	}
}

// MergeTargetConfig merges two target configs, with override taking
// precedence field by field.
func MergeTargetConfig(base, override *TargetConfig) *TargetConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base
	merged.Options = make(map[string]string, len(base.Options)+len(override.Options))
	for k, v := range base.Options {
		merged.Options[k] = v
	}

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.User != "" {
		merged.User = override.User
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Schema != "" {
		merged.Schema = override.Schema
	}
	for k, v := range override.Options {
		merged.Options[k] = v
	}
	return &merged
}
