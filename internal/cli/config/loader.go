package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	sharedcfg "github.com/quarrydata/quarry/internal/config"
)

// envVarPattern matches ${VAR} references in credential fields.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// findConfigFile finds the config file to use.
// Priority: explicit path > quarry.yaml > quarry.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"quarry.yaml", "quarry.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load reads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// The targetOverride parameter selects which environment's target to use.
func Load(cfgFile, targetOverride string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"models_dir":  DefaultModelsDir,
		"state_path":  DefaultStateFile,
		"environment": DefaultEnv,
		"project":     DefaultProject,
		"verbose":     false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configFile := findConfigFile(cfgFile)
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// QUARRY_MODELS_DIR -> models_dir
	if err := k.Load(env.Provider("QUARRY_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "QUARRY_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			// The CLI spells the flag --state; the config key is state_path.
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	envName := cfg.Environment
	if targetOverride != "" {
		envName = targetOverride
	}
	if envName != "" && cfg.Environments != nil {
		if envCfg, ok := cfg.Environments[envName]; ok {
			if envCfg.ModelsDir != "" {
				cfg.ModelsDir = envCfg.ModelsDir
			}
			if envCfg.StatePath != "" {
				cfg.StatePath = envCfg.StatePath
			}
			if envCfg.StageSchema != "" {
				cfg.StageSchema = envCfg.StageSchema
			}
			if envCfg.Target != nil {
				cfg.Target = sharedcfg.MergeTargetConfig(cfg.Target, envCfg.Target)
			}
		}
	}

	if cfg.Target == nil {
		cfg.Target = &TargetConfig{Type: "duckdb"}
	}
	sharedcfg.ApplyTargetDefaults(cfg.Target)
	expandTargetEnvVars(cfg.Target)

	if err := cfg.Target.Validate(); err != nil {
		return nil, fmt.Errorf("invalid target configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars expands ${VAR} references with environment variable values.
// Unset variables are left as-is so the error surfaces at connect time.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

func expandTargetEnvVars(t *TargetConfig) {
	if t == nil {
		return
	}
	t.User = expandEnvVars(t.User)
	t.Password = expandEnvVars(t.Password)
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
}
