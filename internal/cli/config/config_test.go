package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/quarrydata/quarry/pkg/adapters/duckdb"
	_ "github.com/quarrydata/quarry/pkg/adapters/postgres"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quarry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""), "", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultModelsDir, cfg.ModelsDir)
	assert.Equal(t, DefaultStateFile, cfg.StatePath)
	assert.Equal(t, DefaultEnv, cfg.Environment)
	require.NotNil(t, cfg.Target)
	assert.Equal(t, "duckdb", cfg.Target.Type)
	assert.Equal(t, "main", cfg.Target.Schema)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
models_dir: transforms
stage_schema: wap_stage
target:
  type: postgres
  host: db.internal
  database: warehouse
`)

	cfg, err := Load(path, "", nil)
	require.NoError(t, err)

	assert.Equal(t, "transforms", cfg.ModelsDir)
	assert.Equal(t, "wap_stage", cfg.StageSchema)
	assert.Equal(t, "postgres", cfg.Target.Type)
	assert.Equal(t, 5432, cfg.Target.Port)
	assert.Equal(t, "public", cfg.Target.Schema)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	path := writeConfig(t, `
environment: dev
target:
  type: duckdb
  database: dev.db
environments:
  prod:
    stage_schema: wap_stage
    target:
      database: prod.db
`)

	dev, err := Load(path, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "dev.db", dev.Target.Database)
	assert.Empty(t, dev.StageSchema)

	prod, err := Load(path, "prod", nil)
	require.NoError(t, err)
	assert.Equal(t, "prod.db", prod.Target.Database)
	assert.Equal(t, "wap_stage", prod.StageSchema)
	assert.Equal(t, "duckdb", prod.Target.Type)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "models_dir: from_file\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("models-dir", "", "")
	flags.String("state", "", "")
	require.NoError(t, flags.Parse([]string{"--models-dir", "from_flag", "--state", "custom.json"}))

	cfg, err := Load(path, "", flags)
	require.NoError(t, err)
	assert.Equal(t, "from_flag", cfg.ModelsDir)
	assert.Equal(t, "custom.json", cfg.StatePath)
}

func TestLoad_EnvVarExpansionInCredentials(t *testing.T) {
	t.Setenv("WAREHOUSE_PASSWORD", "s3cret")
	path := writeConfig(t, `
target:
  type: postgres
  user: etl
  password: ${WAREHOUSE_PASSWORD}
`)

	cfg, err := Load(path, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Target.Password)
}

func TestLoad_UnknownTargetTypeFails(t *testing.T) {
	path := writeConfig(t, "target:\n  type: oracle\n")

	_, err := Load(path, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown adapter type")
}

func TestValidateDirectories(t *testing.T) {
	cfg := &Config{ModelsDir: filepath.Join(t.TempDir(), "missing")}
	assert.Error(t, cfg.ValidateDirectories())

	cfg.ModelsDir = t.TempDir()
	assert.NoError(t, cfg.ValidateDirectories())
}
