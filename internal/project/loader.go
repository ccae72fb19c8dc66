// Package project loads compiled models from a models directory. Each model
// is a .sql file holding its compiled SQL; an optional .yaml sidecar with the
// same stem declares dependencies, materialization, and schema metadata.
// No SQL parsing happens here: dependencies are declared, not extracted.
package project

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/quarrydata/quarry/pkg/core"
)

// modelSpec is the sidecar file shape.
type modelSpec struct {
	Materialization string       `koanf:"materialization"`
	Schema          string       `koanf:"schema"`
	DependsOn       []string     `koanf:"depends_on"`
	UniqueKey       []string     `koanf:"unique_key"`
	Strategy        string       `koanf:"incremental_strategy"`
	OnSchemaChange  string       `koanf:"on_schema_change"`
	Tags            []string     `koanf:"tags"`
	WAP             bool         `koanf:"wap"`
	PreHooks        []string     `koanf:"pre_hooks"`
	PostHooks       []string     `koanf:"post_hooks"`
	Contract        bool         `koanf:"contract"`
	Columns         []columnSpec `koanf:"columns"`
}

type columnSpec struct {
	Name           string   `koanf:"name"`
	Type           string   `koanf:"type"`
	Tests          []string `koanf:"tests"`
	AcceptedValues []string `koanf:"accepted_values"`
}

// Load walks modelsDir recursively and returns the compiled models keyed by
// name. The model name is the .sql file stem; duplicate stems are an error.
func Load(modelsDir string) (map[string]*core.CompiledModel, error) {
	info, err := os.Stat(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("models directory %s: %w", modelsDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("models path %s is not a directory", modelsDir)
	}

	models := make(map[string]*core.CompiledModel)
	err = filepath.WalkDir(modelsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sql") {
			return nil
		}

		m, err := loadModel(modelsDir, path)
		if err != nil {
			return err
		}
		if prev, exists := models[m.Name]; exists {
			return fmt.Errorf("duplicate model name %q: %s and %s", m.Name, prev.Path, m.Path)
		}
		models[m.Name] = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models, nil
}

func loadModel(modelsDir, sqlPath string) (*core.CompiledModel, error) {
	data, err := os.ReadFile(sqlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", sqlPath, err)
	}

	name := strings.TrimSuffix(filepath.Base(sqlPath), ".sql")
	relPath, err := filepath.Rel(modelsDir, sqlPath)
	if err != nil {
		relPath = sqlPath
	}

	m := &core.CompiledModel{
		Name:            name,
		SQL:             strings.TrimSpace(string(data)),
		Materialization: core.MaterializationView,
		Path:            relPath,
	}
	if m.SQL == "" {
		return nil, fmt.Errorf("model %s has no SQL", name)
	}

	spec, err := loadSidecar(strings.TrimSuffix(sqlPath, ".sql") + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	if spec != nil {
		if err := applySpec(m, spec); err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
	}
	return m, nil
}

// loadSidecar reads the yaml sidecar if present. A missing sidecar is fine.
func loadSidecar(path string) (*modelSpec, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	var spec modelSpec
	if err := k.Unmarshal("", &spec); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &spec, nil
}

func applySpec(m *core.CompiledModel, spec *modelSpec) error {
	if spec.Materialization != "" {
		mat := core.Materialization(spec.Materialization)
		switch mat {
		case core.MaterializationView, core.MaterializationTable,
			core.MaterializationIncremental, core.MaterializationEphemeral:
			m.Materialization = mat
		default:
			return fmt.Errorf("unknown materialization %q", spec.Materialization)
		}
	}
	if spec.Strategy != "" {
		s := core.IncrementalStrategy(spec.Strategy)
		switch s {
		case core.StrategyAppend, core.StrategyMerge, core.StrategyDeleteInsert:
			m.Strategy = s
		default:
			return fmt.Errorf("unknown incremental_strategy %q", spec.Strategy)
		}
	}
	if spec.OnSchemaChange != "" {
		p := core.OnSchemaChange(spec.OnSchemaChange)
		switch p {
		case core.SchemaChangeIgnore, core.SchemaChangeFail, core.SchemaChangeAppendNew:
			m.OnSchemaChange = p
		default:
			return fmt.Errorf("unknown on_schema_change %q", spec.OnSchemaChange)
		}
	}

	m.Schema = spec.Schema
	m.Dependencies = spec.DependsOn
	m.UniqueKey = spec.UniqueKey
	m.Tags = spec.Tags
	m.WAP = spec.WAP
	m.PreHooks = spec.PreHooks
	m.PostHooks = spec.PostHooks

	if len(spec.Columns) > 0 || spec.Contract {
		schema, err := buildModelSchema(spec)
		if err != nil {
			return err
		}
		m.ModelSchema = schema
	}
	return nil
}

func buildModelSchema(spec *modelSpec) (*core.ModelSchema, error) {
	schema := &core.ModelSchema{ContractEnforced: spec.Contract}

	for _, col := range spec.Columns {
		if col.Name == "" {
			return nil, fmt.Errorf("column with empty name")
		}
		schema.Columns = append(schema.Columns, core.ColumnDef{
			Name: col.Name,
			Type: col.Type,
		})

		for _, testName := range col.Tests {
			switch core.TestType(testName) {
			case core.TestNotNull:
				schema.Tests = append(schema.Tests, core.SchemaTest{Type: core.TestNotNull, Column: col.Name})
			case core.TestUnique:
				schema.Tests = append(schema.Tests, core.SchemaTest{Type: core.TestUnique, Column: col.Name})
			case core.TestAcceptedValues:
				if len(col.AcceptedValues) == 0 {
					return nil, fmt.Errorf("column %s: accepted_values test needs accepted_values", col.Name)
				}
				schema.Tests = append(schema.Tests, core.SchemaTest{
					Type:   core.TestAcceptedValues,
					Column: col.Name,
					Values: col.AcceptedValues,
				})
			default:
				return nil, fmt.Errorf("column %s: unknown test %q", col.Name, testName)
			}
		}
	}
	return schema, nil
}
