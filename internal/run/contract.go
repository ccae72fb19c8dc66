package run

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quarrydata/quarry/pkg/adapter"
	"github.com/quarrydata/quarry/pkg/core"
)

// validateContract compares the live table columns against the model's
// declared schema. Missing columns and type mismatches are violations;
// extra columns in the output are only warned about, never fatal.
// Violations fail the model only when the contract is enforced.
func validateContract(ctx context.Context, db adapter.Database, m *core.CompiledModel, qualifiedName string, logger *slog.Logger) error {
	schema := m.ModelSchema
	if schema == nil || len(schema.Columns) == 0 {
		return nil
	}

	actual, err := db.GetTableSchema(ctx, qualifiedName)
	if err != nil {
		if !schema.ContractEnforced {
			logger.Warn("failed to read table schema for contract check", "model", m.Name, "error", err)
			return nil
		}
		return fmt.Errorf("%w: failed to read table schema for %s: %v", ErrContract, m.Name, err)
	}

	actualTypes := make(map[string]string, len(actual))
	for _, col := range actual {
		actualTypes[strings.ToLower(col.Name)] = col.Type
	}

	var violations []string
	for _, want := range schema.Columns {
		got, ok := actualTypes[strings.ToLower(want.Name)]
		if !ok {
			violations = append(violations,
				fmt.Sprintf("column '%s' defined in contract is missing from model output", want.Name))
			continue
		}
		if !typesCompatible(want.Type, got) {
			violations = append(violations,
				fmt.Sprintf("column '%s' type mismatch: contract specifies %s, but got %s", want.Name, want.Type, got))
		}
	}

	declared := make(map[string]bool, len(schema.Columns))
	for _, c := range schema.Columns {
		declared[strings.ToLower(c.Name)] = true
	}
	for _, col := range actual {
		if !declared[strings.ToLower(col.Name)] {
			logger.Warn("column in output but not in contract", "model", m.Name, "column", col.Name)
		}
	}

	if len(violations) == 0 {
		return nil
	}
	if !schema.ContractEnforced {
		for _, v := range violations {
			logger.Warn("contract violation (not enforced)", "model", m.Name, "violation", v)
		}
		return nil
	}
	return fmt.Errorf("%w for %s: %s", ErrContract, m.Name, strings.Join(violations, "; "))
}

// typesCompatible reports whether two SQL types are interchangeable,
// checking normalized names first and then type families, so INT vs INTEGER
// or FLOAT vs DOUBLE do not trip the contract.
func typesCompatible(expected, actual string) bool {
	e := normalizeType(expected)
	a := normalizeType(actual)
	if e == a {
		return true
	}
	return typeFamily(e) == typeFamily(a)
}

func normalizeType(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	if pos := strings.Index(t, "("); pos >= 0 {
		t = t[:pos]
	}
	switch strings.TrimSpace(t) {
	case "INT":
		return "INTEGER"
	case "BOOL":
		return "BOOLEAN"
	case "STRING", "TEXT":
		return "VARCHAR"
	case "FLOAT", "REAL":
		return "DOUBLE"
	case "NUMERIC":
		return "DECIMAL"
	default:
		return strings.TrimSpace(t)
	}
}

func typeFamily(normalized string) string {
	switch normalized {
	case "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "HUGEINT", "UBIGINT", "UINTEGER", "USMALLINT", "UTINYINT":
		return "integer"
	case "DOUBLE", "FLOAT", "REAL":
		return "floating"
	case "DECIMAL":
		return "decimal"
	case "VARCHAR", "CHAR", "TEXT", "STRING":
		return "string"
	case "BOOLEAN", "BOOL":
		return "boolean"
	case "DATE":
		return "date"
	case "TIME":
		return "time"
	case "TIMESTAMP", "DATETIME", "TIMESTAMPTZ":
		return "timestamp"
	case "BLOB", "BYTEA", "BINARY":
		return "binary"
	default:
		return normalized
	}
}
