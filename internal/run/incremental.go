package run

import (
	"context"
	"fmt"
	"strings"

	"github.com/quarrydata/quarry/pkg/adapter"
	"github.com/quarrydata/quarry/pkg/core"
)

// executeIncremental materializes an incremental model. On first run (or
// full refresh) the full query result replaces the table; on subsequent
// runs schema drift is handled per the model's policy and the configured
// strategy folds new rows into the existing table.
func executeIncremental(ctx context.Context, db adapter.Database, tableName string, m *core.CompiledModel, fullRefresh bool, execSQL string) error {
	// Existence errors propagate; treating "unknown" as "absent" would turn
	// a partially-failed prior run into a silent full refresh.
	exists, err := db.RelationExists(ctx, tableName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMaterialization, err)
	}

	if !exists || fullRefresh {
		if !exists {
			// First run: create an empty stub so self-referencing predicates
			// (e.g. `WHERE id NOT IN (SELECT id FROM this_table)`) resolve.
			// The stub is immediately replaced by the create below.
			if err := createStubTable(ctx, db, tableName, m); err != nil {
				return fmt.Errorf("%w: %v", ErrMaterialization, err)
			}
		}
		if err := db.CreateTableAs(ctx, tableName, execSQL, true); err != nil {
			return fmt.Errorf("%w: %v", ErrMaterialization, err)
		}
		return nil
	}

	if policy := m.SchemaChangePolicy(); policy != core.SchemaChangeIgnore {
		if err := handleSchemaChanges(ctx, db, tableName, m, policy); err != nil {
			return err
		}
	}

	return executeStrategy(ctx, db, tableName, m, execSQL)
}

// createStubTable creates an empty table from the declared column schema.
// Without a declared schema the stub is skipped and the create-table-as
// either succeeds (no self-reference) or fails with the usual missing-table
// error.
func createStubTable(ctx context.Context, db adapter.Database, tableName string, m *core.CompiledModel) error {
	if m.ModelSchema == nil || len(m.ModelSchema.Columns) == 0 {
		return nil
	}

	defs := make([]string, len(m.ModelSchema.Columns))
	for i, col := range m.ModelSchema.Columns {
		defs[i] = core.QuoteIdent(col.Name) + " " + col.Type
	}
	return db.Exec(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		core.QuoteQualified(tableName), strings.Join(defs, ", ")))
}

// handleSchemaChanges diffs the live table's columns against a dry-run
// description of the new query. Column names compare case-insensitively.
func handleSchemaChanges(ctx context.Context, db adapter.Database, tableName string, m *core.CompiledModel, policy core.OnSchemaChange) error {
	existing, err := db.GetTableSchema(ctx, tableName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMaterialization, err)
	}
	existingSet := make(map[string]bool, len(existing))
	for _, col := range existing {
		existingSet[strings.ToLower(col.Name)] = true
	}

	// The stored SQL is described, not the comment-injected copy, so the
	// dry run matches what checksums were computed over.
	described, err := db.DescribeQuery(ctx, m.SQL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMaterialization, err)
	}
	newSet := make(map[string]bool, len(described))
	for _, col := range described {
		newSet[strings.ToLower(col.Name)] = true
	}

	var added []core.ColumnDef
	for _, col := range described {
		if !existingSet[strings.ToLower(col.Name)] {
			added = append(added, col)
		}
	}
	var removed []string
	for _, col := range existing {
		if !newSet[strings.ToLower(col.Name)] {
			removed = append(removed, col.Name)
		}
	}

	if len(added) == 0 && len(removed) == 0 {
		return nil
	}

	switch policy {
	case core.SchemaChangeFail:
		return fmt.Errorf("%w: %s", ErrSchemaChange, formatSchemaChange(added, removed))
	case core.SchemaChangeAppendNew:
		if len(added) > 0 {
			if err := db.AddColumns(ctx, tableName, added); err != nil {
				return fmt.Errorf("%w: %v", ErrMaterialization, err)
			}
		}
	case core.SchemaChangeIgnore:
	}
	return nil
}

func formatSchemaChange(added []core.ColumnDef, removed []string) string {
	var b strings.Builder
	if len(added) > 0 {
		names := make([]string, len(added))
		for i, col := range added {
			names[i] = fmt.Sprintf("%s (%s)", col.Name, col.Type)
		}
		fmt.Fprintf(&b, "new columns: %s; ", strings.Join(names, ", "))
	}
	if len(removed) > 0 {
		fmt.Fprintf(&b, "removed columns: %s", strings.Join(removed, ", "))
	}
	return strings.TrimSuffix(b.String(), "; ")
}

// executeStrategy applies the configured incremental strategy to an
// existing table.
func executeStrategy(ctx context.Context, db adapter.Database, tableName string, m *core.CompiledModel, execSQL string) error {
	switch m.DefaultStrategy() {
	case core.StrategyAppend:
		insertSQL := fmt.Sprintf("INSERT INTO %s %s", core.QuoteQualified(tableName), execSQL)
		if err := db.Exec(ctx, insertSQL); err != nil {
			return fmt.Errorf("%w: %v", ErrMaterialization, err)
		}
		return nil
	case core.StrategyMerge:
		if len(m.UniqueKey) == 0 {
			return fmt.Errorf("%w: merge strategy requires unique_key to be specified", ErrConfiguration)
		}
		if err := db.MergeInto(ctx, tableName, execSQL, m.UniqueKey); err != nil {
			return fmt.Errorf("%w: %v", ErrMaterialization, err)
		}
		return nil
	case core.StrategyDeleteInsert:
		if len(m.UniqueKey) == 0 {
			return fmt.Errorf("%w: delete+insert strategy requires unique_key to be specified", ErrConfiguration)
		}
		if err := db.DeleteInsert(ctx, tableName, execSQL, m.UniqueKey); err != nil {
			return fmt.Errorf("%w: %v", ErrMaterialization, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown incremental strategy %q", ErrConfiguration, m.Strategy)
	}
}
