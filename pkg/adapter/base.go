package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quarrydata/quarry/pkg/core"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// implementations of everything except Connect and DialectName.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger

	// DefaultSchema is used when a relation name has no schema part.
	DefaultSchema string
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, err := b.DB.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement that returns rows.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string) (*Rows, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &Rows{Rows: rows}, nil
}

// CreateTableAs creates a table from a SELECT. With replace, the existing
// table is dropped first so the statement is portable across backends that
// lack CREATE OR REPLACE TABLE.
func (b *BaseSQLAdapter) CreateTableAs(ctx context.Context, name, selectSQL string, replace bool) error {
	qt := core.QuoteQualified(name)
	if replace {
		if err := b.Exec(ctx, "DROP TABLE IF EXISTS "+qt); err != nil {
			return err
		}
	}
	return b.Exec(ctx, fmt.Sprintf("CREATE TABLE %s AS %s", qt, selectSQL))
}

// CreateViewAs creates a view from a SELECT.
func (b *BaseSQLAdapter) CreateViewAs(ctx context.Context, name, selectSQL string, replace bool) error {
	qt := core.QuoteQualified(name)
	stmt := "CREATE VIEW"
	if replace {
		stmt = "CREATE OR REPLACE VIEW"
	}
	return b.Exec(ctx, fmt.Sprintf("%s %s AS %s", stmt, qt, selectSQL))
}

// SplitQualified splits a relation name into schema and bare name,
// falling back to the adapter's default schema.
func (b *BaseSQLAdapter) SplitQualified(name string) (schema, table string) {
	if pos := strings.LastIndex(name, "."); pos >= 0 {
		return name[:pos], name[pos+1:]
	}
	schema = b.DefaultSchema
	if schema == "" {
		schema = "main"
	}
	return schema, name
}

// RelationExists checks information_schema for the table or view.
func (b *BaseSQLAdapter) RelationExists(ctx context.Context, name string) (bool, error) {
	if b.DB == nil {
		return false, fmt.Errorf("database connection not established")
	}
	schema, table := b.SplitQualified(name)

	var count int64
	err := b.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2",
		schema, table,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check relation %s: %w", name, err)
	}
	return count > 0, nil
}

// DropIfExists drops a relation whether it is a view or a table. Both drops
// are attempted because the caller does not know the relation kind; errors
// are logged, not returned, matching the best-effort contract.
func (b *BaseSQLAdapter) DropIfExists(ctx context.Context, name string) error {
	qt := core.QuoteQualified(name)
	if _, err := b.DB.ExecContext(ctx, "DROP VIEW IF EXISTS "+qt); err != nil && b.Logger != nil {
		b.Logger.Debug("drop view failed", "relation", name, "error", err)
	}
	if _, err := b.DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+qt); err != nil && b.Logger != nil {
		b.Logger.Debug("drop table failed", "relation", name, "error", err)
	}
	return nil
}

// CreateSchemaIfNotExists creates a schema if missing.
func (b *BaseSQLAdapter) CreateSchemaIfNotExists(ctx context.Context, schema string) error {
	return b.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+core.QuoteIdent(schema))
}

// QueryCount returns the number of rows a query produces.
func (b *BaseSQLAdapter) QueryCount(ctx context.Context, sqlStr string) (int64, error) {
	if b.DB == nil {
		return 0, fmt.Errorf("database connection not established")
	}
	var count int64
	err := b.DB.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS q", sqlStr)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count query rows: %w", err)
	}
	return count, nil
}

// DescribeQuery runs the query with an always-false predicate and reads the
// result metadata, yielding column names and types without materializing
// any rows.
func (b *BaseSQLAdapter) DescribeQuery(ctx context.Context, sqlStr string) ([]core.ColumnDef, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	rows, err := b.DB.QueryContext(ctx, fmt.Sprintf("SELECT * FROM (%s) AS q WHERE 1 = 0", sqlStr))
	if err != nil {
		return nil, fmt.Errorf("failed to describe query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read query column types: %w", err)
	}

	cols := make([]core.ColumnDef, len(types))
	for i, t := range types {
		cols[i] = core.ColumnDef{Name: t.Name(), Type: t.DatabaseTypeName()}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating describe result: %w", err)
	}
	return cols, nil
}

// GetTableSchema returns the live columns of a table in ordinal order.
func (b *BaseSQLAdapter) GetTableSchema(ctx context.Context, table string) ([]core.ColumnDef, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	schema, name := b.SplitQualified(table)

	rows, err := b.DB.QueryContext(ctx,
		"SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position",
		schema, name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query table schema for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []core.ColumnDef
	for rows.Next() {
		var c core.ColumnDef
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("failed to scan table schema: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table schema: %w", err)
	}
	return cols, nil
}

// AddColumns appends columns to an existing table, one ALTER per column.
func (b *BaseSQLAdapter) AddColumns(ctx context.Context, table string, cols []core.ColumnDef) error {
	qt := core.QuoteQualified(table)
	for _, c := range cols {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", qt, core.QuoteIdent(c.Name), c.Type)
		if err := b.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add column %s to %s: %w", c.Name, table, err)
		}
	}
	return nil
}

// MergeInto implements merge as delete-matching/insert-all via a temp table.
func (b *BaseSQLAdapter) MergeInto(ctx context.Context, table, selectSQL string, uniqueKeys []string) error {
	return b.deleteThenInsert(ctx, table, selectSQL, uniqueKeys)
}

// DeleteInsert deletes existing rows whose key matches any new row, then
// inserts the full new result.
func (b *BaseSQLAdapter) DeleteInsert(ctx context.Context, table, selectSQL string, uniqueKeys []string) error {
	return b.deleteThenInsert(ctx, table, selectSQL, uniqueKeys)
}

func (b *BaseSQLAdapter) deleteThenInsert(ctx context.Context, table, selectSQL string, uniqueKeys []string) error {
	if len(uniqueKeys) == 0 {
		return fmt.Errorf("delete+insert into %s requires at least one unique key column", table)
	}

	qt := core.QuoteQualified(table)
	tmpName := table + "__quarry_tmp"
	qtmp := core.QuoteQualified(tmpName)

	if err := b.Exec(ctx, "DROP TABLE IF EXISTS "+qtmp); err != nil {
		return err
	}
	if err := b.Exec(ctx, fmt.Sprintf("CREATE TABLE %s AS %s", qtmp, selectSQL)); err != nil {
		return fmt.Errorf("failed to stage rows for %s: %w", table, err)
	}

	keys := make([]string, len(uniqueKeys))
	for i, k := range uniqueKeys {
		keys[i] = core.QuoteIdent(k)
	}
	keyList := strings.Join(keys, ", ")

	// Tuple IN works for single and composite keys on both DuckDB and
	// Postgres.
	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE (%s) IN (SELECT %s FROM %s)", qt, keyList, keyList, qtmp)
	if err := b.Exec(ctx, deleteSQL); err != nil {
		return fmt.Errorf("failed to delete matched rows from %s: %w", table, err)
	}

	if err := b.Exec(ctx, fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", qt, qtmp)); err != nil {
		return fmt.Errorf("failed to insert new rows into %s: %w", table, err)
	}

	// Temp cleanup failure is not worth failing the model over.
	if _, err := b.DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+qtmp); err != nil && b.Logger != nil {
		b.Logger.Warn("failed to drop staging temp table", "table", tmpName, "error", err)
	}
	return nil
}
