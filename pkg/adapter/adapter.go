// Package adapter defines the database interface consumed by the execution
// engine, plus a generic database/sql base implementation and a registry of
// concrete backends. Concrete adapters live in pkg/adapters/ subdirectories.
//
// All relation and schema names crossing this interface are fully qualified
// by the core; adapters apply identifier quoting themselves.
package adapter

import (
	"context"
	"database/sql"

	"github.com/quarrydata/quarry/pkg/core"
)

// Config holds the configuration for connecting to a database.
type Config struct {
	// Type specifies the database type (e.g., "duckdb", "postgres")
	Type string

	// Path is the file path for file-based databases (e.g., DuckDB)
	// Use ":memory:" for in-memory databases
	Path string

	// Host is the hostname for network-based databases
	Host string

	// Port is the port number for network-based databases
	Port int

	// Database is the database name
	Database string

	// Username for authentication
	Username string

	// Password for authentication
	Password string

	// Schema is the default schema to use
	Schema string

	// Options contains additional driver-specific options
	Options map[string]string
}

// Rows wraps sql.Rows to provide a consistent interface across adapters.
type Rows struct {
	*sql.Rows
}

// Database is the interface the execution engine runs against. Every method
// takes a context and is safe for concurrent use; *sql.DB-backed adapters
// get that for free.
type Database interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// CreateTableAs creates (or replaces) a table from a SELECT.
	CreateTableAs(ctx context.Context, name, selectSQL string, replace bool) error

	// CreateViewAs creates (or replaces) a view from a SELECT.
	CreateViewAs(ctx context.Context, name, selectSQL string, replace bool) error

	// RelationExists reports whether a table or view exists. Backend errors
	// are propagated; "unknown" is never treated as "absent".
	RelationExists(ctx context.Context, name string) (bool, error)

	// DropIfExists drops a table or view if present. Best effort.
	DropIfExists(ctx context.Context, name string) error

	// CreateSchemaIfNotExists creates a schema if missing.
	CreateSchemaIfNotExists(ctx context.Context, schema string) error

	// QueryCount returns the number of rows the query produces.
	QueryCount(ctx context.Context, sql string) (int64, error)

	// DescribeQuery returns the column names and types a query would
	// produce, without materializing its rows.
	DescribeQuery(ctx context.Context, sql string) ([]core.ColumnDef, error)

	// GetTableSchema returns the live columns of a table.
	GetTableSchema(ctx context.Context, table string) ([]core.ColumnDef, error)

	// AddColumns appends columns to an existing table.
	AddColumns(ctx context.Context, table string, cols []core.ColumnDef) error

	// MergeInto deletes existing rows whose unique key matches any row of
	// the SELECT result, then inserts the full result.
	MergeInto(ctx context.Context, table, selectSQL string, uniqueKeys []string) error

	// DeleteInsert is the delete-matching/insert-all strategy. The base
	// implementation is identical to MergeInto; backends with a native
	// MERGE may implement MergeInto differently.
	DeleteInsert(ctx context.Context, table, selectSQL string, uniqueKeys []string) error

	// DialectName returns the SQL dialect name (e.g., "duckdb").
	DialectName() string
}
