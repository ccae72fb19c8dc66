// Package duckdb provides a DuckDB database adapter for Quarry.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/quarrydata/quarry/pkg/adapter"
	"github.com/quarrydata/quarry/pkg/core"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Adapter implements the adapter.Database interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, DefaultSchema: "main"},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "duckdb"
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	if cfg.Schema != "" {
		a.DefaultSchema = cfg.Schema
	}

	return nil
}

// CreateTableAs uses DuckDB's native CREATE OR REPLACE TABLE when replacing,
// so any prior relation stays readable while the SELECT evaluates.
func (a *Adapter) CreateTableAs(ctx context.Context, name, selectSQL string, replace bool) error {
	stmt := "CREATE TABLE"
	if replace {
		stmt = "CREATE OR REPLACE TABLE"
	}
	return a.Exec(ctx, fmt.Sprintf("%s %s AS %s", stmt, core.QuoteQualified(name), selectSQL))
}

// Ensure Adapter implements adapter.Database interface
var _ adapter.Database = (*Adapter)(nil)
