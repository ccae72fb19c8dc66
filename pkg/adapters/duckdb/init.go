// Package duckdb provides a DuckDB database adapter for Quarry.
//
// This file registers the DuckDB adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/quarrydata/quarry/pkg/adapters/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/quarrydata/quarry/pkg/adapter"
)

func init() {
	adapter.Register("duckdb", func(logger *slog.Logger) adapter.Database { return New(logger) })
}
