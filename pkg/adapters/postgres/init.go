// Package postgres provides a PostgreSQL database adapter for Quarry.
//
// This file registers the PostgreSQL adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/quarrydata/quarry/pkg/adapters/postgres"
package postgres

import (
	"log/slog"

	"github.com/quarrydata/quarry/pkg/adapter"
)

func init() {
	adapter.Register("postgres", func(logger *slog.Logger) adapter.Database { return New(logger) })
}
