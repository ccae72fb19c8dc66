// Package main provides the quarry CLI.
package main

import (
	"os"

	"github.com/quarrydata/quarry/internal/cli"

	// Register the built-in database adapters.
	_ "github.com/quarrydata/quarry/pkg/adapters/duckdb"
	_ "github.com/quarrydata/quarry/pkg/adapters/postgres"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
