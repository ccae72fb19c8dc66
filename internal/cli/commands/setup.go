// Package commands implements the quarry subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/quarrydata/quarry/internal/cli/config"
	"github.com/quarrydata/quarry/internal/dag"
	"github.com/quarrydata/quarry/internal/project"
	"github.com/quarrydata/quarry/pkg/adapter"
	"github.com/quarrydata/quarry/pkg/core"
)

// loadProject loads the models directory and builds the dependency graph.
func loadProject(cfg *config.Config) (map[string]*core.CompiledModel, *dag.Graph, error) {
	if err := cfg.ValidateDirectories(); err != nil {
		return nil, nil, err
	}

	models, err := project.Load(cfg.ModelsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load models: %w", err)
	}
	if len(models) == 0 {
		return nil, nil, fmt.Errorf("no models found in %s", cfg.ModelsDir)
	}

	deps := make(map[string][]string, len(models))
	for name, m := range models {
		deps[name] = m.Dependencies
	}
	graph, err := dag.Build(deps)
	if err != nil {
		return nil, nil, err
	}
	return models, graph, nil
}

// connectDatabase builds the configured adapter and opens the connection.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (adapter.Database, error) {
	db, err := adapter.New(cfg.Target.ToAdapterConfig(), logger)
	if err != nil {
		return nil, err
	}
	if err := db.Connect(ctx, cfg.Target.ToAdapterConfig()); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Target.Type, err)
	}
	logger.Debug("connected to target", "dialect", db.DialectName())
	return db, nil
}

// selectModels resolves comma-separated selector expressions against the
// graph, returning the union in topological order.
func selectModels(exprs string, g *dag.Graph, models map[string]*core.CompiledModel) ([]string, error) {
	selected := make(map[string]bool)
	for _, expr := range strings.Split(exprs, ",") {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		sel, err := dag.ParseSelector(expr)
		if err != nil {
			return nil, err
		}
		names, err := sel.Apply(g, models)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			selected[name] = true
		}
	}

	var order []string
	for _, name := range g.TopologicalOrder() {
		if selected[name] {
			order = append(order, name)
		}
	}
	return order, nil
}

// compiledOnly filters an execution order down to names with a compiled
// model, dropping graph nodes that stand in for external sources.
func compiledOnly(order []string, models map[string]*core.CompiledModel) []string {
	out := make([]string, 0, len(order))
	for _, name := range order {
		if _, ok := models[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// distinctSchemas returns the sorted set of non-empty target schemas.
func distinctSchemas(models map[string]*core.CompiledModel, names []string) []string {
	seen := make(map[string]bool)
	for _, name := range names {
		if m, ok := models[name]; ok && m.Schema != "" {
			seen[m.Schema] = true
		}
	}
	out := make([]string, 0, len(seen))
	for schema := range seen {
		out = append(out, schema)
	}
	sort.Strings(out)
	return out
}
