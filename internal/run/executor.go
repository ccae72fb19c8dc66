package run

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quarrydata/quarry/pkg/adapter"
	"github.com/quarrydata/quarry/pkg/core"
)

// wapEligible reports whether a model routes through Write-Audit-Publish:
// the model opted in, a staging schema was supplied, and the
// materialization produces a table.
func wapEligible(m *core.CompiledModel, stageSchema string) bool {
	return m.WAP && stageSchema != "" &&
		(m.Materialization == core.MaterializationTable || m.Materialization == core.MaterializationIncremental)
}

// runSingleModel executes one model end to end: pre-hooks, materialization
// (direct or via WAP), post-hooks, contract check. The returned result
// carries exactly one terminal status; callers own aggregation and state
// updates because sequential and parallel modes time those differently.
func runSingleModel(ctx context.Context, db adapter.Database, m *core.CompiledModel, fullRefresh bool, stageSchema string, logger *slog.Logger) core.ModelRunResult {
	qualifiedName := m.QualifiedName()
	quotedName := core.QuoteQualified(qualifiedName)
	start := time.Now()

	fail := func(err error) core.ModelRunResult {
		logger.Error("model failed", "model", m.Name, "error", err)
		return core.ModelRunResult{
			Model:           m.Name,
			Status:          core.StatusError,
			Materialization: m.Materialization,
			Duration:        time.Since(start),
			Err:             err.Error(),
			RowCount:        -1,
		}
	}

	if err := executeHooks(ctx, db, m.PreHooks, quotedName); err != nil {
		return fail(fmt.Errorf("pre-hook failed: %w", err))
	}

	if fullRefresh {
		// The create-or-replace path recovers from a failed drop.
		if err := db.DropIfExists(ctx, qualifiedName); err != nil {
			logger.Warn("failed to drop relation during full refresh", "relation", qualifiedName, "error", err)
		}
	}

	// Inject the query comment into a copy; m.SQL stays clean for checksums.
	execSQL := m.SQL
	if m.QueryComment != nil {
		execSQL = m.QueryComment.Inject(m.SQL, m)
	}

	var err error
	if wapEligible(m, stageSchema) {
		err = executeWAP(ctx, wapParams{
			db:            db,
			model:         m,
			qualifiedName: qualifiedName,
			stageSchema:   stageSchema,
			fullRefresh:   fullRefresh,
			execSQL:       execSQL,
			logger:        logger,
		})
	} else {
		err = executeMaterialization(ctx, db, qualifiedName, m, fullRefresh, execSQL)
	}
	if err != nil {
		return fail(err)
	}

	if err := executeHooks(ctx, db, m.PostHooks, quotedName); err != nil {
		return fail(fmt.Errorf("post-hook failed: %w", err))
	}

	if err := validateContract(ctx, db, m, qualifiedName, logger); err != nil {
		return fail(err)
	}

	duration := time.Since(start)
	logger.Info("model succeeded", "model", m.Name, "materialization", string(m.Materialization), "duration", duration)
	return core.ModelRunResult{
		Model:           m.Name,
		Status:          core.StatusSuccess,
		Materialization: m.Materialization,
		Duration:        duration,
		RowCount:        -1,
	}
}

// executeMaterialization dispatches a non-WAP model by materialization kind.
func executeMaterialization(ctx context.Context, db adapter.Database, qualifiedName string, m *core.CompiledModel, fullRefresh bool, execSQL string) error {
	switch m.Materialization {
	case core.MaterializationView:
		if err := db.CreateViewAs(ctx, qualifiedName, execSQL, true); err != nil {
			return fmt.Errorf("%w: %v", ErrMaterialization, err)
		}
		return nil
	case core.MaterializationTable:
		if err := db.CreateTableAs(ctx, qualifiedName, execSQL, true); err != nil {
			return fmt.Errorf("%w: %v", ErrMaterialization, err)
		}
		return nil
	case core.MaterializationIncremental:
		return executeIncremental(ctx, db, qualifiedName, m, fullRefresh, execSQL)
	case core.MaterializationEphemeral:
		// Inlined into consumers at compile time; nothing to execute.
		return nil
	default:
		return fmt.Errorf("%w: unknown materialization %q", ErrConfiguration, m.Materialization)
	}
}
