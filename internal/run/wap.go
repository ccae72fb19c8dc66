package run

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quarrydata/quarry/pkg/adapter"
	"github.com/quarrydata/quarry/pkg/core"
)

// wapParams carries everything one Write-Audit-Publish execution needs.
type wapParams struct {
	db            adapter.Database
	model         *core.CompiledModel
	qualifiedName string // production relation
	stageSchema   string
	fullRefresh   bool
	execSQL       string
	logger        *slog.Logger
}

// executeWAP stages the model into the staging schema, audits the staged
// copy with the model's declared schema tests, and only then swaps it into
// production. A failed audit leaves staging in place for debugging and
// never touches production.
func executeWAP(ctx context.Context, p wapParams) error {
	staged := p.stageSchema + "." + p.model.Name
	quotedStaged := core.QuoteQualified(staged)
	quotedProd := core.QuoteQualified(p.qualifiedName)

	if err := p.db.CreateSchemaIfNotExists(ctx, p.stageSchema); err != nil {
		return fmt.Errorf("%w: %v", ErrMaterialization, err)
	}

	switch p.model.Materialization {
	case core.MaterializationTable:
		if err := p.db.CreateTableAs(ctx, staged, p.execSQL, true); err != nil {
			return fmt.Errorf("%w: %v", ErrMaterialization, err)
		}
	case core.MaterializationIncremental:
		// Incremental logic must see the production data, so copy it into
		// staging first unless a full refresh will replace it anyway.
		if !p.fullRefresh {
			exists, err := p.db.RelationExists(ctx, p.qualifiedName)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrMaterialization, err)
			}
			if exists {
				copySQL := fmt.Sprintf("SELECT * FROM %s", quotedProd)
				if err := p.db.CreateTableAs(ctx, staged, copySQL, true); err != nil {
					return fmt.Errorf("%w: %v", ErrMaterialization, err)
				}
			}
		}
		if err := executeIncremental(ctx, p.db, staged, p.model, p.fullRefresh, p.execSQL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: write-audit-publish only applies to table/incremental, got %s",
			ErrConfiguration, p.model.Materialization)
	}

	failures := runAuditTests(ctx, p.db, p.model, staged, p.logger)
	if failures > 0 {
		return fmt.Errorf("%w: %d test(s) failed for '%s'. Staging table preserved at '%s' for debugging. Production table is untouched",
			ErrAudit, failures, p.model.Name, staged)
	}

	// Audit proved the staged data valid, so drop+recreate is an acceptable
	// stand-in for an atomic swap.
	if err := p.db.DropIfExists(ctx, p.qualifiedName); err != nil {
		return fmt.Errorf("%w: %v", ErrMaterialization, err)
	}
	publishSQL := fmt.Sprintf("SELECT * FROM %s", quotedStaged)
	if err := p.db.CreateTableAs(ctx, p.qualifiedName, publishSQL, false); err != nil {
		return fmt.Errorf("%w: %v", ErrMaterialization, err)
	}

	if err := p.db.DropIfExists(ctx, staged); err != nil {
		p.logger.Warn("failed to drop staging table after publish", "table", staged, "error", err)
	}
	return nil
}

// runAuditTests runs every declared schema test against the staged relation
// and returns the failure count. A test fails when its check query returns
// rows or errors. No declared tests means an automatic pass.
func runAuditTests(ctx context.Context, db adapter.Database, m *core.CompiledModel, staged string, logger *slog.Logger) int {
	if m.ModelSchema == nil || len(m.ModelSchema.Tests) == 0 {
		return 0
	}

	failures := 0
	for _, test := range m.ModelSchema.Tests {
		count, err := db.QueryCount(ctx, test.CheckSQL(staged))
		switch {
		case err != nil:
			logger.Error("audit test errored", "model", m.Name, "test", string(test.Type), "column", test.Column, "error", err)
			failures++
		case count > 0:
			logger.Error("audit test failed", "model", m.Name, "test", string(test.Type), "column", test.Column, "failing_rows", count)
			failures++
		}
	}
	return failures
}
