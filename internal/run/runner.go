// Package run implements the model execution engine: wave scheduling,
// sequential and parallel dispatch, the per-model materialization state
// machine, incremental strategies, and the Write-Audit-Publish protocol.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/quarrydata/quarry/pkg/adapter"
	"github.com/quarrydata/quarry/pkg/core"
)

// Options controls one run.
type Options struct {
	// Workers selects sequential (<= 1) or parallel execution.
	Workers int
	// FullRefresh drops and rebuilds incremental models.
	FullRefresh bool
	// FailFast stops dispatching new models after the first failure.
	// Models already running finish normally.
	FailFast bool
	// StageSchema enables Write-Audit-Publish for opted-in models.
	StageSchema string
}

// Runner executes a set of compiled models in dependency order.
type Runner struct {
	db     adapter.Database
	models map[string]*core.CompiledModel
	order  []string
	opts   Options
	logger *slog.Logger
}

// NewRunner builds a runner over an already-sorted execution order.
// If logger is nil, a discard logger is used.
func NewRunner(db adapter.Database, models map[string]*core.CompiledModel, order []string, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{db: db, models: models, order: order, opts: opts, logger: logger}
}

// ExecutionLevels returns the parallel scheduling waves for this run.
func (r *Runner) ExecutionLevels() [][]string {
	return computeExecutionLevels(r.order, r.models, r.logger)
}

// collector is the shared aggregation state for one run. All mutation goes
// through its methods so the mutex scope stays obvious.
type collector struct {
	mu      sync.Mutex
	results []core.ModelRunResult
	success int
	failure int
	// cascadeFailed holds models pre-failed by an upstream WAP failure.
	cascadeFailed map[string]bool
}

func newCollector() *collector {
	return &collector{cascadeFailed: make(map[string]bool)}
}

func (c *collector) add(result core.ModelRunResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
	if result.Status == core.StatusSuccess {
		c.success++
	} else {
		c.failure++
	}
}

func (c *collector) markCascade(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		c.cascadeFailed[name] = true
	}
}

func (c *collector) isCascaded(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cascadeFailed[name]
}

// Run executes all models and returns the aggregated summary. Per-model
// failures are captured into results and never abort independent models;
// only fail-fast stops dispatch early.
func (r *Runner) Run(ctx context.Context) *core.RunSummary {
	col := newCollector()
	var stopped atomic.Bool

	if r.opts.Workers <= 1 {
		r.runSequential(ctx, col, &stopped)
	} else {
		r.runParallel(ctx, col, &stopped)
	}

	r.fetchRowCounts(ctx, col.results)

	return &core.RunSummary{
		Results:      col.results,
		SuccessCount: col.success,
		FailureCount: col.failure,
		StoppedEarly: stopped.Load(),
	}
}

func (r *Runner) runSequential(ctx context.Context, col *collector, stopped *atomic.Bool) {
	for _, name := range r.order {
		m, ok := r.models[name]
		if !ok {
			r.logger.Warn("model in execution order but not compiled, skipping", "model", name)
			continue
		}

		if col.isCascaded(name) {
			col.add(skippedResult(m))
			continue
		}

		if m.Materialization == core.MaterializationEphemeral {
			col.add(ephemeralResult(m))
			continue
		}

		result := runSingleModel(ctx, r.db, m, r.opts.FullRefresh, r.opts.StageSchema, r.logger)
		if result.Status == core.StatusError && wapEligible(m, r.opts.StageSchema) {
			col.markCascade(r.transitiveDependents(name))
		}
		col.add(result)

		if result.Status == core.StatusError && r.opts.FailFast {
			stopped.Store(true)
			r.logger.Info("stopping early: fail-fast engaged", "failed_model", name)
			break
		}
	}
}

func (r *Runner) runParallel(ctx context.Context, col *collector, stopped *atomic.Bool) {
	levels := computeExecutionLevels(r.order, r.models, r.logger)
	r.logger.Info("parallel mode", "workers", r.opts.Workers, "waves", len(levels))

	for _, wave := range levels {
		if stopped.Load() {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.Workers)

		for _, name := range wave {
			m, ok := r.models[name]
			if !ok {
				r.logger.Warn("model in execution order but not compiled, skipping", "model", name)
				continue
			}

			if m.Materialization == core.MaterializationEphemeral {
				// Cascade marks from earlier waves are visible here because
				// of the wave barrier; an ephemeral downstream of a failed
				// WAP publish skips like any other dependent.
				if col.isCascaded(m.Name) {
					col.add(skippedResult(m))
				} else {
					col.add(ephemeralResult(m))
				}
				continue
			}

			g.Go(func() error {
				// Cooperative fail-fast: consult the flag before starting so
				// no statement is ever interrupted mid-flight.
				if stopped.Load() && r.opts.FailFast {
					return nil
				}
				if col.isCascaded(m.Name) {
					col.add(skippedResult(m))
					return nil
				}

				result := runSingleModel(gctx, r.db, m, r.opts.FullRefresh, r.opts.StageSchema, r.logger)
				if result.Status == core.StatusError {
					if wapEligible(m, r.opts.StageSchema) {
						col.markCascade(r.transitiveDependents(m.Name))
					}
					if r.opts.FailFast {
						stopped.Store(true)
						r.logger.Info("stopping early: fail-fast engaged", "failed_model", m.Name)
					}
				}
				col.add(result)
				return nil
			})
		}

		// Hard barrier: the next wave never starts before this one joins.
		_ = g.Wait()
	}
}

// transitiveDependents walks the reverse dependency closure of name.
func (r *Runner) transitiveDependents(name string) []string {
	dependents := make(map[string]bool)
	toCheck := []string{name}

	for len(toCheck) > 0 {
		current := toCheck[len(toCheck)-1]
		toCheck = toCheck[:len(toCheck)-1]

		for candidate, m := range r.models {
			if dependents[candidate] {
				continue
			}
			for _, dep := range m.Dependencies {
				if dep == current {
					dependents[candidate] = true
					toCheck = append(toCheck, candidate)
					break
				}
			}
		}
	}

	out := make([]string, 0, len(dependents))
	for name := range dependents {
		out = append(out, name)
	}
	return out
}

// fetchRowCounts best-effort reads a row count for every non-ephemeral,
// non-skipped success. Failures here only warn; the run already succeeded.
func (r *Runner) fetchRowCounts(ctx context.Context, results []core.ModelRunResult) {
	for i := range results {
		result := &results[i]
		if result.Status != core.StatusSuccess {
			continue
		}
		m, ok := r.models[result.Model]
		if !ok || m.Materialization == core.MaterializationEphemeral {
			continue
		}

		countSQL := fmt.Sprintf("SELECT 1 FROM %s", core.QuoteQualified(m.QualifiedName()))
		count, err := r.db.QueryCount(ctx, countSQL)
		if err != nil {
			r.logger.Warn("failed to fetch row count", "model", result.Model, "error", err)
			continue
		}
		result.RowCount = count
	}
}

func skippedResult(m *core.CompiledModel) core.ModelRunResult {
	return core.ModelRunResult{
		Model:           m.Name,
		Status:          core.StatusSkipped,
		Materialization: m.Materialization,
		Err:             "skipped: upstream WAP failure",
		RowCount:        -1,
	}
}

func ephemeralResult(m *core.CompiledModel) core.ModelRunResult {
	return core.ModelRunResult{
		Model:           m.Name,
		Status:          core.StatusSuccess,
		Materialization: core.MaterializationEphemeral,
		RowCount:        -1,
	}
}
