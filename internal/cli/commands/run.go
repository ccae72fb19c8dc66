package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/quarrydata/quarry/internal/cli/config"
	"github.com/quarrydata/quarry/internal/run"
	"github.com/quarrydata/quarry/internal/state"
	"github.com/quarrydata/quarry/pkg/core"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Select      string
	Workers     int
	FullRefresh bool
	FailFast    bool
	StageSchema string
	ChangedOnly bool
	JSONOutput  bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all models or a selection",
		Long: `Execute SQL models in dependency order.

By default, runs all discovered models. Use --select with selector
expressions to narrow the set: "orders" runs one model, "+orders" adds its
upstream dependencies, "orders+" its downstream dependents, "2+orders"
limits the upstream walk to two hops, and "tag:nightly" or "path:marts/*"
select by metadata.`,
		Example: `  # Run all models
  quarry run

  # Run one model and everything upstream of it
  quarry run --select +orders

  # Run nightly models on 8 workers, stopping at the first failure
  quarry run --select tag:nightly --workers 8 --fail-fast

  # Rebuild incremental models from scratch with staged publishing
  quarry run --full-refresh --stage-schema wap_stage

  # Run only models whose SQL changed since the last run
  quarry run --changed-only`,
		Aliases: []string{"build"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Comma-separated selector expressions")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 1, "Number of parallel workers (1 = sequential)")
	cmd.Flags().BoolVar(&opts.FullRefresh, "full-refresh", false, "Drop and rebuild incremental models")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "Stop dispatching after the first failure")
	cmd.Flags().StringVar(&opts.StageSchema, "stage-schema", "", "Staging schema for Write-Audit-Publish models")
	cmd.Flags().BoolVar(&opts.ChangedOnly, "changed-only", false, "Run only models whose SQL changed since the last run")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Emit JSON lines instead of text")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	logger := config.GetLogger(ctx)
	out := cmd.OutOrStdout()
	started := time.Now()

	models, graph, err := loadProject(cfg)
	if err != nil {
		return err
	}

	order := graph.TopologicalOrder()
	if opts.Select != "" {
		order, err = selectModels(opts.Select, graph, models)
		if err != nil {
			return err
		}
	}
	// The graph may contain nodes for external sources the run does not
	// own; only compiled models are dispatched.
	order = compiledOnly(order, models)

	stateFile, err := state.Load(cfg.StatePath)
	if err != nil {
		logger.Warn("failed to load run state, treating all models as changed", "error", err)
		stateFile = state.New()
	}
	if opts.ChangedOnly {
		order = filterChanged(order, models, stateFile)
	}
	if len(order) == 0 {
		fmt.Fprintln(out, "Nothing to run.")
		return nil
	}

	stageSchema := opts.StageSchema
	if stageSchema == "" {
		stageSchema = cfg.StageSchema
	}

	comment := core.NewQueryComment(cfg.Project, opts.FullRefresh)
	runSet := make(map[string]*core.CompiledModel, len(order))
	for _, name := range order {
		m, ok := models[name]
		if !ok {
			continue
		}
		m.QueryComment = comment
		runSet[name] = m
	}

	db, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}()

	// Every target schema must exist before any model is dispatched.
	for _, schema := range distinctSchemas(runSet, order) {
		if err := db.CreateSchemaIfNotExists(ctx, schema); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", schema, err)
		}
	}

	if opts.JSONOutput {
		emitEvent(out, runEvent{
			Event:        "run_start",
			InvocationID: comment.InvocationID,
			Models:       order,
		})
	} else {
		fmt.Fprintf(out, "Running %d of %d models\n", len(order), len(models))
	}

	runner := run.NewRunner(db, runSet, order, run.Options{
		Workers:     opts.Workers,
		FullRefresh: opts.FullRefresh,
		FailFast:    opts.FailFast,
		StageSchema: stageSchema,
	}, logger)
	summary := runner.Run(ctx)

	persistState(stateFile, cfg.StatePath, runSet, summary, logger)

	if opts.JSONOutput {
		reportJSON(out, comment.InvocationID, summary, time.Since(started))
	} else {
		reportText(out, summary, time.Since(started))
	}

	if summary.FailureCount > 0 {
		return fmt.Errorf("run failed: %d of %d models did not succeed",
			summary.FailureCount, len(summary.Results))
	}
	return nil
}

// filterChanged keeps models whose SQL checksum differs from the last run.
// Names without a compiled model pass through nothing.
func filterChanged(order []string, models map[string]*core.CompiledModel, stateFile *state.File) []string {
	var changed []string
	for _, name := range order {
		m, ok := models[name]
		if !ok {
			continue
		}
		if stateFile.IsModified(name, state.Checksum(m.SQL)) {
			changed = append(changed, name)
		}
	}
	return changed
}

// persistState records successful runs in the state file. Failures here only
// warn; the run outcome is already decided.
func persistState(stateFile *state.File, path string, models map[string]*core.CompiledModel, summary *core.RunSummary, logger *slog.Logger) {
	for _, result := range summary.Results {
		if result.Status != core.StatusSuccess {
			continue
		}
		if m, ok := models[result.Model]; ok {
			stateFile.Update(m, result.RowCount)
		}
	}
	if err := stateFile.Save(path); err != nil {
		logger.Warn("failed to save run state", "error", err)
	}
}

type runEvent struct {
	Event        string   `json:"event"`
	InvocationID string   `json:"invocation_id,omitempty"`
	Models       []string `json:"models,omitempty"`
	Model        string   `json:"model,omitempty"`
	Status       string   `json:"status,omitempty"`
	DurationMS   int64    `json:"duration_ms,omitempty"`
	Rows         *int64   `json:"rows,omitempty"`
	Error        string   `json:"error,omitempty"`
	Success      int      `json:"success,omitempty"`
	Failed       int      `json:"failed,omitempty"`
	Skipped      int      `json:"skipped,omitempty"`
	StoppedEarly bool     `json:"stopped_early,omitempty"`
}

func emitEvent(out io.Writer, ev runEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintln(out, string(data))
}

func reportJSON(out io.Writer, invocationID string, summary *core.RunSummary, elapsed time.Duration) {
	for _, result := range summary.Results {
		ev := runEvent{
			Event:      "model_result",
			Model:      result.Model,
			Status:     string(result.Status),
			DurationMS: result.Duration.Milliseconds(),
			Error:      result.Err,
		}
		if result.RowCount >= 0 {
			rows := result.RowCount
			ev.Rows = &rows
		}
		emitEvent(out, ev)
	}
	emitEvent(out, runEvent{
		Event:        "run_complete",
		InvocationID: invocationID,
		Success:      summary.SuccessCount,
		Failed:       summary.FailureCount - summary.SkipCount(),
		Skipped:      summary.SkipCount(),
		StoppedEarly: summary.StoppedEarly,
		DurationMS:   elapsed.Milliseconds(),
	})
}

func reportText(out io.Writer, summary *core.RunSummary, elapsed time.Duration) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Model", "Status", "Materialization", "Duration", "Rows"})

	for _, result := range summary.Results {
		rows := ""
		if result.RowCount >= 0 {
			rows = fmt.Sprintf("%d", result.RowCount)
		}
		detail := string(result.Status)
		if result.Err != "" {
			detail = fmt.Sprintf("%s: %s", result.Status, result.Err)
		}
		t.AppendRow(table.Row{
			result.Model,
			detail,
			string(result.Materialization),
			result.Duration.Round(time.Millisecond),
			rows,
		})
	}

	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("%d ok / %d failed / %d skipped",
			summary.SuccessCount,
			summary.FailureCount-summary.SkipCount(),
			summary.SkipCount()),
		"", elapsed.Round(time.Millisecond), "",
	})
	t.SetStyle(table.StyleLight)
	t.Render()

	if summary.StoppedEarly {
		fmt.Fprintln(out, "Run stopped early (fail-fast).")
	}
}
