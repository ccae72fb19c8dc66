package commands

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/quarrydata/quarry/internal/cli/config"
)

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run an ad-hoc query against the target database",
		Long:  `Execute a SQL query against the configured target and print the rows.`,
		Example: `  # Peek at a materialized model
  quarry query "SELECT * FROM marts.orders LIMIT 10"

  # Output rows as JSON
  quarry query "SELECT count(*) AS n FROM marts.orders" --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdhocQuery(cmd, args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit rows as JSON")
	return cmd
}

func runAdhocQuery(cmd *cobra.Command, sqlQuery string, jsonOutput bool) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	logger := config.GetLogger(ctx)
	out := cmd.OutOrStdout()

	db, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}()

	rows, err := db.Query(ctx, sqlQuery)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("failed to read columns: %w", err)
	}

	var records [][]string
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		record := make([]string, len(cols))
		for i, v := range values {
			record[i] = formatValue(v)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read rows: %w", err)
	}

	if jsonOutput {
		objs := make([]map[string]string, 0, len(records))
		for _, record := range records {
			obj := make(map[string]string, len(cols))
			for i, col := range cols {
				obj[col] = record[i]
			}
			objs = append(objs, obj)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(objs)
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)
	for _, record := range records {
		row := make(table.Row, len(record))
		for i, v := range record {
			row[i] = v
		}
		t.AppendRow(row)
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	fmt.Fprintf(out, "(%d rows)\n", len(records))
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
