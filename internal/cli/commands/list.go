package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/quarrydata/quarry/internal/cli/config"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all models and their metadata",
		Long:  `List all discovered models in execution order with materialization, schema, tags, and dependencies.`,
		Example: `  # List all models
  quarry list

  # List models as JSON
  quarry list --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func runList(cmd *cobra.Command, jsonOutput bool) error {
	cfg := config.FromContext(cmd.Context())
	out := cmd.OutOrStdout()

	models, graph, err := loadProject(cfg)
	if err != nil {
		return err
	}
	order := graph.TopologicalOrder()

	if jsonOutput {
		type modelInfo struct {
			Name            string   `json:"name"`
			Materialization string   `json:"materialization"`
			Schema          string   `json:"schema,omitempty"`
			Tags            []string `json:"tags,omitempty"`
			DependsOn       []string `json:"depends_on,omitempty"`
			Path            string   `json:"path,omitempty"`
		}
		infos := make([]modelInfo, 0, len(order))
		for _, name := range order {
			m := models[name]
			infos = append(infos, modelInfo{
				Name:            m.Name,
				Materialization: string(m.Materialization),
				Schema:          m.Schema,
				Tags:            m.Tags,
				DependsOn:       graph.Dependencies(name),
				Path:            m.Path,
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	fmt.Fprintf(out, "Models (%d total)\n", len(models))

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"#", "Model", "Materialization", "Schema", "Tags", "Depends On"})
	for i, name := range order {
		m := models[name]
		t.AppendRow(table.Row{
			i + 1,
			m.Name,
			string(m.Materialization),
			m.Schema,
			strings.Join(m.Tags, ", "),
			strings.Join(graph.Dependencies(name), ", "),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return nil
}
