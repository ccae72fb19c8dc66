package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quarrydata/quarry/internal/cli/config"
)

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "dag",
		Short: "Show the dependency graph",
		Long: `Display the dependency graph of all models.

Models are grouped by execution level: every model in a level only depends
on models in earlier levels, so a level's models can run in parallel.`,
		Example: `  # Show the DAG grouped by level
  quarry dag

  # Output as JSON
  quarry dag --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDAG(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func runDAG(cmd *cobra.Command, jsonOutput bool) error {
	cfg := config.FromContext(cmd.Context())
	out := cmd.OutOrStdout()

	models, graph, err := loadProject(cfg)
	if err != nil {
		return err
	}
	levels := graph.Levels()

	if jsonOutput {
		type levelInfo struct {
			Level  int      `json:"level"`
			Models []string `json:"models"`
		}
		infos := make([]levelInfo, 0, len(levels))
		for i, level := range levels {
			infos = append(infos, levelInfo{Level: i, Models: level})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	fmt.Fprintln(out, "Dependency Graph")
	edges := 0
	for i, level := range levels {
		fmt.Fprintf(out, "\nLevel %d:\n", i)
		for _, name := range level {
			fmt.Fprintf(out, "  %s\n", name)
			if deps := graph.Dependencies(name); len(deps) > 0 {
				fmt.Fprintf(out, "    depends on: %s\n", strings.Join(deps, ", "))
				edges += len(deps)
			}
			if dependents := graph.Dependents(name); len(dependents) > 0 {
				fmt.Fprintf(out, "    used by: %s\n", strings.Join(dependents, ", "))
			}
		}
	}
	fmt.Fprintf(out, "\nTotal: %d models, %d dependencies\n", len(models), edges)
	return nil
}
