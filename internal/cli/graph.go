package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runghost/runghost/pkg/export"
)

// newGraphCmd creates the graph command, which exports the dependency graph
// for visualization.
func newGraphCmd() *cobra.Command {
	var (
		format   string
		output   string
		detailed bool
		dev      bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the dependency graph as DOT or SVG",
		Long: `Load the dependency graph (building it if no cached graph exists) and write
it in Graphviz DOT or rendered SVG form. With no --output the result goes to
stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := buildApp(ctx, configPath(cmd))
			if err != nil {
				return err
			}
			defer app.Close()

			spinner := newSpinnerWithContext(ctx, "Loading dependency graph...")
			spinner.Start()
			res, err := app.svc.LoadGraph(ctx)
			if err != nil {
				spinner.StopWithError(fmt.Sprintf("Load failed: %v", err))
				return err
			}
			spinner.Stop()

			var data []byte
			switch format {
			case "dot":
				data = []byte(export.ToDOT(res.Graph, export.Options{Detailed: detailed, IncludeDev: dev}))
			case "svg":
				dot := export.ToDOT(res.Graph, export.Options{Detailed: detailed, IncludeDev: dev})
				data, err = export.RenderSVG(ctx, dot)
				if err != nil {
					return err
				}
			case "json":
				data, err = json.MarshalIndent(res.Graph, "", "  ")
				if err != nil {
					return err
				}
				data = append(data, '\n')
			default:
				return fmt.Errorf("unknown format %q, want dot, svg, or json", format)
			}

			if output == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			printSuccess("Exported dependency graph")
			printStats(res.Stats, res.FromCache)
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "dot", "output format: dot, svg, or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include versions and paths in node labels")
	cmd.Flags().BoolVar(&dev, "dev", false, "include dev dependency edges")
	return cmd
}
