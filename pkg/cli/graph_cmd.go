package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"edfi-dms/internal/service/loadorder"
)

func newGraphCmd(opts *rootOptions) *cobra.Command {
	var (
		format  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the dependency graph for inspection",
		Long:  "Writes the diagnostic dependency diagram, with person retry nodes, as GraphML, Graphviz DOT or JSON.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			write, err := diagramWriter(format)
			if err != nil {
				return err
			}
			snap, _, err := opts.build(cmd)
			if err != nil {
				return err
			}
			if snap.DiagramErr != nil {
				return fmt.Errorf("dependency diagram: %w", snap.DiagramErr)
			}

			var out io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath) //nolint:gosec // path is caller-controlled
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close() //nolint:errcheck
				out = f
			}
			if err := write(out, snap.Diagram); err != nil {
				return err
			}
			if outPath != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d nodes and %d edges to %s\n",
					len(snap.Diagram.Nodes), len(snap.Diagram.Edges), outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "graphml", "Export format (graphml, dot, json)")
	cmd.Flags().StringVar(&outPath, "out", "", "Write to a file instead of stdout")
	return cmd
}

func diagramWriter(format string) (func(io.Writer, loadorder.Diagram) error, error) {
	switch format {
	case "graphml":
		return loadorder.WriteGraphML, nil
	case "dot":
		return loadorder.WriteDOT, nil
	case "json":
		return func(w io.Writer, d loadorder.Diagram) error { return printJSON(w, d) }, nil
	default:
		return nil, fmt.Errorf("unsupported graph format %q: use 'graphml', 'dot' or 'json'", format)
	}
}
