package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"edfi-dms/internal/domain"
)

func newPlanCmd(opts *rootOptions) *cobra.Command {
	var (
		host  string
		group int
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the grouped load order",
		Long: "Computes the load order from ApiSchema files, or fetches it from a running server with --host. " +
			"Resources in the same group can be loaded in parallel; groups must be loaded in ascending order.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var orders []domain.LoadOrder
			if host != "" {
				remote, err := fetchRemote(cmd.Context(), host)
				if err != nil {
					return err
				}
				orders = remote
			} else {
				snap, _, err := opts.build(cmd)
				if err != nil {
					return err
				}
				orders = snap.LoadOrder
			}

			if group > 0 {
				filtered := orders[:0:0]
				for _, o := range orders {
					if o.Group == group {
						filtered = append(filtered, o)
					}
				}
				orders = filtered
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				if orders == nil {
					orders = []domain.LoadOrder{}
				}
				return printJSON(out, orders)
			}
			rows := make([][]string, len(orders))
			for i, o := range orders {
				ops := make([]string, len(o.Operations))
				for j, op := range o.Operations {
					ops[j] = string(op)
				}
				rows[i] = []string{strconv.Itoa(o.Group), o.ResourcePath, strings.Join(ops, ",")}
			}
			return printTable(out, []string{"group", "resource", "operations"}, rows)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Fetch the load order from a running server instead of local schema files")
	cmd.Flags().IntVar(&group, "group", 0, "Only print the given group")
	return cmd
}
