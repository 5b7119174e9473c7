package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

type validateResult struct {
	Valid        bool          `json:"valid"`
	Resources    int           `json:"resources"`
	Groups       int           `json:"groups"`
	RemovedEdges []removedEdge `json:"removedEdges"`
	Errors       []string      `json:"errors,omitempty"`
}

type removedEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate ApiSchema files offline",
		Long: "Loads the schema, builds the dependency graph and checks that every cycle can be broken " +
			"by dropping optional references. Exits non-zero when the schema is malformed or a cycle is unbreakable.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, _, err := opts.build(cmd)
			if err != nil {
				res := validateResult{Errors: problems(err), RemovedEdges: []removedEdge{}}
				if getOutputFormat(cmd) == "json" {
					if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
						return perr
					}
				} else {
					fmt.Fprintf(cmd.ErrOrStderr(), "Schema has %d error(s):\n", len(res.Errors))
					for _, p := range res.Errors {
						fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", p)
					}
				}
				return fmt.Errorf("schema is invalid")
			}

			res := validateResult{
				Valid:        true,
				Resources:    len(snap.LoadOrder),
				RemovedEdges: make([]removedEdge, 0, len(snap.RemovedEdges)),
			}
			if n := len(snap.LoadOrder); n > 0 {
				res.Groups = snap.LoadOrder[n-1].Group
			}
			for _, e := range snap.RemovedEdges {
				res.RemovedEdges = append(res.RemovedEdges, removedEdge{Source: e.Source.String(), Target: e.Target.String()})
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return printJSON(out, res)
			}
			fmt.Fprintf(out, "Schema is valid: %d load-order entries in %d groups.\n", res.Resources, res.Groups)
			if len(res.RemovedEdges) == 0 {
				return nil
			}
			fmt.Fprintf(out, "\nOptional references dropped to break cycles:\n")
			rows := make([][]string, len(res.RemovedEdges))
			for i, e := range res.RemovedEdges {
				rows[i] = []string{strconv.Itoa(i + 1), e.Source, e.Target}
			}
			return printTable(out, []string{"#", "referenced", "referencing"}, rows)
		},
	}
	return cmd
}

// problems flattens joined schema errors into one message per problem.
func problems(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, problems(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
