package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"askdocs/internal/helper"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				st := a.service.Stats()
				out := cmd.OutOrStdout()
				if opts.jsonOutput {
					helper.PrettyPrint(out, st)
					return nil
				}
				heading.Fprintln(out, "Index:")
				fmt.Fprintf(out, "  store:     %s\n", opts.cfg.Store.Type)
				fmt.Fprintf(out, "  entries:   %d\n", st.Entries)
				fmt.Fprintf(out, "  dimension: %d\n", st.Dimension)
				return nil
			})
		},
	}
}
