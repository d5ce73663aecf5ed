package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"askdocs/internal/chromemdb"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an encrypted export of the chromem collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.Store.Type != "chromem" {
				return fmt.Errorf("export needs the chromem store, configured store is %q", opts.cfg.Store.Type)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				m, ok := a.store.(*chromemdb.VectorDBManager)
				if !ok {
					return fmt.Errorf("store does not support export")
				}
				if err := m.Export(ctx, out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s exported %d entries\n", success("ok"), a.index.Len())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "export file (default <path>/<collection>.chromem)")
	return cmd
}
