package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"askdocs/internal/models"
)

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <entry-id>...",
		Short: "Remove indexed entries by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]models.EntryID, len(args))
			for i, arg := range args {
				n, err := strconv.ParseUint(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid entry id %q", arg)
				}
				ids[i] = models.EntryID(n)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				for _, id := range ids {
					if err := a.service.Remove(ctx, id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s removed %d\n", success("ok"), id)
				}
				return nil
			})
		},
	}
}
