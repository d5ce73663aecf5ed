package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"askdocs/internal/helper"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the chunks most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if topK == 0 {
				topK = opts.cfg.RAG.TopK
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				hits, err := a.service.Search(ctx, query, topK)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.jsonOutput {
					helper.PrettyPrint(out, hits)
					return nil
				}
				if len(hits) == 0 {
					fmt.Fprintln(out, "No matches.")
					return nil
				}
				for i, h := range hits {
					heading.Fprintf(out, "%d. %s #%d", i+1, h.SourceID, h.EntryID)
					faint.Fprintf(out, "  chunk %d score=%.3f\n", h.SequenceIndex, h.Score)
					fmt.Fprintf(out, "%s\n\n", h.Text)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of hits (default from config)")
	return cmd
}
