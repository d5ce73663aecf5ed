package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"askdocs/internal/helper"
	"askdocs/internal/models"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if topK == 0 {
				topK = opts.cfg.RAG.TopK
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				ans, err := a.service.Ask(ctx, question, topK)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					helper.PrettyPrint(cmd.OutOrStdout(), ans)
					return nil
				}
				printAnswer(cmd.OutOrStdout(), question, ans)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of evidence chunks (default from config)")
	return cmd
}

func printAnswer(w io.Writer, question string, ans models.Answer) {
	heading.Fprintln(w, "Question:")
	fmt.Fprintf(w, "%s\n\n", question)

	heading.Fprintln(w, "Answer:")
	fmt.Fprintf(w, "%s\n", ans.Text)
	if len(ans.UnknownCitations) > 0 {
		fmt.Fprintf(w, "%s\n", failure(fmt.Sprintf("cites missing evidence %v", ans.UnknownCitations)))
	}

	if len(ans.Evidence) == 0 {
		return
	}
	fmt.Fprintln(w)
	heading.Fprintln(w, "Evidence:")
	for _, e := range ans.Evidence {
		faint.Fprintf(w, "[%d] %s #%d score=%.3f\n", e.Rank, e.SourceID, e.EntryID, e.Score)
		fmt.Fprintf(w, "%s\n\n", e.Snippet)
	}
}
