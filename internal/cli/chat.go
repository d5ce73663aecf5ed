package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"askdocs/internal/tui"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive ask session",
		Long:  "Ask questions in a terminal UI. Use up and down to step through the evidence of the last answer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				st := a.service.Stats()
				summary := fmt.Sprintf("%d entries, %s store, %s generator", st.Entries, opts.cfg.Store.Type, opts.cfg.Generator.Provider)
				m := tui.New(ctx, a.service, opts.cfg.RAG.TopK, summary)
				_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
				return err
			})
		},
	}
}
