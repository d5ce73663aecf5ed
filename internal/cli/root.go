package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"askdocs/internal/config"
	"askdocs/internal/helper"
	"askdocs/internal/models"
)

type rootOptions struct {
	configPath string
	debug      bool
	jsonOutput bool
	cfg        *config.Config
}

// NewRootCmd builds the askdocs command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "askdocs",
		Short:         "askdocs - ask questions about your documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			level := cfg.Log.Level
			if opts.debug {
				level = "debug"
			}
			helper.SetupLogger(level, cfg.Log.Pretty)
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultConfigPath, "config file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		newIngestCmd(opts),
		newAskCmd(opts),
		newSearchCmd(opts),
		newChatCmd(opts),
		newStatsCmd(opts),
		newRemoveCmd(opts),
		newExportCmd(opts),
	)
	return root
}

// Execute runs the command tree until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error (%s): %v\n", models.KindOf(err), err)
		stop()
		os.Exit(1)
	}
}

// withApp wires the pipeline for the duration of fn. Closing the store can
// write the chromem export, so its error is returned too.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close %s store: %w", opts.cfg.Store.Type, cerr))
		}
	}()
	return fn(ctx, a)
}

var (
	heading = color.New(color.FgCyan, color.Bold)
	faint   = color.New(color.Faint)
	success = color.New(color.FgGreen).SprintFunc()
	failure = color.New(color.FgRed).SprintFunc()
)
