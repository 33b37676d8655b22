package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/app"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "text" | "json"
}

var validFormats = []string{"text", "json"}

// NewRootCommand creates the setlog command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "setlog",
		Short: "Log workout sets, offline first",
		Long: `setlog records every set in a local queue before anything touches the
network, then delivers the queue to the server in order, retrying with backoff.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return commandError(fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, validFormats), nil)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.config/setlog/config.toml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newLogCommand(opts))
	cmd.AddCommand(newSetsCommand(opts))
	cmd.AddCommand(newPendingCommand(opts))
	cmd.AddCommand(newRejectedCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newPruneCommand(opts))
	cmd.AddCommand(newTodayCommand(opts))
	cmd.AddCommand(newTokenCommand())

	return cmd
}

// openClient loads the config and wires the client. The caller closes it.
func openClient(cmd *cobra.Command, opts *RootOptions) (*app.Client, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, commandError("load config", err)
	}
	log, err := app.NewLogger(opts.Verbose)
	if err != nil {
		return nil, commandError("init logger", err)
	}
	c, err := app.Open(cmd.Context(), cfg, app.Options{Logger: log})
	if err != nil {
		return nil, commandError("open client", err)
	}
	return c, nil
}
