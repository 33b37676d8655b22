package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/status"
)

func newSyncCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(cmd, root)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			rep, ran := c.SyncOnce(ctx)
			if !ran {
				return failure("server unreachable, nothing sent")
			}
			if root.Format == "json" {
				return printJSON(cmd.OutOrStdout(), rep)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"attempted %d, synced %d, failed %d, rejected %d, waiting %d\n",
				rep.Attempted, rep.Synced, rep.Failed, rep.Rejected, rep.Deferred+rep.Held)
			return nil
		},
	}
}

func newRunCommand(root *RootOptions) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep syncing in the foreground and print status changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(cmd, root)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			return c.Run(cmd.Context(), every, func(s status.State) {
				if root.Format == "json" {
					_ = printJSON(out, map[string]string{"status": string(s), "at": time.Now().Format(time.RFC3339)})
					return
				}
				fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.TimeOnly), label(s))
			})
		},
	}
	cmd.Flags().DurationVar(&every, "status-every", time.Second, "status poll interval")
	return cmd
}

func newStatusCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the sync badge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(cmd, root)
			if err != nil {
				return err
			}
			defer c.Close()

			c.Monitor.Probe(cmd.Context())
			s := c.Status.Poll(cmd.Context())
			if root.Format == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"status":  string(s),
					"storage": c.StorageAvailable(),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), label(s))
			if !c.StorageAvailable() {
				fmt.Fprintln(cmd.OutOrStdout(), "local storage unavailable")
			}
			return nil
		},
	}
}

func label(s status.State) string {
	switch s {
	case status.Offline:
		return "Offline"
	case status.Syncing:
		return "Syncing..."
	case status.SavedLocally:
		return "Saved locally"
	case status.Synced:
		return "Synced"
	default:
		return "Up to date"
	}
}
