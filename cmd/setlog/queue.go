package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"
)

func newSetsCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sets <session-exercise-id>",
		Short: "List queued sets of one exercise, whatever their status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			se, err := uuid.FromString(strings.TrimSpace(args[0]))
			if err != nil {
				return commandError("session exercise id", err)
			}
			c, err := openClient(cmd, root)
			if err != nil {
				return err
			}
			defer c.Close()

			items, err := c.Queue.ReadBySessionExerciseID(cmd.Context(), se)
			if err != nil {
				return commandError("read queue", err)
			}
			return printItems(cmd.OutOrStdout(), root.Format, items)
		},
	}
}

func newPendingCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List sets still waiting for the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(cmd, root)
			if err != nil {
				return err
			}
			defer c.Close()

			items, err := c.Queue.ReadAllPending(cmd.Context())
			if err != nil {
				return commandError("read queue", err)
			}
			return printItems(cmd.OutOrStdout(), root.Format, items)
		},
	}
}

func newRejectedCommand(root *RootOptions) *cobra.Command {
	var discard bool
	cmd := &cobra.Command{
		Use:   "rejected",
		Short: "List sets the server refused for good",
		Long: `List sets the server refused with a validation error. They are never
retried; --discard removes them from the queue after listing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(cmd, root)
			if err != nil {
				return err
			}
			defer c.Close()

			items, err := c.Queue.ReadRejected(cmd.Context())
			if err != nil {
				return commandError("read queue", err)
			}
			if err := printItems(cmd.OutOrStdout(), root.Format, items); err != nil {
				return err
			}
			if !discard {
				return nil
			}
			for _, it := range items {
				if err := c.Queue.Remove(cmd.Context(), it.ID); err != nil {
					return commandError("discard rejected set", err)
				}
			}
			if root.Format == "text" && len(items) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "discarded %d\n", len(items))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&discard, "discard", false, "remove the listed sets")
	return cmd
}

func newPruneCommand(root *RootOptions) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove synced sets confirmed before a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return commandError("--older-than must not be negative", nil)
			}
			c, err := openClient(cmd, root)
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := c.Queue.PruneSynced(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return commandError("prune", err)
			}
			if root.Format == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]int{"removed": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "keep synced sets confirmed within this window")
	return cmd
}
