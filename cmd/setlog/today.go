package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"
)

func newTodayCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "today <session-exercise-id>",
		Short: "Show the server's sets for one exercise, from cache when offline",
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

			ctx, cancel := context.WithTimeout(cmd.Context(), syncTimeout)
			defer cancel()
			snap, stale, err := c.Today.Refresh(ctx, c.API, se)
			if err != nil {
				return failure(fmt.Sprintf("no sets available: %v", err))
			}

			out := cmd.OutOrStdout()
			if root.Format == "json" {
				return printJSON(out, map[string]any{"stale": stale, "snapshot": snap})
			}
			if stale {
				fmt.Fprintf(out, "offline, showing sets as of %s\n", snap.CapturedAt.Local().Format(time.RFC3339))
				if snap.SessionExerciseID != se {
					fmt.Fprintf(out, "cached view is for exercise %s\n", snap.SessionExerciseID)
				}
			}
			return printSets(out, snap.Sets)
		},
	}
}
