package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/config"
)

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored access token",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <jwt>",
		Short: "Store an access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := config.SaveToken(strings.TrimSpace(args[0]))
			if err != nil {
				return commandError("save token", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved, expires %s\n", exp.Local().Format(time.RFC3339))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Report whether a usable token is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.LoadToken()
			if errors.Is(err, config.ErrNoToken) {
				return &exitError{code: exitFailure, msg: "token", err: err}
			}
			if err != nil {
				return commandError("load token", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "token stored")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ClearToken(); err != nil {
				return commandError("clear token", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared")
			return nil
		},
	})

	return cmd
}
