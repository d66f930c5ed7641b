// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the holoauth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holoauth",
		Short: "holoauth - accounts, session tokens and admin checks",
		Long: `holoauth maps host identities to accounts, issues and validates
time-limited session tokens, manages credentials and answers
"is this caller an administrator?".`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: none)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCallCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
