// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root topiq command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "topiq",
		Short:         "Topiq — semantic cache query engine",
		Long:          "Topiq resolves free-text questions against a self-populating semantic cache of topics and answers them from cached knowledge.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env is fine; TOPIQ_* variables may come from
			// the process environment instead.
			_ = godotenv.Load()

			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}
			return nil
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newStartCmd(),
		newSeedCmd(),
		newVersionCmd(),
	)

	return root
}
