// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/topiq-dev/topiq/internal/config"
	topiqerr "github.com/topiq-dev/topiq/pkg/errors"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the topiq server",
		Long:  "Load configuration, open the cache stores, and start the HTTP query API.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return topiqerr.Wrapf(err, topiqerr.CodeCLISetupFailure, "loading config")
	}

	// Apply any flag overrides that viper resolved.
	if listen := viper.GetString("server.listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	app, err := WireApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.RunSweeper(ctx)

	slog.Info("starting topiq", "listen", cfg.Server.Listen, "storage", cfg.Storage.Path)
	return app.Server.Start(ctx)
}
