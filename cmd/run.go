// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/telekom/netpath/internal/logger"
	"github.com/telekom/netpath/pkg/config"
	"github.com/telekom/netpath/pkg/netpath"
)

// NewCmdRun creates a new run command
func NewCmdRun() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the netpath agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

// run loads the startup configuration and runs the agent
// until it is shut down or fails
func run(ctx context.Context) error {
	cfg := &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	log := logger.NewLogger()
	ctx, stop := signal.NotifyContext(logger.IntoContext(ctx, log), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(ctx); err != nil {
		return err
	}

	log.InfoContext(ctx, "Running netpath", "name", cfg.Name)
	return netpath.New(cfg).Run(ctx)
}
