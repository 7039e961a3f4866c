// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/telekom/netpath/internal/logger"
	"github.com/telekom/netpath/internal/probing"
)

// NewCmdTrace creates a new trace command
func NewCmdTrace() *cobra.Command {
	flags := newProbeFlags()

	cmd := &cobra.Command{
		Use:   "trace <target>",
		Short: "Discover the network path to a target",
		Long: "Trace discovers the network path to a target by probing it with increasing TTLs\n" +
			"and prints one line per hop as the discovery progresses.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, args[0], flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runTrace(cmd *cobra.Command, target string, flags *probeFlags) error {
	log := logger.NewLogger()
	ctx, stop := signal.NotifyContext(logger.IntoContext(cmd.Context(), log), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events, err := probing.New().Discover(ctx, target, flags.options())
	if err != nil {
		return err
	}

	cmd.Printf("Tracing the path to %s, %d hops max\n", target, flags.maxHops)
	for ev := range events {
		if ev.Err != nil {
			return ev.Err
		}
		cmd.Println(ev.Hop.String())
	}
	return nil
}
