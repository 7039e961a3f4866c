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

const defaultMtrCycles = 10

// NewCmdMtr creates a new mtr command
func NewCmdMtr() *cobra.Command {
	flags := newProbeFlags()
	var cycles int

	cmd := &cobra.Command{
		Use:   "mtr <target>",
		Short: "Measure the network path to a target over repeated cycles",
		Long: "Mtr probes the path to a target over repeated discovery cycles and prints\n" +
			"per-hop loss and round-trip statistics once all cycles have completed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMtr(cmd, args[0], cycles, flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVarP(&cycles, "cycles", "C", defaultMtrCycles, "number of probing cycles")
	return cmd
}

func runMtr(cmd *cobra.Command, target string, cycles int, flags *probeFlags) error {
	log := logger.NewLogger()
	ctx, stop := signal.NotifyContext(logger.IntoContext(cmd.Context(), log), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events, err := probing.New().Measure(ctx, target, cycles, flags.options())
	if err != nil {
		return err
	}

	var summary probing.CycleSummary
	for ev := range events {
		summary = ev.Summary
	}

	cmd.Printf("Measured %s (%s) over %d cycles via %s\n",
		summary.Target, summary.TargetAddr, summary.CyclesComplete, summary.Protocol)
	for _, hop := range summary.Hops {
		cmd.Println(hop.String())
	}
	return ctx.Err()
}
