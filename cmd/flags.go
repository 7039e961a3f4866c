// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/telekom/netpath/internal/probing"
)

// probeFlags holds the probing flags shared by the trace and mtr commands
type probeFlags struct {
	protocol   string
	maxHops    int
	timeout    time.Duration
	packetSize int
	port       int
	queries    int
	noResolve  bool
	ipv6       bool
}

func newProbeFlags() *probeFlags {
	defaults := probing.DefaultOptions()
	return &probeFlags{
		protocol:   defaults.Protocol.String(),
		maxHops:    defaults.MaxHops,
		timeout:    defaults.Timeout,
		packetSize: defaults.PacketSize,
		port:       defaults.Port,
		queries:    defaults.Retry.Count,
	}
}

func (f *probeFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.protocol, "protocol", "P", f.protocol, "probe protocol (icmp, udp or tcp)")
	fs.IntVarP(&f.maxHops, "max-hops", "m", f.maxHops, "maximum number of hops to probe")
	fs.DurationVarP(&f.timeout, "timeout", "w", f.timeout, "time to wait for each reply")
	fs.IntVar(&f.packetSize, "size", f.packetSize, "probe packet size in bytes")
	fs.IntVarP(&f.port, "port", "p", f.port, "base destination port for udp and tcp probes")
	fs.IntVarP(&f.queries, "queries", "q", f.queries, "number of probes per hop")
	fs.BoolVarP(&f.noResolve, "no-resolve", "n", f.noResolve, "do not resolve hop addresses to hostnames")
	fs.BoolVarP(&f.ipv6, "ipv6", "6", f.ipv6, "prefer the IPv6 address of the target")
}

func (f *probeFlags) options() probing.Options {
	opts := probing.DefaultOptions()
	opts.Protocol = probing.Protocol(f.protocol)
	opts.MaxHops = f.maxHops
	opts.Timeout = f.timeout
	opts.PacketSize = f.packetSize
	opts.Port = f.port
	opts.Retry.Count = f.queries
	opts.ResolveHostnames = !f.noResolve
	opts.PreferIPv6 = f.ipv6
	return opts
}
