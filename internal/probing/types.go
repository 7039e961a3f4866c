// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package probing

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/telekom/netpath/internal/helper"
)

// Protocol represents the probe protocol used for a discovery run.
type Protocol string

// Protocol constants for the discovery run.
const (
	ProtocolICMP Protocol = "icmp"
	ProtocolUDP  Protocol = "udp"
	ProtocolTCP  Protocol = "tcp"
)

func (p Protocol) String() string {
	switch p {
	case ProtocolICMP, ProtocolUDP, ProtocolTCP:
		return string(p)
	default:
		return "unknown"
	}
}

func (p Protocol) IsValid() bool {
	valid := []Protocol{ProtocolICMP, ProtocolUDP, ProtocolTCP}
	return slices.Contains(valid, p)
}

// IPVersion is the IP version a run operates on.
type IPVersion int

const (
	IPv4 IPVersion = 4
	IPv6 IPVersion = 6
)

func (v IPVersion) String() string {
	return fmt.Sprintf("IPv%d", int(v))
}

// Default values for Options.
const (
	DefaultMaxHops    = 30
	DefaultTimeout    = 3 * time.Second
	DefaultPacketSize = 64
	DefaultPort       = 33434
	DefaultRetries    = 3
	// DefaultRetryDelay is added to the wait deadline on every retry of a hop.
	DefaultRetryDelay = 500 * time.Millisecond

	// maxTTL is the highest hop-limit value the IP header can carry.
	maxTTL = 255
)

// Options contains the configuration for a discovery or MTR run.
type Options struct {
	// Protocol is the probe protocol to use.
	Protocol Protocol `json:"protocol" yaml:"protocol" mapstructure:"protocol"`
	// MaxHops is the maximum TTL to probe before giving up.
	MaxHops int `json:"maxHops" yaml:"maxHops" mapstructure:"maxHops"`
	// Timeout is the base wait deadline for each probe.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	// PacketSize is the requested probe packet size in bytes.
	PacketSize int `json:"packetSize" yaml:"packetSize" mapstructure:"packetSize"`
	// Port is the base destination port for UDP and TCP probes.
	Port int `json:"port" yaml:"port" mapstructure:"port"`
	// Retry configures the per-hop retries. Delay grows the wait deadline
	// per attempt rather than sleeping between attempts.
	Retry helper.RetryConfig `json:"retry" yaml:"retry" mapstructure:"retry"`
	// ResolveHostnames enables reverse DNS lookups for responding hops.
	ResolveHostnames bool `json:"resolveHostnames" yaml:"resolveHostnames" mapstructure:"resolveHostnames"`
	// PreferIPv6 prefers an IPv6 target address when both families resolve.
	PreferIPv6 bool `json:"preferIPv6" yaml:"preferIPv6" mapstructure:"preferIPv6"`
}

// DefaultOptions returns the default run configuration.
func DefaultOptions() Options {
	return Options{
		Protocol:   ProtocolICMP,
		MaxHops:    DefaultMaxHops,
		Timeout:    DefaultTimeout,
		PacketSize: DefaultPacketSize,
		Port:       DefaultPort,
		Retry: helper.RetryConfig{
			Count: DefaultRetries,
			Delay: DefaultRetryDelay,
		},
		ResolveHostnames: true,
	}
}

// Validate checks the options before any probing starts.
func (o *Options) Validate() error {
	if !o.Protocol.IsValid() {
		return ErrInvalidParameter{Param: "protocol", Reason: fmt.Sprintf("unsupported protocol %q", string(o.Protocol))}
	}
	if o.MaxHops < 1 || o.MaxHops > maxTTL {
		return ErrInvalidParameter{Param: "maxHops", Reason: fmt.Sprintf("must be between 1 and %d, got %d", maxTTL, o.MaxHops)}
	}
	if o.Timeout <= 0 {
		return ErrInvalidParameter{Param: "timeout", Reason: "must be greater than 0"}
	}
	if o.Port < 0 || o.Port > 65535 {
		return ErrInvalidParameter{Param: "port", Reason: fmt.Sprintf("must be between 0 and 65535, got %d", o.Port)}
	}
	if o.Retry.Count < 1 {
		return ErrInvalidParameter{Param: "retry.count", Reason: "must be at least 1"}
	}
	return nil
}

// UnknownAddr is the address sentinel for a hop that gave no reply.
const UnknownAddr = "*"

// Hop is one measurement for one hop in one discovery run.
// It is immutable once yielded.
type Hop struct {
	// Number is the 1-based distance from the origin.
	Number int `json:"hop" yaml:"hop"`
	// Addr is the responder address, or [UnknownAddr] if no reply arrived.
	Addr string `json:"address" yaml:"address"`
	// Name is the reverse-resolved hostname, falling back to the address.
	Name string `json:"hostname" yaml:"hostname"`
	// RTT is the round-trip time of the probe. Zero when Timeout is set.
	RTT time.Duration `json:"-" yaml:"-"`
	// Timeout reports that no reply arrived within any retry deadline.
	Timeout bool `json:"-" yaml:"-"`
	// Loop reports that Addr was already seen earlier in the same run.
	// A loop hop is always the last record of its run.
	Loop bool `json:"isLoop" yaml:"isLoop"`
	// Reached reports that Addr equals the resolved target address.
	Reached bool `json:"isDestination" yaml:"isDestination"`
}

// Delay renders the round-trip time as "<ms> ms", or "Timeout" for an
// unanswered hop.
func (h Hop) Delay() string {
	if h.Timeout {
		return "Timeout"
	}
	return fmt.Sprintf("%.2f ms", float64(h.RTT.Microseconds())/1e3)
}

func (h Hop) MarshalJSON() ([]byte, error) {
	type alias Hop
	return json.Marshal(&struct {
		Delay string `json:"delay"`
		alias
	}{
		Delay: h.Delay(),
		alias: alias(h),
	})
}

func (h Hop) String() string {
	reached := ""
	if h.Reached {
		reached = "  (reached)"
	}
	if h.Loop {
		reached = "  (loop)"
	}

	const maxNameLength = 45
	name := h.Name
	if name == "" || len(name) > maxNameLength {
		name = h.Addr
	}

	return fmt.Sprintf("%-2d  %-45.45s  %s%s",
		h.Number, name, h.Delay(), reached)
}

// Event is one element of the lazy discovery sequence: a hop record, the
// run progress in [0,1] and, for terminal failures, the error that ended
// the run. Reached is mirrored from the hop record for callers that only
// inspect the tuple.
type Event struct {
	Hop      Hop     `json:"hop" yaml:"hop"`
	Progress float64 `json:"progress" yaml:"progress"`
	Reached  bool    `json:"isDestination" yaml:"isDestination"`
	// Err is set on the last event of a run that was ended by a transport,
	// permission or external-tool failure. The hop carries the failing TTL.
	Err error `json:"-" yaml:"-"`
}
