// Package probing discovers the sequence of routers between this host and a
// target address and, in MTR mode, aggregates repeated discovery cycles into
// live per-hop statistics.
//
// It exposes a [Tracer] whose [Tracer.Discover] walks the path one TTL at a
// time, yielding one [Hop] per router together with a progress value, and
// whose [Tracer.Measure] drives repeated discovery cycles and yields a
// [CycleSummary] with loss percentage and min/avg/max/stddev latency per hop.
//
// Key features:
//   - ICMPv4/ICMPv6 echo probing over raw sockets via x/net, with per-probe
//     TTL / hop-limit control
//   - UDP probing without raw-socket privileges using IP_RECVERR and the
//     kernel error queue (x/sys/unix)
//   - TCP probing with TTL-bound dials and a raw ICMP listener for
//     intermediate hops
//   - Fallback to the platform path-discovery utility (tracert/traceroute)
//     when raw sockets are unavailable, parsed into the same hop contract
//   - Routing-loop detection, bounded per-probe deadlines with linear
//     retry growth, and cooperative cancellation between yields
//   - Built-in OpenTelemetry spans and events for tracing runs and errors
//
// Typical usage:
//
//	tracer := probing.New()
//	opts := probing.DefaultOptions()
//	seq, err := tracer.Discover(ctx, "example.com", opts)
//	// iterate seq; each event carries a Hop, a progress value in [0,1]
//	// and, on the final record only, a destination flag
//
// All sequences are lazy, finite and non-restartable: each element requires
// the previous one's I/O to have completed, and the context is checked at
// every yield point so a cancellation is observed within one probe deadline.
package probing
