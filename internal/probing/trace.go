// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package probing

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net"
	"time"

	"github.com/telekom/netpath/internal/helper"
	"github.com/telekom/netpath/internal/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// prober issues one TTL-bound probe towards a fixed target and reports
// the responding hop.
type prober interface {
	// probe sends a single probe with the given TTL and waits up to wait
	// for the matching reply. An unanswered probe is reported as
	// [context.DeadlineExceeded]; any other error is a transport failure.
	probe(ctx context.Context, ttl int, wait time.Duration) (*probeResult, error)
	Close() error
}

// probeResult is the outcome of one probe send/await cycle. It never
// leaves the discovery engine.
type probeResult struct {
	from    net.Addr
	rtt     time.Duration
	reached bool
}

// Tracer discovers network paths and measures per-hop round-trip
// statistics. The zero value is not usable, use [New].
type Tracer struct {
	// lookup resolves host names. Defaults to [net.DefaultResolver].
	lookup lookupFunc
	// newProber creates the transport for a run.
	newProber func(target net.IP, version IPVersion, opts Options) (prober, error)
	// fallback runs the external path-discovery tool when raw sockets
	// are denied. Nil disables the fallback.
	fallback *toolTracer
}

// New creates a [Tracer] with the default transports and the external
// tool fallback.
func New() *Tracer {
	return &Tracer{
		newProber: newProber,
		fallback:  newToolTracer(),
	}
}

// newProber selects the transport for a run.
func newProber(target net.IP, version IPVersion, opts Options) (prober, error) {
	switch opts.Protocol {
	case ProtocolICMP:
		return newICMPProber(target, version, opts.PacketSize)
	case ProtocolUDP:
		return newUDPProber(target, version, opts.Port, opts.PacketSize), nil
	case ProtocolTCP:
		return newTCPProber(target, version, opts.Port), nil
	default:
		return nil, ErrInvalidParameter{Param: "protocol", Reason: fmt.Sprintf("unsupported protocol %q", string(opts.Protocol))}
	}
}

// Discover walks the path towards the target hop by hop and returns the
// hop records as a lazy sequence. It fails fast on invalid options and
// unresolvable targets, before any probing starts. Transport and
// permission failures during the walk end the sequence with a terminal
// event carrying the error.
//
// The sequence is finite and single-use. All sockets of a run are
// released when the sequence ends, on every exit path.
func (t *Tracer) Discover(ctx context.Context, target string, opts Options) (iter.Seq[Event], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ip, version, err := resolveTarget(ctx, t.lookup, target, opts.PreferIPv6)
	if err != nil {
		return nil, err
	}

	return func(yield func(Event) bool) {
		log := logger.FromContext(ctx)
		tracer := trace.SpanFromContext(ctx).TracerProvider().Tracer("probing.Tracer")
		ctx, sp := tracer.Start(ctx, "Discover", trace.WithAttributes(
			attribute.String("probing.target", target),
			attribute.String("probing.target.addr", ip.String()),
			attribute.String("probing.protocol", opts.Protocol.String()),
			attribute.Int("probing.options.max_hops", opts.MaxHops),
			attribute.Stringer("probing.options.timeout", opts.Timeout),
		))
		defer sp.End()

		p, err := t.newProber(ip, version, opts)
		if errors.Is(err, ErrElevatedPermissions) && t.fallback != nil && t.fallback.available() {
			log.InfoContext(ctx, "Raw sockets unavailable, falling back to external tool", "tool", t.fallback.tool)
			sp.AddEvent("Falling back to external tool")
			t.fallback.trace(ctx, ip, version, opts, yield)
			return
		}
		if err != nil {
			sp.RecordError(err)
			yield(terminalEvent(1, opts, err))
			return
		}
		defer func() { _ = p.Close() }()

		t.walk(ctx, p, ip, opts, yield)
	}, nil
}

// walk performs the sequential TTL walk from 1 to MaxHops.
func (t *Tracer) walk(ctx context.Context, p prober, target net.IP, opts Options, yield func(Event) bool) {
	log := logger.FromContext(ctx)
	visited := make(map[string]bool)

	for ttl := 1; ttl <= opts.MaxHops; ttl++ {
		hop, err := t.hop(ctx, p, target, ttl, opts)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.DebugContext(ctx, "Discovery canceled", "ttl", ttl)
				return
			}
			log.DebugContext(ctx, "Probe failed", "ttl", ttl)
			_ = wrapError(ctx, err, "probe failed")
			yield(terminalEvent(ttl, opts, err))
			return
		}

		if !hop.Timeout {
			if visited[hop.Addr] {
				hop.Loop = true
			} else {
				visited[hop.Addr] = true
			}
		}

		log.DebugContext(ctx, hop.String())
		if !yield(Event{Hop: hop, Progress: progress(ttl, opts.MaxHops, hop.Reached), Reached: hop.Reached}) {
			return
		}
		if hop.Reached || hop.Loop {
			return
		}
	}
}

// hop probes a single TTL with retries. Each retry waits a little longer
// than the previous attempt. A fatal transport error aborts the retries
// immediately; exhausted retries produce a timeout record.
func (t *Tracer) hop(ctx context.Context, p prober, target net.IP, ttl int, opts Options) (Hop, error) {
	var res *probeResult
	var fatal error

	retry := helper.Retry(func(ctx context.Context, attempt int) error {
		wait := helper.Deadline(opts.Timeout, opts.Retry.Delay, attempt)
		r, err := p.probe(ctx, ttl, wait)
		switch {
		case err == nil:
			res = r
			return nil
		case isTimeout(err):
			return err
		default:
			// Not worth retrying, stop here and surface the error.
			fatal = err
			return nil
		}
	}, opts.Retry)

	err := retry(ctx)
	if fatal != nil {
		return Hop{}, fatal
	}
	if cerr := ctx.Err(); cerr != nil {
		return Hop{}, cerr
	}
	if err != nil {
		return Hop{
			Number:  ttl,
			Addr:    UnknownAddr,
			Name:    UnknownAddr,
			Timeout: true,
		}, nil
	}

	hop := Hop{
		Number:  ttl,
		Addr:    addrString(res.from),
		RTT:     res.rtt,
		Reached: res.reached || sameIP(res.from, target),
	}
	hop.Name = hop.Addr
	if opts.ResolveHostnames {
		if name := resolveName(res.from); name != "" {
			hop.Name = name
		}
	}
	return hop, nil
}

// progress maps a TTL to the run progress, clamped to 1.0 when the
// destination is reached.
func progress(ttl, maxHops int, reached bool) float64 {
	if reached {
		return 1.0
	}
	p := float64(ttl) / float64(maxHops)
	if p > 1.0 {
		return 1.0
	}
	return p
}

// terminalEvent builds the final event of a run that was ended by a
// transport or permission failure.
func terminalEvent(ttl int, opts Options, err error) Event {
	return Event{
		Hop: Hop{
			Number:  ttl,
			Addr:    UnknownAddr,
			Name:    UnknownAddr,
			Timeout: true,
		},
		Progress: progress(ttl, opts.MaxHops, false),
		Err:      err,
	}
}
