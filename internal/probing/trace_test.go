// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package probing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/netpath/internal/helper"
	"github.com/telekom/netpath/internal/logger"
)

// fakeProber scripts probe responses per TTL.
type fakeProber struct {
	probeFunc func(ttl int, wait time.Duration) (*probeResult, error)
	calls     []time.Duration
	closed    bool
}

func (f *fakeProber) probe(_ context.Context, ttl int, wait time.Duration) (*probeResult, error) {
	f.calls = append(f.calls, wait)
	return f.probeFunc(ttl, wait)
}

func (f *fakeProber) Close() error {
	f.closed = true
	return nil
}

func testTracer(p prober) *Tracer {
	return &Tracer{
		newProber: func(net.IP, IPVersion, Options) (prober, error) {
			return p, nil
		},
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.MaxHops = 5
	opts.Timeout = 10 * time.Millisecond
	opts.Retry = helper.RetryConfig{Count: 3, Delay: 5 * time.Millisecond}
	opts.ResolveHostnames = false
	return opts
}

func routerResult(addr string) (*probeResult, error) {
	return &probeResult{from: &net.IPAddr{IP: net.ParseIP(addr)}, rtt: time.Millisecond}, nil
}

func collect(t *testing.T, tr *Tracer, target string, opts Options) []Event {
	t.Helper()
	seq, err := tr.Discover(context.Background(), target, opts)
	require.NoError(t, err)

	var events []Event
	for ev := range seq {
		events = append(events, ev)
	}
	return events
}

func TestTracer_Discover_ReachesDestination(t *testing.T) {
	target := "93.184.216.34"
	routers := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", target}
	p := &fakeProber{probeFunc: func(ttl int, _ time.Duration) (*probeResult, error) {
		return routerResult(routers[ttl-1])
	}}

	events := collect(t, testTracer(p), target, testOptions())

	require.Len(t, events, 4)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Hop.Number)
		assert.NoError(t, ev.Err)
	}
	assert.False(t, events[2].Reached)
	assert.True(t, events[3].Reached)
	assert.True(t, events[3].Hop.Reached)
	assert.Equal(t, target, events[3].Hop.Addr)
	assert.InDelta(t, 1.0, events[3].Progress, 1e-9)
	assert.True(t, p.closed, "prober must be closed when the sequence ends")
}

func TestTracer_Discover_TimeoutHopContinues(t *testing.T) {
	p := &fakeProber{probeFunc: func(ttl int, _ time.Duration) (*probeResult, error) {
		if ttl == 2 {
			return nil, context.DeadlineExceeded
		}
		return routerResult("10.0.0.1")
	}}

	opts := testOptions()
	events := collect(t, testTracer(p), "192.0.2.50", opts)

	require.GreaterOrEqual(t, len(events), 2)
	hop := events[1].Hop
	assert.Equal(t, 2, hop.Number)
	assert.True(t, hop.Timeout)
	assert.Equal(t, UnknownAddr, hop.Addr)
	assert.Equal(t, "Timeout", hop.Delay())
	// Discovery continues past the quiet hop.
	assert.Equal(t, 3, events[2].Hop.Number)
}

func TestTracer_Discover_TimeoutRetriesGrowDeadline(t *testing.T) {
	p := &fakeProber{probeFunc: func(int, time.Duration) (*probeResult, error) {
		return nil, context.DeadlineExceeded
	}}

	opts := testOptions()
	opts.MaxHops = 1
	events := collect(t, testTracer(p), "192.0.2.50", opts)

	require.Len(t, events, 1)
	assert.True(t, events[0].Hop.Timeout)
	// Every retry waits a little longer than the previous attempt.
	require.Len(t, p.calls, opts.Retry.Count)
	assert.Equal(t, opts.Timeout, p.calls[0])
	assert.Equal(t, opts.Timeout+opts.Retry.Delay, p.calls[1])
	assert.Equal(t, opts.Timeout+2*opts.Retry.Delay, p.calls[2])
}

func TestTracer_Discover_LoopTerminates(t *testing.T) {
	routers := []string{"10.0.0.1", "10.0.0.2", "10.0.0.1", "10.0.0.4"}
	p := &fakeProber{probeFunc: func(ttl int, _ time.Duration) (*probeResult, error) {
		return routerResult(routers[ttl-1])
	}}

	events := collect(t, testTracer(p), "192.0.2.50", testOptions())

	require.Len(t, events, 3)
	last := events[2].Hop
	assert.True(t, last.Loop)
	assert.Equal(t, events[0].Hop.Addr, last.Addr)
	assert.True(t, p.closed)
}

func TestTracer_Discover_TransportFailureIsTerminal(t *testing.T) {
	sockErr := errors.New("sendto: network is down")
	p := &fakeProber{probeFunc: func(ttl int, _ time.Duration) (*probeResult, error) {
		if ttl == 3 {
			return nil, sockErr
		}
		return routerResult(map[int]string{1: "10.0.0.1", 2: "10.0.0.2"}[ttl])
	}}

	events := collect(t, testTracer(p), "192.0.2.50", testOptions())

	require.Len(t, events, 3)
	assert.NoError(t, events[0].Err)
	assert.NoError(t, events[1].Err)
	require.Error(t, events[2].Err)
	assert.ErrorIs(t, events[2].Err, sockErr)
	assert.Equal(t, 3, events[2].Hop.Number)
	assert.True(t, p.closed)
}

func TestTracer_Discover_TransportFailureLogsCleanly(t *testing.T) {
	var buf bytes.Buffer
	ctx := logger.IntoContext(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	p := &fakeProber{probeFunc: func(int, time.Duration) (*probeResult, error) {
		return nil, errors.New("sendto: network is down")
	}}
	seq, err := testTracer(p).Discover(ctx, "192.0.2.50", testOptions())
	require.NoError(t, err)
	for range seq {
	}

	out := buf.String()
	assert.Contains(t, out, "Probe Failed")
	assert.NotContains(t, out, "%!", "log output must not carry formatting residue")
}

func TestTracer_Discover_FailsFast(t *testing.T) {
	tr := testTracer(&fakeProber{})

	t.Run("invalid protocol", func(t *testing.T) {
		opts := testOptions()
		opts.Protocol = "carrier-pigeon"
		_, err := tr.Discover(context.Background(), "192.0.2.50", opts)
		assert.ErrorIs(t, err, ErrInvalidParameter{})
	})

	t.Run("invalid max hops", func(t *testing.T) {
		opts := testOptions()
		opts.MaxHops = 0
		_, err := tr.Discover(context.Background(), "192.0.2.50", opts)
		assert.ErrorIs(t, err, ErrInvalidParameter{})
	})

	t.Run("non-positive timeout", func(t *testing.T) {
		opts := testOptions()
		opts.Timeout = 0
		_, err := tr.Discover(context.Background(), "192.0.2.50", opts)
		assert.ErrorIs(t, err, ErrInvalidParameter{})
	})

	t.Run("unresolvable target", func(t *testing.T) {
		tr := testTracer(&fakeProber{})
		tr.lookup = func(context.Context, string) ([]net.IPAddr, error) {
			return nil, errors.New("no such host")
		}
		_, err := tr.Discover(context.Background(), "missing.example.com", testOptions())
		assert.ErrorIs(t, err, ErrResolveTarget{})
	})
}

func TestTracer_Discover_PermissionDeniedWithoutFallback(t *testing.T) {
	tr := &Tracer{
		newProber: func(net.IP, IPVersion, Options) (prober, error) {
			return nil, ErrElevatedPermissions
		},
	}

	events := collect(t, tr, "192.0.2.50", testOptions())

	require.Len(t, events, 1)
	assert.ErrorIs(t, events[0].Err, ErrElevatedPermissions)
}

func TestTracer_Discover_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &fakeProber{probeFunc: func(ttl int, _ time.Duration) (*probeResult, error) {
		if ttl == 2 {
			cancel()
			return nil, context.DeadlineExceeded
		}
		return routerResult("10.0.0.1")
	}}

	seq, err := testTracer(p).Discover(ctx, "192.0.2.50", testOptions())
	require.NoError(t, err)

	var events []Event
	for ev := range seq {
		events = append(events, ev)
	}

	// The canceled run ends without a terminal error event.
	require.Len(t, events, 1)
	assert.NoError(t, events[0].Err)
	assert.True(t, p.closed)
}

func TestTracer_Discover_HopNumbersContiguous(t *testing.T) {
	p := &fakeProber{probeFunc: func(ttl int, _ time.Duration) (*probeResult, error) {
		if ttl%2 == 0 {
			return nil, context.DeadlineExceeded
		}
		return routerResult(net.IPv4(10, 0, 0, byte(ttl)).String())
	}}

	opts := testOptions()
	events := collect(t, testTracer(p), "192.0.2.50", opts)

	require.Len(t, events, opts.MaxHops)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Hop.Number)
	}
}

func TestProgress(t *testing.T) {
	assert.InDelta(t, 0.2, progress(1, 5, false), 1e-9)
	assert.InDelta(t, 1.0, progress(5, 5, false), 1e-9)
	assert.InDelta(t, 1.0, progress(2, 5, true), 1e-9)
	assert.InDelta(t, 1.0, progress(7, 5, false), 1e-9)
}
