// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package probing

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"net"
	"slices"
	"time"

	"github.com/telekom/netpath/internal/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HopStats carries the aggregated round-trip statistics of one hop across
// the cycles of an MTR run.
type HopStats struct {
	// Number is the 1-based distance from the origin.
	Number int `json:"hop" yaml:"hop"`
	// Addr is the responder address, or [UnknownAddr] if the hop never
	// replied.
	Addr string `json:"address" yaml:"address"`
	// Name is the reverse-resolved hostname of the responder.
	Name string `json:"hostname" yaml:"hostname"`
	// Samples is the number of successful measurements.
	Samples int `json:"samples" yaml:"samples"`
	// LossPercent is the packet loss against the cycles attempted so far.
	LossPercent float64 `json:"lossPercent" yaml:"lossPercent"`
	// Min, Max and Avg aggregate the successful round-trip times.
	Min time.Duration `json:"-" yaml:"-"`
	Max time.Duration `json:"-" yaml:"-"`
	Avg time.Duration `json:"-" yaml:"-"`
	// StdDev is the sample standard deviation of the round-trip times.
	// Zero when fewer than two samples exist.
	StdDev time.Duration `json:"-" yaml:"-"`
}

func (s HopStats) MarshalJSON() ([]byte, error) {
	type alias HopStats
	return json.Marshal(&struct {
		Min    float64 `json:"minDelay"`
		Max    float64 `json:"maxDelay"`
		Avg    float64 `json:"avgDelay"`
		StdDev float64 `json:"stdDev"`
		alias
	}{
		Min:    millis(s.Min),
		Max:    millis(s.Max),
		Avg:    millis(s.Avg),
		StdDev: millis(s.StdDev),
		alias:  alias(s),
	})
}

func (s HopStats) String() string {
	return fmt.Sprintf("%-2d  %-45.45s  loss %5.1f%%  min %7.2f  avg %7.2f  max %7.2f  stddev %6.2f",
		s.Number, s.Name, s.LossPercent, millis(s.Min), millis(s.Avg), millis(s.Max), millis(s.StdDev))
}

// millis renders a duration as fractional milliseconds.
func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1e3
}

// CycleSummary is the state of an MTR run after one cycle.
type CycleSummary struct {
	// Target is the target as given by the caller.
	Target string `json:"target" yaml:"target"`
	// TargetAddr is the resolved address all cycles probe.
	TargetAddr string `json:"targetAddress" yaml:"targetAddress"`
	// IPVersion is the address family of the run.
	IPVersion IPVersion `json:"ipVersion" yaml:"ipVersion"`
	// Protocol is the probe protocol of the run.
	Protocol Protocol `json:"protocol" yaml:"protocol"`
	// CyclesComplete counts the cycles attempted so far.
	CyclesComplete int `json:"cyclesComplete" yaml:"cyclesComplete"`
	// TotalCycles is the configured cycle count.
	TotalCycles int `json:"totalCycles" yaml:"totalCycles"`
	// Hops holds the per-hop statistics, ordered by hop number.
	Hops []HopStats `json:"hops" yaml:"hops"`
}

// CycleEvent is one element of the lazy MTR sequence: the summary after a
// cycle and the run progress in [0,1]. The terminal event carries
// progress 1.0 and the final statistics.
type CycleEvent struct {
	Summary  CycleSummary `json:"summary" yaml:"summary"`
	Progress float64      `json:"progress" yaml:"progress"`
}

// Measure runs repeated discovery cycles against the target and returns
// the refreshed per-hop statistics after each cycle as a lazy sequence.
// It fails fast on invalid options and unresolvable targets. A failed
// cycle counts as a cycle with zero successful hops and does not end the
// run. After the final cycle a terminal summary with progress 1.0 is
// produced.
func (t *Tracer) Measure(ctx context.Context, target string, cycles int, opts Options) (iter.Seq[CycleEvent], error) {
	if cycles < 1 {
		return nil, ErrInvalidParameter{Param: "cycles", Reason: fmt.Sprintf("must be at least 1, got %d", cycles)}
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ip, version, err := resolveTarget(ctx, t.lookup, target, opts.PreferIPv6)
	if err != nil {
		return nil, err
	}

	return func(yield func(CycleEvent) bool) {
		log := logger.FromContext(ctx)
		tracer := trace.SpanFromContext(ctx).TracerProvider().Tracer("probing.Tracer")
		ctx, sp := tracer.Start(ctx, "Measure", trace.WithAttributes(
			attribute.String("probing.target", target),
			attribute.String("probing.target.addr", ip.String()),
			attribute.String("probing.protocol", opts.Protocol.String()),
			attribute.Int("probing.cycles", cycles),
		))
		defer sp.End()

		agg := newAggregator()
		for cycle := 1; cycle <= cycles; cycle++ {
			if ctx.Err() != nil {
				return
			}

			log.DebugContext(ctx, "Starting measurement cycle", "cycle", cycle, "totalCycles", cycles)
			if err := t.runCycle(ctx, ip, opts, agg); err != nil {
				// The cycle still counts towards the loss denominator.
				log.WarnContext(ctx, "Measurement cycle failed", "cycle", cycle, "error", err)
				sp.AddEvent("Cycle failed", trace.WithAttributes(
					attribute.Int("probing.cycle", cycle),
					attribute.String("probing.cycle.error", err.Error()),
				))
			}
			agg.endCycle()

			summary := CycleSummary{
				Target:         target,
				TargetAddr:     ip.String(),
				IPVersion:      version,
				Protocol:       opts.Protocol,
				CyclesComplete: cycle,
				TotalCycles:    cycles,
				Hops:           agg.snapshot(agg.attempted),
			}
			if !yield(CycleEvent{Summary: summary, Progress: progress(cycle, cycles, false)}) {
				return
			}
		}

		// Terminal summary, recomputed against the fixed cycle count.
		final := CycleSummary{
			Target:         target,
			TargetAddr:     ip.String(),
			IPVersion:      version,
			Protocol:       opts.Protocol,
			CyclesComplete: cycles,
			TotalCycles:    cycles,
			Hops:           agg.snapshot(cycles),
		}
		yield(CycleEvent{Summary: final, Progress: 1.0})
	}, nil
}

// runCycle performs one discovery run and feeds its hops to the
// aggregator.
func (t *Tracer) runCycle(ctx context.Context, ip net.IP, opts Options, agg *aggregator) error {
	seq, err := t.Discover(ctx, ip.String(), opts)
	if err != nil {
		return err
	}

	for ev := range seq {
		if ev.Err != nil {
			return ev.Err
		}
		agg.record(ev.Hop)
		if ev.Reached || ev.Hop.Loop {
			break
		}
	}
	return ctx.Err()
}

// aggregator accumulates per-hop samples across measurement cycles.
type aggregator struct {
	hops      map[int]*hopSamples
	attempted int
}

type hopSamples struct {
	addr    string
	name    string
	samples []time.Duration
}

func newAggregator() *aggregator {
	return &aggregator{hops: make(map[int]*hopSamples)}
}

// record adds one hop measurement of the current cycle. Timeout hops are
// tracked without a sample, which raises their loss percentage. When the
// responder changes between cycles, the last known address and hostname
// win.
func (a *aggregator) record(hop Hop) {
	hs, ok := a.hops[hop.Number]
	if !ok {
		hs = &hopSamples{addr: hop.Addr, name: hop.Name}
		a.hops[hop.Number] = hs
	}

	if hop.Timeout {
		return
	}
	hs.addr = hop.Addr
	hs.name = hop.Name
	hs.samples = append(hs.samples, hop.RTT)
}

// endCycle closes the current cycle for the loss denominator.
func (a *aggregator) endCycle() {
	a.attempted++
}

// snapshot recomputes all hop statistics against the given cycle
// denominator and returns them ordered by hop number.
func (a *aggregator) snapshot(cycles int) []HopStats {
	numbers := make([]int, 0, len(a.hops))
	for n := range a.hops {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)

	stats := make([]HopStats, 0, len(numbers))
	for _, n := range numbers {
		hs := a.hops[n]
		s := HopStats{
			Number:  n,
			Addr:    hs.addr,
			Name:    hs.name,
			Samples: len(hs.samples),
		}
		if cycles > 0 {
			s.LossPercent = float64(cycles-len(hs.samples)) / float64(cycles) * 100
		}
		if len(hs.samples) > 0 {
			s.Min, s.Max, s.Avg = minMaxAvg(hs.samples)
			s.StdDev = stddev(hs.samples, s.Avg)
		}
		stats = append(stats, s)
	}
	return stats
}

func minMaxAvg(samples []time.Duration) (minD, maxD, avg time.Duration) {
	minD, maxD = samples[0], samples[0]
	var sum time.Duration
	for _, s := range samples {
		if s < minD {
			minD = s
		}
		if s > maxD {
			maxD = s
		}
		sum += s
	}
	return minD, maxD, sum / time.Duration(len(samples))
}

// stddev computes the sample standard deviation. Zero when fewer than two
// samples exist.
func stddev(samples []time.Duration, avg time.Duration) time.Duration {
	if len(samples) < 2 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		d := float64(s - avg)
		sum += d * d
	}
	return time.Duration(math.Sqrt(sum / float64(len(samples)-1)))
}
