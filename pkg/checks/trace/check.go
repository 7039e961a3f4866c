// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/telekom/netpath/internal/logger"
	"github.com/telekom/netpath/internal/probing"
	"github.com/telekom/netpath/pkg/checks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	otrace "go.opentelemetry.io/otel/trace"
)

var _ checks.Check = (*Trace)(nil)

const CheckName = "trace"

// discoverer runs a route discovery against a single target.
type discoverer interface {
	Discover(ctx context.Context, target string, opts probing.Options) (iter.Seq[probing.Event], error)
}

func NewCheck() checks.Check {
	c := &Trace{
		CheckBase: checks.CheckBase{
			Mu:       sync.Mutex{},
			DoneChan: make(chan struct{}, 1),
		},
		config:  Config{},
		engine:  probing.New(),
		metrics: newMetrics(),
	}
	c.tracer = otel.Tracer(c.Name())
	return c
}

type Trace struct {
	checks.CheckBase
	config  Config
	metrics metrics
	engine  discoverer
	tracer  otrace.Tracer
}

type result map[string][]probing.Hop

// Run runs the check in a loop sending results to the provided channel
func (tr *Trace) Run(ctx context.Context, cResult chan checks.ResultDTO) error {
	ctx, cancel := logger.NewContextWithLogger(ctx)
	defer cancel()
	log := logger.FromContext(ctx)

	log.InfoContext(ctx, "Starting trace check", "interval", tr.config.Interval.String())
	for {
		select {
		case <-ctx.Done():
			log.ErrorContext(ctx, "Context canceled", "error", ctx.Err())
			return ctx.Err()
		case <-tr.DoneChan:
			return nil
		case <-time.After(tr.config.Interval):
			res := tr.check(ctx)
			cResult <- checks.ResultDTO{
				Name: tr.Name(),
				Result: &checks.Result{
					Data:      res,
					Timestamp: time.Now(),
				},
			}
			log.DebugContext(ctx, "Successfully finished trace check run")
		}
	}
}

// GetConfig returns the current configuration of the check
func (tr *Trace) GetConfig() checks.Runtime {
	tr.Mu.Lock()
	defer tr.Mu.Unlock()
	return &tr.config
}

func (tr *Trace) check(ctx context.Context) result {
	log := logger.FromContext(ctx)
	ctx, span := tr.tracer.Start(ctx, "trace.check")
	defer span.End()

	tr.Mu.Lock()
	defer tr.Mu.Unlock()

	if len(tr.config.Targets) == 0 {
		log.WarnContext(ctx, "No targets configured for trace check")
		return result{}
	}

	res := result{}
	for _, target := range tr.config.Targets {
		start := time.Now()
		hops, err := tr.discover(ctx, target)
		elapsed := time.Since(start)
		if err != nil {
			log.ErrorContext(ctx, "Failed to discover route", "target", target, "error", err)
			span.SetStatus(codes.Error, "Failed to discover route")
			span.RecordError(err)
		}

		// A failed discovery still reports the target with the hops
		// collected so far, so the result shows how far the path got.
		res[target] = hops
		tr.metrics.Set(target, hops, elapsed, err == nil)
	}

	return res
}

// discover runs a single route discovery against the target and collects
// the hops it produced. The hops gathered before a transport failure are
// returned alongside the error.
func (tr *Trace) discover(ctx context.Context, target string) ([]probing.Hop, error) {
	events, err := tr.engine.Discover(ctx, target, tr.config.Options)
	if err != nil {
		return []probing.Hop{}, err
	}

	hops := []probing.Hop{}
	for ev := range events {
		if ev.Err != nil {
			return hops, ev.Err
		}
		hops = append(hops, ev.Hop)
	}
	return hops, nil
}

// Shutdown is called once when the check is unregistered or netpath shuts down
func (tr *Trace) Shutdown() {
	tr.DoneChan <- struct{}{}
	close(tr.DoneChan)
}

// UpdateConfig is called once when the check is registered
// This is also called while the check is running, if the config is updated
// This should return an error if the config is invalid
func (tr *Trace) UpdateConfig(cfg checks.Runtime) error {
	if c, ok := cfg.(*Config); ok {
		tr.Mu.Lock()
		defer tr.Mu.Unlock()

		for _, target := range tr.config.Targets {
			if !slices.Contains(c.Targets, target) {
				err := tr.metrics.Remove(target)
				if err != nil {
					return err
				}
			}
		}

		tr.config = *c
		return nil
	}

	return checks.ErrConfigMismatch{
		Expected: CheckName,
		Current:  cfg.For(),
	}
}

// Schema returns an openapi3.SchemaRef of the result type returned by the check
func (tr *Trace) Schema() (*openapi3.SchemaRef, error) {
	return checks.OpenapiFromPerfData(result{})
}

// GetMetricCollectors allows the check to provide prometheus metric collectors
func (tr *Trace) GetMetricCollectors() []prometheus.Collector {
	return tr.metrics.List()
}

// Name returns the name of the check
func (tr *Trace) Name() string {
	return CheckName
}

// RemoveLabelledMetrics removes the metrics which have the passed
// target as a label
func (tr *Trace) RemoveLabelledMetrics(target string) error {
	return tr.metrics.Remove(target)
}
