// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package mtr

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

var _ checks.Check = (*Mtr)(nil)

const CheckName = "mtr"

// measurer runs a multi-cycle measurement against a single target.
type measurer interface {
	Measure(ctx context.Context, target string, cycles int, opts probing.Options) (iter.Seq[probing.CycleEvent], error)
}

func NewCheck() checks.Check {
	c := &Mtr{
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

type Mtr struct {
	checks.CheckBase
	config  Config
	metrics metrics
	engine  measurer
	tracer  otrace.Tracer
}

type result map[string][]probing.HopStats

// Run runs the check in a loop sending results to the provided channel
func (m *Mtr) Run(ctx context.Context, cResult chan checks.ResultDTO) error {
	ctx, cancel := logger.NewContextWithLogger(ctx)
	defer cancel()
	log := logger.FromContext(ctx)

	log.InfoContext(ctx, "Starting mtr check", "interval", m.config.Interval.String())
	for {
		select {
		case <-ctx.Done():
			log.ErrorContext(ctx, "Context canceled", "error", ctx.Err())
			return ctx.Err()
		case <-m.DoneChan:
			return nil
		case <-time.After(m.config.Interval):
			res := m.check(ctx)
			cResult <- checks.ResultDTO{
				Name: m.Name(),
				Result: &checks.Result{
					Data:      res,
					Timestamp: time.Now(),
				},
			}
			log.DebugContext(ctx, "Successfully finished mtr check run")
		}
	}
}

// GetConfig returns the current configuration of the check
func (m *Mtr) GetConfig() checks.Runtime {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return &m.config
}

func (m *Mtr) check(ctx context.Context) result {
	log := logger.FromContext(ctx)
	ctx, span := m.tracer.Start(ctx, "mtr.check")
	defer span.End()

	m.Mu.Lock()
	defer m.Mu.Unlock()

	if len(m.config.Targets) == 0 {
		log.WarnContext(ctx, "No targets configured for mtr check")
		return result{}
	}

	res := result{}
	for _, target := range m.config.Targets {
		stats, err := m.measure(ctx, target)
		if err != nil {
			log.ErrorContext(ctx, "Failed to measure route", "target", target, "error", err)
			span.SetStatus(codes.Error, "Failed to measure route")
			span.RecordError(err)
		}

		res[target] = stats
		m.metrics.Set(target, stats)
	}

	return res
}

// measure runs a full measurement against the target and returns the
// per-hop statistics of its final summary.
func (m *Mtr) measure(ctx context.Context, target string) ([]probing.HopStats, error) {
	events, err := m.engine.Measure(ctx, target, m.cycles(), m.config.Options)
	if err != nil {
		return []probing.HopStats{}, err
	}

	stats := []probing.HopStats{}
	for ev := range events {
		stats = ev.Summary.Hops
	}
	return stats, nil
}

func (m *Mtr) cycles() int {
	if m.config.Cycles < 1 {
		return DefaultCycles
	}
	return m.config.Cycles
}

// Shutdown is called once when the check is unregistered or netpath shuts down
func (m *Mtr) Shutdown() {
	m.DoneChan <- struct{}{}
	close(m.DoneChan)
}

// UpdateConfig is called once when the check is registered
// This is also called while the check is running, if the config is updated
// This should return an error if the config is invalid
func (m *Mtr) UpdateConfig(cfg checks.Runtime) error {
	if c, ok := cfg.(*Config); ok {
		m.Mu.Lock()
		defer m.Mu.Unlock()

		for _, target := range m.config.Targets {
			if !slices.Contains(c.Targets, target) {
				err := m.metrics.Remove(target)
				if err != nil {
					return err
				}
			}
		}

		m.config = *c
		return nil
	}

	return checks.ErrConfigMismatch{
		Expected: CheckName,
		Current:  cfg.For(),
	}
}

// Schema returns an openapi3.SchemaRef of the result type returned by the check
func (m *Mtr) Schema() (*openapi3.SchemaRef, error) {
	return checks.OpenapiFromPerfData(result{})
}

// GetMetricCollectors allows the check to provide prometheus metric collectors
func (m *Mtr) GetMetricCollectors() []prometheus.Collector {
	return m.metrics.List()
}

// Name returns the name of the check
func (m *Mtr) Name() string {
	return CheckName
}

// RemoveLabelledMetrics removes the metrics which have the passed
// target as a label
func (m *Mtr) RemoveLabelledMetrics(target string) error {
	return m.metrics.Remove(target)
}
