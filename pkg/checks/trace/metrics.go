// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/telekom/netpath/internal/probing"
	"github.com/telekom/netpath/pkg/checks"
)

// metrics defines the metric collectors of the trace check
type metrics struct {
	status   *prometheus.GaugeVec
	hops     *prometheus.GaugeVec
	duration *prometheus.GaugeVec
	count    *prometheus.CounterVec
}

// newMetrics initializes metric collectors of the trace check
func newMetrics() metrics {
	return metrics{
		status: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netpath_trace_reached",
				Help: "Specifies if the route discovery reached the target.",
			},
			[]string{"target"},
		),
		hops: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netpath_trace_hops",
				Help: "Number of hops discovered on the route to the target.",
			},
			[]string{"target"},
		),
		duration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netpath_trace_duration_seconds",
				Help: "Duration of route discoveries in seconds.",
			},
			[]string{"target"},
		),
		count: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netpath_trace_check_count",
				Help: "Total number of route discoveries performed on the target.",
			},
			[]string{"target"},
		),
	}
}

// List returns all metric collectors
func (m *metrics) List() []prometheus.Collector {
	return []prometheus.Collector{
		m.status,
		m.hops,
		m.duration,
		m.count,
	}
}

// Set sets the metrics of one route discovery
func (m *metrics) Set(target string, hops []probing.Hop, elapsed time.Duration, ok bool) {
	reached := 0.0
	if ok && len(hops) > 0 && hops[len(hops)-1].Reached {
		reached = 1.0
	}
	m.status.WithLabelValues(target).Set(reached)
	m.hops.WithLabelValues(target).Set(float64(len(hops)))
	m.duration.WithLabelValues(target).Set(elapsed.Seconds())
	m.count.WithLabelValues(target).Inc()
}

// Remove removes the metrics of one target
func (m *metrics) Remove(target string) error {
	if !m.status.DeleteLabelValues(target) {
		return checks.ErrMetricNotFound{Label: target}
	}

	if !m.hops.DeleteLabelValues(target) {
		return checks.ErrMetricNotFound{Label: target}
	}

	if !m.duration.DeleteLabelValues(target) {
		return checks.ErrMetricNotFound{Label: target}
	}

	if !m.count.DeleteLabelValues(target) {
		return checks.ErrMetricNotFound{Label: target}
	}

	return nil
}
