// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package mtr

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/telekom/netpath/internal/probing"
	"github.com/telekom/netpath/pkg/checks"
)

// metrics defines the metric collectors of the MTR check
type metrics struct {
	loss   *prometheus.GaugeVec
	avg    *prometheus.GaugeVec
	stddev *prometheus.GaugeVec
	count  *prometheus.CounterVec
}

// newMetrics initializes metric collectors of the MTR check
func newMetrics() metrics {
	return metrics{
		loss: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netpath_mtr_loss_percent",
				Help: "Packet loss per hop on the route to the target in percent.",
			},
			[]string{"target", "hop"},
		),
		avg: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netpath_mtr_rtt_avg_seconds",
				Help: "Average round trip time per hop in seconds.",
			},
			[]string{"target", "hop"},
		),
		stddev: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netpath_mtr_rtt_stddev_seconds",
				Help: "Round trip time standard deviation per hop in seconds.",
			},
			[]string{"target", "hop"},
		),
		count: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netpath_mtr_check_count",
				Help: "Total number of MTR measurements performed on the target.",
			},
			[]string{"target"},
		),
	}
}

// List returns all metric collectors
func (m *metrics) List() []prometheus.Collector {
	return []prometheus.Collector{
		m.loss,
		m.avg,
		m.stddev,
		m.count,
	}
}

// Set sets the metrics of one measurement
func (m *metrics) Set(target string, stats []probing.HopStats) {
	for _, s := range stats {
		hop := strconv.Itoa(s.Number)
		m.loss.WithLabelValues(target, hop).Set(s.LossPercent)
		m.avg.WithLabelValues(target, hop).Set(s.Avg.Seconds())
		m.stddev.WithLabelValues(target, hop).Set(s.StdDev.Seconds())
	}
	m.count.WithLabelValues(target).Inc()
}

// Remove removes the metrics of one target
func (m *metrics) Remove(target string) error {
	labels := prometheus.Labels{"target": target}

	removed := m.loss.DeletePartialMatch(labels)
	removed += m.avg.DeletePartialMatch(labels)
	removed += m.stddev.DeletePartialMatch(labels)
	if !m.count.DeleteLabelValues(target) && removed == 0 {
		return checks.ErrMetricNotFound{Label: target}
	}

	return nil
}
