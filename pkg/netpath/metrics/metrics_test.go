// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestManager_GetRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := &manager{registry: registry}
	assert.Same(t, registry, m.GetRegistry())
}

func TestNew_RegistersCollectors(t *testing.T) {
	m := New(Config{})
	testGauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "TEST_GAUGE"})
	m.GetRegistry().MustRegister(testGauge)
}

func TestManager_InitTracing(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "stdout exporter",
			config: Config{Exporter: STDOUT},
		},
		{
			name:   "otlp http exporter",
			config: Config{Exporter: HTTP, Url: "localhost:4318"},
		},
		{
			name:   "otlp grpc exporter with token",
			config: Config{Exporter: GRPC, Url: "localhost:4317", Token: "my-super-secret-token"},
		},
		{
			name:   "noop exporter",
			config: Config{Exporter: NOOP},
		},
		{
			name:    "unsupported exporter",
			config:  Config{Exporter: "unsupported"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.config)
			err := m.InitTracing(t.Context())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
			assert.True(t, ok, "global tracer provider should be set")

			require.NoError(t, m.Shutdown(t.Context()))
		})
	}
}

func TestExporter_Validate(t *testing.T) {
	for _, e := range []Exporter{GRPC, HTTP, STDOUT, NOOP, ""} {
		assert.NoError(t, e.Validate())
	}
	assert.Error(t, Exporter("carrier-pigeon").Validate())
}

func TestExporter_IsExporting(t *testing.T) {
	assert.True(t, GRPC.IsExporting())
	assert.True(t, HTTP.IsExporting())
	assert.False(t, STDOUT.IsExporting())
	assert.False(t, NOOP.IsExporting())
	assert.False(t, Exporter("").IsExporting())
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{Exporter: GRPC, Url: "localhost:4317"}
	assert.NoError(t, valid.Validate(t.Context()))

	missingURL := Config{Exporter: HTTP}
	assert.Error(t, missingURL.Validate(t.Context()))

	noop := Config{Exporter: NOOP}
	assert.NoError(t, noop.Validate(t.Context()))
}
