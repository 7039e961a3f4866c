// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// Exporter is the selected span exporter
type Exporter string

const (
	// GRPC exports the traces to an otlp collector over grpc
	GRPC Exporter = "grpc"
	// HTTP exports the traces to an otlp collector over http
	HTTP Exporter = "http"
	// STDOUT prints the traces to stdout
	STDOUT Exporter = "stdout"
	// NOOP discards the traces
	NOOP Exporter = "noop"
)

func (e Exporter) String() string {
	return string(e)
}

// Validate validates the exporter
func (e Exporter) Validate() error {
	switch e {
	case GRPC, HTTP, STDOUT, NOOP, "":
		return nil
	default:
		return fmt.Errorf("unsupported exporter type: %q", e)
	}
}

// IsExporting returns true if the exporter sends traces to a collector
func (e Exporter) IsExporting() bool {
	return e == GRPC || e == HTTP
}

// Create creates a new span exporter from the given configuration
func (e Exporter) Create(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	switch e {
	case GRPC:
		return newGRPCExporter(ctx, cfg)
	case HTTP:
		return newHTTPExporter(ctx, cfg)
	case STDOUT:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case NOOP, "":
		return noopExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %q", e)
	}
}

func newGRPCExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Url),
		otlptracegrpc.WithHeaders(headers(cfg)),
	}

	if cfg.TLS.Enabled {
		creds, err := credentials.NewClientTLSFromFile(cfg.TLS.CertPath, "")
		if err != nil {
			return nil, fmt.Errorf("failed to load tls certificate: %w", err)
		}
		opts = append(opts, otlptracegrpc.WithTLSCredentials(creds))
	} else {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	return otlptracegrpc.New(ctx, opts...)
}

func newHTTPExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Url),
		otlptracehttp.WithHeaders(headers(cfg)),
	}

	if !cfg.TLS.Enabled {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	return otlptracehttp.New(ctx, opts...)
}

func headers(cfg *Config) map[string]string {
	h := map[string]string{}
	if cfg.Token != "" {
		h["Authorization"] = fmt.Sprintf("Bearer %s", cfg.Token)
	}
	return h
}

var _ sdktrace.SpanExporter = (*noopExporter)(nil)

// noopExporter discards all spans
type noopExporter struct{}

func (noopExporter) ExportSpans(_ context.Context, _ []sdktrace.ReadOnlySpan) error {
	return nil
}

func (noopExporter) Shutdown(_ context.Context) error {
	return nil
}
