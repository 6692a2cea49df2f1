// Package telemetry sets up optional OTLP tracing of model calls.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

type Config struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
	TraceHTTP    bool
}

// Provider owns the tracer provider for the life of the process.
type Provider struct {
	cfg      Config
	tracer   trace.TracerProvider
	shutdown func(context.Context) error
}

// Setup returns a no-op provider when tracing is disabled.
func Setup(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Debug("OpenTelemetry tracing disabled")
		return &Provider{
			cfg:      cfg,
			tracer:   noop.NewTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))),
	)
	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry tracing enabled",
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.Bool("trace_http", cfg.TraceHTTP))
	return &Provider{cfg: cfg, tracer: tp, shutdown: tp.Shutdown}, nil
}

func (p *Provider) TracerProvider() trace.TracerProvider { return p.tracer }

// HTTPClient returns a client whose requests are traced, or nil when raw
// HTTP tracing is off so callers keep their default client.
func (p *Provider) HTTPClient() *http.Client {
	if !p.cfg.Enabled || !p.cfg.TraceHTTP {
		return nil
	}
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(p.tracer)),
	}
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}
