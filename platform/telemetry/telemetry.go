// Package telemetry builds the OpenTelemetry tracer and meter providers.
// Exporters are attached by the caller; without one spans and metrics stay in process.
package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Options configures the providers.
type Options struct {
	ServiceName    string
	Environment    string
	SpanProcessors []sdktrace.SpanProcessor
	MetricReaders  []sdkmetric.Reader
	// SetGlobal installs the providers as the otel globals.
	SetGlobal bool
}

// Providers bundles the tracer and meter used by the update pipeline.
type Providers struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// New creates the tracer and meter providers.
func New(opts Options) *Providers {
	res := resource.NewSchemaless(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("deployment.environment", opts.Environment),
	)

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	for _, sp := range opts.SpanProcessors {
		traceOpts = append(traceOpts, sdktrace.WithSpanProcessor(sp))
	}

	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range opts.MetricReaders {
		metricOpts = append(metricOpts, sdkmetric.WithReader(r))
	}

	p := &Providers{
		tp: sdktrace.NewTracerProvider(traceOpts...),
		mp: sdkmetric.NewMeterProvider(metricOpts...),
	}
	if opts.SetGlobal {
		otel.SetTracerProvider(p.tp)
		otel.SetMeterProvider(p.mp)
	}
	return p
}

// Tracer returns a named tracer.
func (p *Providers) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Meter returns a named meter.
func (p *Providers) Meter(name string) metric.Meter {
	return p.mp.Meter(name)
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(p.tp.Shutdown(ctx), p.mp.Shutdown(ctx))
}
