// Package telemetry wires OpenTelemetry for the reserve manager. Metrics
// are the primary signal: a Prometheus reader backs the /metrics endpoint
// and the btcfloat_* instruments in metrics.go. Traces and logs go to
// stdout exporters, which is all a library-shaped subsystem should assume
// about its host's pipeline.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	tracetype "go.opentelemetry.io/otel/trace"
)

// Telemetry owns the provider stack. Shutdown flushes providers in reverse
// initialization order.
type Telemetry struct {
	shutdowns []func(context.Context) error
}

// Setup initializes tracing, metrics, and logging and registers the global
// providers. The reserve gauges and counters in metrics.go are bound to the
// meter here, so a successful Setup means every btcfloat_* instrument is
// live.
func Setup(serviceName string) (*Telemetry, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	t := &Telemetry{}
	if err := t.initTraces(res); err != nil {
		return nil, err
	}
	if err := t.initMetrics(res, serviceName); err != nil {
		return nil, err
	}
	if err := t.initLogs(res); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Telemetry) initTraces(res *resource.Resource) error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	t.shutdowns = append(t.shutdowns, tp.Shutdown)
	return nil
}

func (t *Telemetry) initMetrics(res *resource.Resource, serviceName string) error {
	reader, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("failed to create prometheus reader: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	if err := GetGlobalMetrics().InitMetrics(mp.Meter(serviceName)); err != nil {
		return fmt.Errorf("failed to init reserve instruments: %w", err)
	}

	t.shutdowns = append(t.shutdowns, mp.Shutdown)
	return nil
}

func (t *Telemetry) initLogs(res *resource.Resource) error {
	exporter, err := stdoutlog.New(stdoutlog.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)
	t.shutdowns = append(t.shutdowns, lp.Shutdown)
	return nil
}

// Shutdown flushes and stops the providers, newest first.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(t.shutdowns) - 1; i >= 0; i-- {
		if err := t.shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetMeter returns a meter for the given name
func GetMeter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// GetTracer returns a tracer for the given name
func GetTracer(name string) tracetype.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}
