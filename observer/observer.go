// Package observer provides OTEL-based observability for warden sandboxes.
//
// It wraps a warden.Sandbox with an instrumented version that emits traces,
// metrics, and logs via OpenTelemetry. Users export to any OTEL-compatible
// backend by setting standard OTEL env vars.
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	wardenlog "go.opentelemetry.io/otel/log"
)

const scopeName = "github.com/nevindra/warden/observer"

// Instruments holds all OTEL instruments used by the observer wrappers.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger wardenlog.Logger

	// Counters
	SandboxStarts metric.Int64Counter
	SandboxStops  metric.Int64Counter
	ExecCommands  metric.Int64Counter

	// Histograms
	StartDuration metric.Float64Histogram
	ExecDuration  metric.Float64Histogram
}

// Init sets up OTEL trace, metric, and log providers with OTLP HTTP exporters.
// Configuration comes from standard OTEL env vars (OTEL_EXPORTER_OTLP_ENDPOINT, etc.).
// Returns a shutdown function that must be called on application exit.
func Init(ctx context.Context) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("warden")),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	// Trace provider
	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// Metric provider
	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	// Log provider
	logExp, err := otlploghttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)

	inst, err := newInstruments()
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			lp.Shutdown(ctx),
		)
	}

	return inst, shutdown, nil
}

func newInstruments() (*Instruments, error) {
	tracer := otel.Tracer(scopeName)
	meter := otel.Meter(scopeName)
	logger := global.GetLoggerProvider().Logger(scopeName)

	sandboxStarts, err := meter.Int64Counter("sandbox.starts",
		metric.WithDescription("Sandbox start count"),
		metric.WithUnit("{start}"))
	if err != nil {
		return nil, err
	}

	sandboxStops, err := meter.Int64Counter("sandbox.stops",
		metric.WithDescription("Sandbox stop count"),
		metric.WithUnit("{stop}"))
	if err != nil {
		return nil, err
	}

	execCommands, err := meter.Int64Counter("sandbox.execs",
		metric.WithDescription("Sandbox command execution count"),
		metric.WithUnit("{execution}"))
	if err != nil {
		return nil, err
	}

	startDuration, err := meter.Float64Histogram("sandbox.start.duration",
		metric.WithDescription("Sandbox start duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	execDuration, err := meter.Float64Histogram("sandbox.exec.duration",
		metric.WithDescription("Sandbox command execution duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:        tracer,
		Meter:         meter,
		Logger:        logger,
		SandboxStarts: sandboxStarts,
		SandboxStops:  sandboxStops,
		ExecCommands:  execCommands,
		StartDuration: startDuration,
		ExecDuration:  execDuration,
	}, nil
}
