package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/CodeMonkeyCybersecurity/anew/internal/config"
	"github.com/CodeMonkeyCybersecurity/anew/internal/core"
	"github.com/CodeMonkeyCybersecurity/anew/internal/logger"
)

type telemetry struct {
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider

	linesRead      metric.Int64Counter
	linesNew       metric.Int64Counter
	linesDuplicate metric.Int64Counter
	runDuration    metric.Float64Histogram
}

// New returns a no-op implementation unless cfg.Enabled is set, in which case
// spans, metrics and log records are exported over OTLP/HTTP to cfg.Endpoint.
func New(ctx context.Context, cfg config.TelemetryConfig) (core.Telemetry, error) {
	if !cfg.Enabled {
		return &noopTelemetry{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(logger.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	client := otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
	)
	otel.SetMeterProvider(mp)

	logExporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(cfg.Endpoint),
		otlploghttp.WithInsecure(),
	)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)

	t := &telemetry{
		tracer:         tp.Tracer(cfg.ServiceName),
		tracerProvider: tp,
		meterProvider:  mp,
		loggerProvider: lp,
	}
	if err := t.initInstruments(mp.Meter(cfg.ServiceName)); err != nil {
		_ = t.Close()
		return nil, err
	}
	return t, nil
}

func (t *telemetry) initInstruments(meter metric.Meter) error {
	var err error

	t.linesRead, err = meter.Int64Counter("anew.lines.read",
		metric.WithDescription("Input lines read"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	t.linesNew, err = meter.Int64Counter("anew.lines.new",
		metric.WithDescription("Input lines seen for the first time"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	t.linesDuplicate, err = meter.Int64Counter("anew.lines.duplicate",
		metric.WithDescription("Input lines suppressed as already known"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	t.runDuration, err = meter.Float64Histogram("anew.run.duration",
		metric.WithDescription("Run duration in seconds"),
		metric.WithUnit("s"),
	)
	return err
}

func (t *telemetry) StartRun(ctx context.Context, runID string) (context.Context, func(err error)) {
	ctx, span := t.tracer.Start(ctx, "anew.run", trace.WithAttributes(
		attribute.String("run.id", runID),
	))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func (t *telemetry) RecordRun(ctx context.Context, counts core.LineCounts, duration time.Duration, success bool) {
	attrs := metric.WithAttributes(attribute.Bool("run.success", success))

	t.linesRead.Add(ctx, counts.Read, attrs)
	t.linesNew.Add(ctx, counts.New, attrs)
	t.linesDuplicate.Add(ctx, counts.Duplicate, attrs)
	t.runDuration.Record(ctx, duration.Seconds(), attrs)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.Int64("lines.seeded", counts.Seeded),
			attribute.Int64("lines.read", counts.Read),
			attribute.Int64("lines.new", counts.New),
			attribute.Int64("lines.duplicate", counts.Duplicate),
		)
	}
}

// LoggerProvider returns the provider that exports log records, for the
// logger's otelzap bridge.
func (t *telemetry) LoggerProvider() log.LoggerProvider {
	if t.loggerProvider == nil {
		return nil
	}
	return t.loggerProvider
}

// Close flushes and stops every provider, logs last so shutdown of the others
// can still be logged.
func (t *telemetry) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if t.tracerProvider != nil {
		errs = append(errs, t.tracerProvider.Shutdown(ctx))
	}
	if t.meterProvider != nil {
		errs = append(errs, t.meterProvider.Shutdown(ctx))
	}
	if t.loggerProvider != nil {
		errs = append(errs, t.loggerProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

type noopTelemetry struct{}

func (n *noopTelemetry) StartRun(ctx context.Context, runID string) (context.Context, func(error)) {
	return ctx, func(error) {}
}
func (n *noopTelemetry) RecordRun(context.Context, core.LineCounts, time.Duration, bool) {}
func (n *noopTelemetry) LoggerProvider() log.LoggerProvider                             { return nil }
func (n *noopTelemetry) Close() error                                                   { return nil }
