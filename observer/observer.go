// Package observer provides OpenTelemetry instrumentation for telegrambot.
//
// It wraps a Transport with a version that emits a span and metrics for every
// Bot API call, and implements telegrambot.PollMetrics for the poll loop and
// the webhook handler. Export goes to any OTLP-compatible backend configured
// with the standard OTEL_* env vars.
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/prilive-com/telegrambot/observer"

// Instruments holds all OTEL instruments used by the observer wrappers.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	// Bot API calls
	APIRequests metric.Int64Counter
	APIDuration metric.Float64Histogram
	APIPayload  metric.Int64Histogram

	// Update acquisition
	PollRequests     metric.Int64Counter
	PollDuration     metric.Float64Histogram
	UpdatesReceived  metric.Int64Counter
	UpdatesUndecoded metric.Int64Counter
}

// Init sets up OTEL trace and metric providers with OTLP HTTP exporters and
// installs them globally. Returns a shutdown function that must be called on
// application exit.
func Init(ctx context.Context, serviceName string) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
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

	inst, err := NewInstruments(tp, mp)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
		)
	}

	return inst, shutdown, nil
}

// NewInstruments creates the instruments from explicit providers. Pass
// otel.GetTracerProvider() and otel.GetMeterProvider() for the globals.
func NewInstruments(tp trace.TracerProvider, mp metric.MeterProvider) (*Instruments, error) {
	meter := mp.Meter(scopeName)

	apiRequests, err := meter.Int64Counter("telegram.api.requests",
		metric.WithDescription("Bot API call count"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	apiDuration, err := meter.Float64Histogram("telegram.api.duration",
		metric.WithDescription("Bot API call duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	apiPayload, err := meter.Int64Histogram("telegram.api.payload.size",
		metric.WithDescription("Encoded request body size"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	pollRequests, err := meter.Int64Counter("telegram.poll.requests",
		metric.WithDescription("getUpdates poll count"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	pollDuration, err := meter.Float64Histogram("telegram.poll.duration",
		metric.WithDescription("Successful getUpdates poll duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	updatesReceived, err := meter.Int64Counter("telegram.updates.received",
		metric.WithDescription("Updates dispatched to handlers"),
		metric.WithUnit("{update}"))
	if err != nil {
		return nil, err
	}

	updatesUndecoded, err := meter.Int64Counter("telegram.updates.undecodable",
		metric.WithDescription("Updates skipped because they could not be decoded"),
		metric.WithUnit("{update}"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:           tp.Tracer(scopeName),
		Meter:            meter,
		APIRequests:      apiRequests,
		APIDuration:      apiDuration,
		APIPayload:       apiPayload,
		PollRequests:     pollRequests,
		PollDuration:     pollDuration,
		UpdatesReceived:  updatesReceived,
		UpdatesUndecoded: updatesUndecoded,
	}, nil
}
