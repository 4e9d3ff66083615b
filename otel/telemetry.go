package otel

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	traceNoop "go.opentelemetry.io/otel/trace/noop"
)

const scopeName = "github.com/hugolhafner/go-consume"

// Telemetry holds all OpenTelemetry instruments for the go-consume library
// When no providers are configured, all instruments are noops with zero overhead
type Telemetry struct {
	Tracer     trace.Tracer
	Propagator propagation.TextMapPropagator

	// Fetch metrics
	RecordsFetched metric.Int64Counter
	FetchDuration  metric.Float64Histogram

	// Delivery metrics
	RecordsDelivered metric.Int64Counter
	Demand           metric.Int64UpDownCounter

	// Commit metrics
	Commits        metric.Int64Counter
	CommitDuration metric.Float64Histogram

	// Error metrics
	Errors metric.Int64Counter

	// Consumer state metrics
	ConsumersActive metric.Int64UpDownCounter
}

// NewTelemetry creates a Telemetry instance from the given providers.
// all providers are optional and defaulted to noops if nil
func NewTelemetry(tp trace.TracerProvider, mp metric.MeterProvider, prop propagation.TextMapPropagator) (
	*Telemetry, error,
) {
	if tp == nil {
		tp = traceNoop.NewTracerProvider()
	}
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	if prop == nil {
		prop = propagation.TraceContext{}
	}

	tracer := tp.Tracer(scopeName)
	meter := mp.Meter(scopeName)

	recordsFetched, err := meter.Int64Counter(
		"messaging.consumer.records_fetched",
		metric.WithDescription("Records fetched from the broker"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"consume.fetch.duration",
		metric.WithDescription("Time per fetch round trip"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	recordsDelivered, err := meter.Int64Counter(
		"consume.records_delivered",
		metric.WithDescription("Records delivered to the subscriber"),
	)
	if err != nil {
		return nil, err
	}

	demand, err := meter.Int64UpDownCounter(
		"consume.demand",
		metric.WithDescription("Outstanding downstream demand"),
	)
	if err != nil {
		return nil, err
	}

	commits, err := meter.Int64Counter(
		"consume.commits",
		metric.WithDescription("Offset commit RPCs issued"),
	)
	if err != nil {
		return nil, err
	}

	commitDuration, err := meter.Float64Histogram(
		"consume.commit.duration",
		metric.WithDescription("Time per offset commit RPC"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errors, err := meter.Int64Counter(
		"consume.errors",
		metric.WithDescription("Broker errors encountered"),
	)
	if err != nil {
		return nil, err
	}

	consumersActive, err := meter.Int64UpDownCounter(
		"consume.consumers.active",
		metric.WithDescription("Active partition consumers"),
	)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Tracer:           tracer,
		Propagator:       prop,
		RecordsFetched:   recordsFetched,
		FetchDuration:    fetchDuration,
		RecordsDelivered: recordsDelivered,
		Demand:           demand,
		Commits:          commits,
		CommitDuration:   commitDuration,
		Errors:           errors,
		ConsumersActive:  consumersActive,
	}, nil
}

// Noop returns a Telemetry instance with all noop instruments
func Noop() *Telemetry {
	t, _ := NewTelemetry(nil, nil, nil)
	return t
}
