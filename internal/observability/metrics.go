// Package observability wires the gateway's metrics: an OpenTelemetry meter
// backed by a Prometheus exporter, scraped through the main HTTP server.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector manages all gateway metrics. The zero collector (metrics
// disabled) is valid: every record method is a no-op.
type MetricsCollector struct {
	meter metric.Meter

	executions        metric.Int64Counter
	executionDuration metric.Float64Histogram
	activeStreams     metric.Int64UpDownCounter
	discardedCalls    metric.Int64Counter
	parsedEvents      metric.Int64Counter
}

// MetricsConfig configures the metrics collector.
type MetricsConfig struct {
	Enabled bool
}

// NewMetricsCollector creates the collector and registers the global meter
// provider with a Prometheus reader.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter("codegate")

	executions, err := meter.Int64Counter(
		"codegate.agent.executions.total",
		metric.WithDescription("Total number of agent executions"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create executions counter: %w", err)
	}

	executionDuration, err := meter.Float64Histogram(
		"codegate.agent.execution.duration",
		metric.WithDescription("Agent execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution duration histogram: %w", err)
	}

	activeStreams, err := meter.Int64UpDownCounter(
		"codegate.streams.active",
		metric.WithDescription("Number of in-flight streaming executions"),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active streams gauge: %w", err)
	}

	discardedCalls, err := meter.Int64Counter(
		"codegate.toolcalls.discarded.total",
		metric.WithDescription("Extra tool-call candidates dropped by the first-match policy"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discarded tool calls counter: %w", err)
	}

	parsedEvents, err := meter.Int64Counter(
		"codegate.stream.events.total",
		metric.WithDescription("Agent stream lines by parse outcome"),
		metric.WithUnit("{line}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create parsed events counter: %w", err)
	}

	return &MetricsCollector{
		meter:             meter,
		executions:        executions,
		executionDuration: executionDuration,
		activeStreams:     activeStreams,
		discardedCalls:    discardedCalls,
		parsedEvents:      parsedEvents,
	}, nil
}

// PrometheusHandler returns the scrape handler for the /metrics route.
func (m *MetricsCollector) PrometheusHandler() http.Handler {
	return promclient.Handler()
}

// RecordExecution records one completed agent execution.
func (m *MetricsCollector) RecordExecution(ctx context.Context, protocol, status string, duration time.Duration) {
	if m.executions == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("protocol", protocol),
		attribute.String("status", status),
	}
	m.executions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.executionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// StreamStarted marks one streaming execution in flight.
func (m *MetricsCollector) StreamStarted(ctx context.Context) {
	if m.activeStreams == nil {
		return
	}
	m.activeStreams.Add(ctx, 1)
}

// StreamEnded marks one streaming execution finished.
func (m *MetricsCollector) StreamEnded(ctx context.Context) {
	if m.activeStreams == nil {
		return
	}
	m.activeStreams.Add(ctx, -1)
}

// RecordDiscardedToolCalls records tool-call candidates dropped beyond the
// first.
func (m *MetricsCollector) RecordDiscardedToolCalls(ctx context.Context, count int) {
	if m.discardedCalls == nil || count <= 0 {
		return
	}
	m.discardedCalls.Add(ctx, int64(count))
}

// RecordStreamLine records one agent stream line by parse outcome
// ("event" or "discarded").
func (m *MetricsCollector) RecordStreamLine(ctx context.Context, outcome string) {
	if m.parsedEvents == nil {
		return
	}
	m.parsedEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
