package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// ShutdownFunc releases telemetry resources.
type ShutdownFunc func(ctx context.Context) error

// Setup initializes OpenTelemetry with a Prometheus exporter.
// Returns a shutdown function that must be called on exit.
func Setup(ctx context.Context, serviceName string) (ShutdownFunc, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// ConsoleMetrics holds all OTel instruments for the console.
type ConsoleMetrics struct {
	httpRequestsTotal     otelmetric.Int64Counter
	httpRequestDuration   otelmetric.Float64Histogram
	backendRequestsTotal  otelmetric.Int64Counter
	backendDuration       otelmetric.Float64Histogram
	sessionOpsTotal       otelmetric.Int64Counter
	phaseTransitionsTotal otelmetric.Int64Counter
	gateDecisionsTotal    otelmetric.Int64Counter
}

// NewConsoleMetrics creates and registers all console metrics.
func NewConsoleMetrics() (*ConsoleMetrics, error) {
	meter := otel.Meter("console")
	m := &ConsoleMetrics{}
	var err error

	latencyBuckets := otelmetric.WithExplicitBucketBoundaries(
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
	)

	if m.httpRequestsTotal, err = meter.Int64Counter("console_http_requests_total",
		otelmetric.WithDescription("Total HTTP requests served by the console")); err != nil {
		return nil, fmt.Errorf("creating http_requests_total: %w", err)
	}
	if m.httpRequestDuration, err = meter.Float64Histogram("console_http_request_duration_seconds",
		otelmetric.WithDescription("Console HTTP request duration"), latencyBuckets); err != nil {
		return nil, fmt.Errorf("creating http_request_duration: %w", err)
	}
	if m.backendRequestsTotal, err = meter.Int64Counter("console_backend_requests_total",
		otelmetric.WithDescription("Total requests dispatched to the Smart Risk backend")); err != nil {
		return nil, fmt.Errorf("creating backend_requests_total: %w", err)
	}
	if m.backendDuration, err = meter.Float64Histogram("console_backend_request_duration_seconds",
		otelmetric.WithDescription("Backend round-trip duration"), latencyBuckets); err != nil {
		return nil, fmt.Errorf("creating backend_request_duration: %w", err)
	}
	if m.sessionOpsTotal, err = meter.Int64Counter("console_session_operations_total",
		otelmetric.WithDescription("Session operations (login, register, logout, bootstrap)")); err != nil {
		return nil, fmt.Errorf("creating session_operations_total: %w", err)
	}
	if m.phaseTransitionsTotal, err = meter.Int64Counter("console_session_phase_transitions_total",
		otelmetric.WithDescription("Session phase transitions")); err != nil {
		return nil, fmt.Errorf("creating phase_transitions_total: %w", err)
	}
	if m.gateDecisionsTotal, err = meter.Int64Counter("console_gate_decisions_total",
		otelmetric.WithDescription("Route gate decisions")); err != nil {
		return nil, fmt.Errorf("creating gate_decisions_total: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records a console HTTP request.
func (m *ConsoleMetrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, durationSec float64) {
	attrs := otelmetric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(status),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, durationSec, attrs)
}

// RecordBackendRequest records a backend round-trip dispatched by the gateway.
// status is zero when no response was received.
func (m *ConsoleMetrics) RecordBackendRequest(ctx context.Context, method, path string, status int, durationSec float64) {
	attrs := otelmetric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(status),
	)
	m.backendRequestsTotal.Add(ctx, 1, attrs)
	m.backendDuration.Record(ctx, durationSec, attrs)
}

// RecordSessionOp records the outcome of a session store operation.
func (m *ConsoleMetrics) RecordSessionOp(ctx context.Context, op, result string) {
	m.sessionOpsTotal.Add(ctx, 1, otelmetric.WithAttributes(opAttr(op), resultAttr(result)))
}

// RecordPhaseTransition records a session phase transition.
func (m *ConsoleMetrics) RecordPhaseTransition(ctx context.Context, from, to string) {
	m.phaseTransitionsTotal.Add(ctx, 1, otelmetric.WithAttributes(fromAttr(from), toAttr(to)))
}

// RecordGateDecision records a route gate decision.
func (m *ConsoleMetrics) RecordGateDecision(ctx context.Context, gate, decision string) {
	m.gateDecisionsTotal.Add(ctx, 1, otelmetric.WithAttributes(gateAttr(gate), decisionAttr(decision)))
}
