package middleware

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryConfig carries the instruments the middleware records into.
type TelemetryConfig struct {
	ServiceName string
	Tracer      trace.Tracer
	Meter       metric.Meter
	Metrics     TelemetryMetrics
}

// TelemetryMetrics holds the shared HTTP instruments. Nil instruments are
// skipped.
type TelemetryMetrics struct {
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	ErrorCounter    metric.Int64Counter
}
