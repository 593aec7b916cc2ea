package main

import (
	"github.com/imeyer/tsponsor/middleware"
)

// ConvertTelemetryConfig hands the shared instruments to the middleware package.
func ConvertTelemetryConfig(tc *TelemetryConfig, serviceName string) *middleware.TelemetryConfig {
	if tc == nil {
		return &middleware.TelemetryConfig{ServiceName: serviceName}
	}

	return &middleware.TelemetryConfig{
		ServiceName: serviceName,
		Tracer:      tc.Tracer,
		Meter:       tc.Meter,
		Metrics: middleware.TelemetryMetrics{
			RequestCounter:  tc.Metrics.RequestCounter,
			RequestDuration: tc.Metrics.RequestDuration,
			ErrorCounter:    tc.Metrics.ErrorCounter,
		},
	}
}
