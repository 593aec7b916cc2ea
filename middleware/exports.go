// Package middleware provides the HTTP middleware used by the sponsor
// service: request context, observability, security headers, rate limiting,
// form method override and topic scoping.
package middleware

import "log/slog"

var (
	// NewChain creates a new middleware chain
	NewChain = newChain

	// GetRequestID retrieves the request ID from context
	GetRequestID = getRequestID

	// GetLogger retrieves the request-scoped logger from context
	GetLogger = getLogger
)

// NewMiddlewareSetup creates a new middleware setup
func NewMiddlewareSetup(logger *slog.Logger, telemetry *TelemetryConfig) *MiddlewareSetup {
	return newMiddlewareSetup(logger, telemetry)
}
