package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	maxFormBodySize = 1024 * 1024
	maxAPIBodySize  = 1024 * 1024
)

// MiddlewareSetup configures all middleware for the application
type MiddlewareSetup struct {
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Meter     metric.Meter
	Telemetry *TelemetryConfig

	SecurityConfig  *SecurityConfig
	RateLimitConfig *RateLimitConfig

	EnableRateLimit bool
	EnableMetrics   bool

	observability Middleware
	publicLimiter *RateLimiter
	apiLimiter    *RateLimiter
}

// newMiddlewareSetup creates a new middleware setup with defaults
func newMiddlewareSetup(logger *slog.Logger, telemetry *TelemetryConfig) *MiddlewareSetup {
	if telemetry == nil {
		telemetry = &TelemetryConfig{}
	}
	if telemetry.Tracer == nil {
		telemetry.Tracer = tracenoop.NewTracerProvider().Tracer(telemetry.ServiceName)
	}

	return &MiddlewareSetup{
		Logger:    logger,
		Tracer:    telemetry.Tracer,
		Meter:     telemetry.Meter,
		Telemetry: telemetry,

		SecurityConfig:  defaultSecurityConfig(),
		RateLimitConfig: defaultRateLimitConfig(),

		EnableRateLimit: true,
		EnableMetrics:   true,
	}
}

// CreatePublicChain creates the middleware chain for HTML endpoints
func (ms *MiddlewareSetup) CreatePublicChain() *Chain {
	middlewares := []Middleware{
		requestContextMiddleware(),
	}

	if ms.EnableMetrics {
		middlewares = append(middlewares, ms.createObservabilityMiddleware())
	}

	middlewares = append(middlewares,
		loggingMiddleware(ms.Logger),
		securityHeadersMiddleware(ms.SecurityConfig),
		requestSizeLimitMiddleware(maxFormBodySize),
	)

	if ms.EnableRateLimit {
		if ms.publicLimiter == nil {
			ms.publicLimiter = newRateLimiter(ms.RateLimitConfig, ms.Logger)
		}
		middlewares = append(middlewares, ms.publicLimiter.Middleware())
	}

	return newChain(middlewares...)
}

// CreateAPIChain creates the middleware chain for JSON endpoints
func (ms *MiddlewareSetup) CreateAPIChain() *Chain {
	middlewares := []Middleware{
		requestContextMiddleware(),
	}

	if ms.EnableMetrics {
		middlewares = append(middlewares, ms.createObservabilityMiddleware())
	}

	middlewares = append(middlewares,
		loggingMiddleware(ms.Logger, slog.String("api_version", "v1")),
		securityHeadersMiddleware(apiSecurityConfig()),
		requestSizeLimitMiddleware(maxAPIBodySize),
	)

	if ms.EnableRateLimit {
		if ms.apiLimiter == nil {
			apiRateLimitConfig := *ms.RateLimitConfig
			apiRateLimitConfig.RequestsPerSecond *= 10
			apiRateLimitConfig.Burst *= 10
			apiRateLimitConfig.MetricPrefix = "http.api.ratelimit"
			ms.apiLimiter = newRateLimiter(&apiRateLimitConfig, ms.Logger)
		}
		middlewares = append(middlewares, ms.apiLimiter.Middleware())
	}

	middlewares = append(middlewares, requireJSONMiddleware())

	return newChain(middlewares...)
}

// CreateOpsChain creates the chain for operational endpoints that only
// the listed peer addresses may reach.
func (ms *MiddlewareSetup) CreateOpsChain(allowed []string) *Chain {
	return newChain(
		requestContextMiddleware(),
		loggingMiddleware(ms.Logger),
		ipAllowlistMiddleware(allowed, ms.Logger),
	)
}

// CreateHealthChain creates a minimal chain for liveness checks.
func (ms *MiddlewareSetup) CreateHealthChain() *Chain {
	return newChain(requestContextMiddleware())
}

// CreateStaticChain creates the chain for embedded assets.
func (ms *MiddlewareSetup) CreateStaticChain() *Chain {
	return ms.CreatePublicChain().Append(staticFileMiddleware())
}

// Close stops the rate limiter cleanup loops.
func (ms *MiddlewareSetup) Close() {
	if ms.publicLimiter != nil {
		ms.publicLimiter.Close()
	}
	if ms.apiLimiter != nil {
		ms.apiLimiter.Close()
	}
}

// createObservabilityMiddleware builds the observability middleware once
// so its instruments are only registered a single time.
func (ms *MiddlewareSetup) createObservabilityMiddleware() Middleware {
	if ms.observability != nil {
		return ms.observability
	}

	config := &ObservabilityConfig{
		ServiceName:     ms.Telemetry.ServiceName,
		Tracer:          ms.Tracer,
		Meter:           ms.Meter,
		RequestCounter:  ms.Telemetry.Metrics.RequestCounter,
		RequestDuration: ms.Telemetry.Metrics.RequestDuration,
		ErrorCounter:    ms.Telemetry.Metrics.ErrorCounter,
	}

	if ms.Meter != nil {
		config.RequestSize, _ = ms.Meter.Int64Histogram(
			"http.server.request.size",
			metric.WithDescription("Size of HTTP request bodies"),
			metric.WithUnit("By"),
		)

		config.ResponseSize, _ = ms.Meter.Int64Histogram(
			"http.server.response.size",
			metric.WithDescription("Size of HTTP response bodies"),
			metric.WithUnit("By"),
		)

		config.ActiveRequests, _ = ms.Meter.Int64UpDownCounter(
			"http.server.active_requests",
			metric.WithDescription("Number of active HTTP requests"),
			metric.WithUnit("{request}"),
		)
	}

	ms.observability = newObservabilityMiddleware(config)
	return ms.observability
}

// Wrap applies the router-level middleware. Method override has to run
// before the mux picks a route. API routes are excluded: they carry no CSRF
// check, so a cross-site form must not reach their DELETE or PUT handlers.
func (ms *MiddlewareSetup) Wrap(h http.Handler) http.Handler {
	return newChain(
		requestSizeLimitMiddleware(maxFormBodySize),
		when(notAPIPath, methodOverrideMiddleware()),
	).Then(h)
}

const apiPathPrefix = "/api/"

func notAPIPath(r *http.Request) bool {
	return !strings.HasPrefix(r.URL.Path, apiPathPrefix)
}
