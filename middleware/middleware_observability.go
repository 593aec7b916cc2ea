package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ObservabilityConfig holds configuration for observability middleware
type ObservabilityConfig struct {
	ServiceName     string
	Tracer          trace.Tracer
	Meter           metric.Meter
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	RequestSize     metric.Int64Histogram
	ResponseSize    metric.Int64Histogram
	ErrorCounter    metric.Int64Counter
	ActiveRequests  metric.Int64UpDownCounter
}

// newObservabilityMiddleware records a server span and the request metrics.
// Request logging is loggingMiddleware's job.
func newObservabilityMiddleware(config *ObservabilityConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := getOrCreateRequestContext(r.Context())
			route := routeFor(r)

			ctx, span := config.Tracer.Start(r.Context(),
				fmt.Sprintf("%s %s", r.Method, route),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPMethodKey.String(r.Method),
					semconv.HTTPTargetKey.String(r.URL.Path),
					semconv.HTTPRouteKey.String(route),
					attribute.String("http.host", r.Host),
					attribute.String("http.user_agent", r.UserAgent()),
					attribute.Int64("http.request_content_length", r.ContentLength),
					attribute.String("request.id", rc.RequestID),
				),
			)
			defer span.End()

			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				rc.TraceID = spanCtx.TraceID().String()
			}

			wrapped := newResponseWriter(w)

			if config.ActiveRequests != nil {
				config.ActiveRequests.Add(ctx, 1)
				defer config.ActiveRequests.Add(ctx, -1)
			}

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(rc.StartTime)
			status := wrapped.Status()

			attrs := []attribute.KeyValue{
				attribute.String("method", r.Method),
				attribute.String("route", route),
				attribute.Int("status_code", status),
				attribute.String("status_class", fmt.Sprintf("%dxx", status/100)),
			}

			if config.RequestCounter != nil {
				config.RequestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
			}

			if config.RequestDuration != nil {
				config.RequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
			}

			if config.RequestSize != nil && r.ContentLength > 0 {
				config.RequestSize.Record(ctx, r.ContentLength, metric.WithAttributes(attrs...))
			}

			if config.ResponseSize != nil {
				config.ResponseSize.Record(ctx, wrapped.BytesWritten(), metric.WithAttributes(attrs...))
			}

			if status >= 400 && config.ErrorCounter != nil {
				errorAttrs := append(attrs, attribute.String("error_type", getErrorType(status)))
				config.ErrorCounter.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
			}

			span.SetAttributes(
				semconv.HTTPStatusCodeKey.Int(status),
				attribute.Int64("http.response_content_length", wrapped.BytesWritten()),
				attribute.Float64("http.request.duration_ms", float64(duration.Milliseconds())),
			)

			// 4xx are client outcomes; only server failures mark the span.
			if status >= 500 {
				span.SetStatus(codes.Error, http.StatusText(status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

// routeFor prefers the pattern the mux matched and falls back to a
// normalized path.
func routeFor(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return getRoutePattern(r.URL.Path)
}

// getRoutePattern normalizes URL paths for metrics to avoid high cardinality.
// A numeric segment after "topics" is the topic id; any other numeric
// segment is a record id.
func getRoutePattern(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" || !isDigits(seg) {
			continue
		}
		if i > 0 && segments[i-1] == "topics" {
			segments[i] = "{topic_id}"
		} else {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// getErrorType categorizes HTTP errors
func getErrorType(statusCode int) string {
	switch statusCode {
	case 400:
		return "bad_request"
	case 403:
		return "forbidden"
	case 404:
		return "not_found"
	case 405:
		return "method_not_allowed"
	case 413:
		return "payload_too_large"
	case 415:
		return "unsupported_media_type"
	case 422:
		return "unprocessable_entity"
	case 429:
		return "too_many_requests"
	case 500:
		return "internal_error"
	case 503:
		return "service_unavailable"
	default:
		if statusCode >= 400 && statusCode < 500 {
			return "client_error"
		}
		return "server_error"
	}
}

// loggingMiddleware logs each request and stores a request-scoped logger in
// the context. Client addresses are logged hashed.
func loggingMiddleware(logger *slog.Logger, attrs ...slog.Attr) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := getOrCreateRequestContext(r.Context())
			wrapped := newResponseWriter(w)

			args := []any{
				slog.String("request_id", rc.RequestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			}
			for _, a := range attrs {
				args = append(args, a)
			}
			requestLogger := logger.With(args...)

			ctx := context.WithValue(r.Context(), contextKeyLogger, requestLogger)

			requestLogger.DebugContext(ctx, "request_received",
				slog.String("client", hashClientAddr(r.RemoteAddr)),
				slog.String("user_agent", r.UserAgent()),
			)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			level := slog.LevelInfo
			if wrapped.Status() >= 500 {
				level = slog.LevelError
			}

			requestLogger.LogAttrs(ctx, level, "request_completed",
				slog.Int("status", wrapped.Status()),
				slog.String("trace_id", rc.TraceID),
				slog.Duration("duration", time.Since(rc.StartTime)),
				slog.Int64("bytes", wrapped.BytesWritten()),
			)
		})
	}
}

// getLogger retrieves the request-scoped logger from context
func getLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKeyLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
