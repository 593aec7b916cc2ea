package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/imeyer/tsponsor/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all HTTP routes with their middleware chains. The
// returned func stops the background work of the middleware.
func SetupRoutes(svc *SponsorService, config *Config, csrf *CSRFProtector) (http.Handler, func()) {
	ms := middleware.NewMiddlewareSetup(svc.logger, ConvertTelemetryConfig(svc.telemetry, config.ServiceName))

	ms.EnableRateLimit = config.RateLimit.Enabled
	ms.RateLimitConfig.RequestsPerSecond = config.RateLimit.RequestsPerSecond
	ms.RateLimitConfig.Burst = config.RateLimit.Burst
	ms.RateLimitConfig.TrustedProxies = config.RateLimit.TrustedProxies
	ms.RateLimitConfig.Meter = svc.telemetry.Meter

	htmlChain := ms.CreatePublicChain()
	if config.CSRF && csrf != nil {
		htmlChain = htmlChain.Append(csrf.Middleware())
	}
	topicChain := htmlChain.Append(middleware.TopicScopeMiddleware(svc.loadTopic, svc.handleError))
	apiChain := ms.CreateAPIChain().Append(middleware.TopicScopeMiddleware(svc.loadTopic, svc.writeAPIError))

	mux := http.NewServeMux()

	mux.Handle("GET /{$}", htmlChain.ThenFunc(svc.ListTopics))
	mux.Handle("GET /topics", htmlChain.ThenFunc(svc.ListTopics))
	mux.Handle("GET /topics/new", htmlChain.ThenFunc(svc.NewTopic))
	mux.Handle("POST /topics", htmlChain.ThenFunc(svc.CreateTopic))
	mux.Handle("GET /topics/{topic_id}", topicChain.ThenFunc(svc.ShowTopic))
	mux.Handle("DELETE /topics/{topic_id}", topicChain.ThenFunc(svc.DestroyTopic))
	mux.Handle("POST /topics/{topic_id}/posts", topicChain.ThenFunc(svc.CreatePost))

	mux.Handle("GET /topics/{topic_id}/sponsored_posts/new", topicChain.ThenFunc(svc.NewSponsoredPost))
	mux.Handle("POST /topics/{topic_id}/sponsored_posts", topicChain.ThenFunc(svc.CreateSponsoredPost))
	mux.Handle("GET /topics/{topic_id}/sponsored_posts/{id}", topicChain.ThenFunc(svc.ShowSponsoredPost))
	mux.Handle("GET /topics/{topic_id}/sponsored_posts/{id}/edit", topicChain.ThenFunc(svc.EditSponsoredPost))
	mux.Handle("PUT /topics/{topic_id}/sponsored_posts/{id}", topicChain.ThenFunc(svc.UpdateSponsoredPost))
	mux.Handle("PATCH /topics/{topic_id}/sponsored_posts/{id}", topicChain.ThenFunc(svc.UpdateSponsoredPost))
	mux.Handle("DELETE /topics/{topic_id}/sponsored_posts/{id}", topicChain.ThenFunc(svc.DestroySponsoredPost))

	mux.Handle("GET /api/v1/topics/{topic_id}/sponsored_posts", apiChain.ThenFunc(svc.APIListSponsoredPosts))
	mux.Handle("POST /api/v1/topics/{topic_id}/sponsored_posts", apiChain.ThenFunc(svc.APICreateSponsoredPost))
	mux.Handle("GET /api/v1/topics/{topic_id}/sponsored_posts/{id}", apiChain.ThenFunc(svc.APIShowSponsoredPost))
	mux.Handle("PUT /api/v1/topics/{topic_id}/sponsored_posts/{id}", apiChain.ThenFunc(svc.APIUpdateSponsoredPost))
	mux.Handle("PATCH /api/v1/topics/{topic_id}/sponsored_posts/{id}", apiChain.ThenFunc(svc.APIUpdateSponsoredPost))
	mux.Handle("DELETE /api/v1/topics/{topic_id}/sponsored_posts/{id}", apiChain.ThenFunc(svc.APIDestroySponsoredPost))

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		svc.logger.Error("error creating fs for static assets", slog.String("error", err.Error()))
	} else {
		mux.Handle("GET /static/", ms.CreateStaticChain().Then(http.StripPrefix("/static/", http.FileServerFS(static))))
	}

	mux.Handle("GET /health", ms.CreateHealthChain().ThenFunc(svc.HealthCheck))
	mux.Handle("GET /_/metrics", ms.CreateOpsChain(config.MetricsAllowlist).Then(promhttp.Handler()))

	globalChain := middleware.NewChain(
		RecoveryMiddleware(svc.logger),
	)

	return HistogramHttpHandler(globalChain.Then(ms.Wrap(mux))), ms.Close
}

// RecoveryMiddleware recovers from panics, logs them with an error id, and
// answers with a 500 page when nothing has been written yet.
func RecoveryMiddleware(logger *slog.Logger) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &recoveryResponseWriter{ResponseWriter: w}

			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}

				errorID := generateErrorID()

				requestInfo := []any{
					slog.Any("panic_error", err),
					slog.String("error_id", errorID),
					slog.String("request_id", middleware.GetRequestID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				}

				if r.PostForm != nil {
					formData := make(map[string]string)
					for key, values := range r.PostForm {
						if !isSensitiveField(key) && len(values) > 0 {
							formData[key] = values[0]
						}
					}
					if len(formData) > 0 {
						requestInfo = append(requestInfo, slog.Any("form_data", formData))
					}
				}

				logger.ErrorContext(r.Context(), "panic recovered - internal server error",
					slog.Group("panic_details", requestInfo...),
				)

				if wrapped.headersSent {
					logger.WarnContext(r.Context(), "cannot send error response - headers already sent",
						slog.String("error_id", errorID))
					return
				}

				w.Header().Set("X-Content-Type-Options", "nosniff")
				w.Header().Set("X-Frame-Options", "DENY")
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(generateErrorHTML(errorID)))
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}

// recoveryResponseWriter tracks whether headers have been sent
type recoveryResponseWriter struct {
	http.ResponseWriter
	headersSent bool
}

func (w *recoveryResponseWriter) WriteHeader(statusCode int) {
	if !w.headersSent {
		w.headersSent = true
		w.ResponseWriter.WriteHeader(statusCode)
	}
}

func (w *recoveryResponseWriter) Write(data []byte) (int, error) {
	w.headersSent = true
	return w.ResponseWriter.Write(data)
}

func (w *recoveryResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func generateErrorID() string {
	return "ERR-" + strings.ToUpper(uuid.NewString()[:8])
}

func isSensitiveField(fieldName string) bool {
	fieldLower := strings.ToLower(fieldName)
	return strings.Contains(fieldLower, "password") ||
		strings.Contains(fieldLower, "secret") ||
		strings.Contains(fieldLower, "token") ||
		strings.Contains(fieldLower, "key")
}

func generateErrorHTML(errorID string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Internal Server Error</title>
    <link rel="stylesheet" href="/static/style.css">
</head>
<body>
    <main class="error" data-view="error">
        <h1>Internal Server Error</h1>
        <p>Something went wrong on our side.</p>
        <p class="error-id">Error ID: <code>%s</code></p>
        <p><a href="/topics">Back to topics</a></p>
    </main>
</body>
</html>`, errorID)
}
