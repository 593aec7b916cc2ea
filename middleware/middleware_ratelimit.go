package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Default rate limit
	RequestsPerSecond float64
	Burst             int

	// Per-endpoint limits, first match wins
	EndpointLimits []EndpointLimit

	CleanupInterval time.Duration
	IncludeHeaders  bool

	// Peer addresses whose X-Forwarded-For and X-Real-IP headers are
	// believed. Requests from anyone else are keyed on the peer address.
	TrustedProxies []string

	Meter        metric.Meter
	MetricPrefix string
}

// EndpointLimit defines rate limits for specific endpoints. Pattern uses
// path.Match syntax; an empty Methods matches every method.
type EndpointLimit struct {
	Pattern string
	Methods []string
	Rate    float64
	Burst   int
}

func (l EndpointLimit) matches(r *http.Request) bool {
	if ok, _ := path.Match(l.Pattern, r.URL.Path); !ok {
		return false
	}
	if len(l.Methods) == 0 {
		return true
	}
	for _, m := range l.Methods {
		if m == r.Method {
			return true
		}
	}
	return false
}

var mutatingMethods = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

// defaultRateLimitConfig returns sensible defaults
func defaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		CleanupInterval:   5 * time.Minute,
		IncludeHeaders:    true,
		EndpointLimits: []EndpointLimit{
			{Pattern: "/topics", Methods: []string{http.MethodPost}, Rate: 0.5, Burst: 2},
			{Pattern: "/topics/*", Methods: []string{http.MethodDelete}, Rate: 0.5, Burst: 2},
			{Pattern: "/topics/*/posts", Methods: []string{http.MethodPost}, Rate: 1, Burst: 5},
			{Pattern: "/topics/*/sponsored_posts", Methods: mutatingMethods, Rate: 1, Burst: 5},
			{Pattern: "/topics/*/sponsored_posts/*", Methods: mutatingMethods, Rate: 2, Burst: 5},
			{Pattern: "/api/v1/topics/*/sponsored_posts", Methods: mutatingMethods, Rate: 2, Burst: 10},
			{Pattern: "/api/v1/topics/*/sponsored_posts/*", Methods: mutatingMethods, Rate: 2, Burst: 10},
		},
	}
}

// RateLimiter keeps one token bucket per client and endpoint.
type RateLimiter struct {
	config   *RateLimitConfig
	logger   *slog.Logger
	visitors map[string]*visitor
	mu       sync.Mutex
	trusted  map[string]bool

	stop     chan struct{}
	stopOnce sync.Once

	rateLimitHits  metric.Int64Counter
	activeVisitors metric.Int64Gauge
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter creates a rate limiter and starts its cleanup loop.
// Close stops the loop.
func newRateLimiter(config *RateLimitConfig, logger *slog.Logger) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	rl := &RateLimiter{
		config:   config,
		logger:   logger,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
		trusted:  make(map[string]bool, len(config.TrustedProxies)),
	}
	for _, ip := range config.TrustedProxies {
		rl.trusted[ip] = true
	}

	if config.Meter != nil {
		prefix := config.MetricPrefix
		if prefix == "" {
			prefix = "http.ratelimit"
		}

		rl.rateLimitHits, _ = config.Meter.Int64Counter(
			prefix+".hits",
			metric.WithDescription("Number of rate limit hits"),
			metric.WithUnit("{hit}"),
		)

		rl.activeVisitors, _ = config.Meter.Int64Gauge(
			prefix+".visitors",
			metric.WithDescription("Number of active rate limit visitors"),
			metric.WithUnit("{visitor}"),
		)
	}

	go rl.cleanupVisitors()

	return rl
}

// Close stops the cleanup loop.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			endpoint, limit, burst := rl.getLimitsForRequest(r)
			key := "ip:" + rl.clientIP(r) + "|" + endpoint

			v := rl.getVisitor(key, limit, burst)

			if !v.limiter.Allow() {
				rl.handleRateLimitExceeded(w, r, endpoint, v.limiter)
				return
			}

			if rl.config.IncludeHeaders {
				rl.addRateLimitHeaders(w, v.limiter)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getLimitsForRequest returns the bucket name and limits for r.
func (rl *RateLimiter) getLimitsForRequest(r *http.Request) (string, float64, int) {
	for _, l := range rl.config.EndpointLimits {
		if l.matches(r) {
			return r.Method + " " + l.Pattern, l.Rate, l.Burst
		}
	}

	return "default", rl.config.RequestsPerSecond, rl.config.Burst
}

func (rl *RateLimiter) getVisitor(key string, limit float64, burst int) *visitor {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{
			limiter:  rate.NewLimiter(rate.Limit(limit), burst),
			lastSeen: time.Now(),
		}
		rl.visitors[key] = v

		if rl.activeVisitors != nil {
			rl.activeVisitors.Record(context.Background(), int64(len(rl.visitors)))
		}
	} else {
		v.lastSeen = time.Now()
	}

	return v
}

func (rl *RateLimiter) handleRateLimitExceeded(w http.ResponseWriter, r *http.Request, endpoint string, limiter *rate.Limiter) {
	rl.logger.WarnContext(r.Context(), "rate limit exceeded",
		slog.String("client", hashValue(rl.clientIP(r))),
		slog.String("endpoint", endpoint),
		slog.String("path", r.URL.Path),
	)

	if rl.rateLimitHits != nil {
		rl.rateLimitHits.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("endpoint", endpoint),
		))
	}

	if rl.config.IncludeHeaders {
		rl.addRateLimitHeaders(w, limiter)

		if reservation := limiter.Reserve(); reservation.OK() {
			delay := reservation.Delay()
			reservation.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
		}
	}

	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

func (rl *RateLimiter) addRateLimitHeaders(w http.ResponseWriter, limiter *rate.Limiter) {
	limit := limiter.Limit()
	burst := limiter.Burst()

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(burst))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
	w.Header().Set("X-RateLimit-Policy", fmt.Sprintf("%.2f;w=1;burst=%d", limit, burst))
}

// cleanupVisitors removes idle visitors until Close is called.
func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.removeIdle(now)
		}
	}
}

func (rl *RateLimiter) removeIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.config.CleanupInterval {
			delete(rl.visitors, key)
		}
	}

	if rl.activeVisitors != nil {
		rl.activeVisitors.Record(context.Background(), int64(len(rl.visitors)))
	}
}

// clientIP is the peer address, or for a trusted proxy the nearest
// forwarded address that is not itself a trusted proxy.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	peer := remoteIP(r)
	if !rl.trusted[peer] {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !rl.trusted[hop] {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	return peer
}

// ipAllowlistMiddleware rejects connections whose peer address is not in
// allowed. Forwarding headers are ignored.
func ipAllowlistMiddleware(allowed []string, logger *slog.Logger) Middleware {
	allowedMap := make(map[string]bool, len(allowed))
	for _, ip := range allowed {
		allowedMap[ip] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowedMap[remoteIP(r)] {
				logger.WarnContext(r.Context(), "address not in allowlist",
					slog.String("client", hashClientAddr(r.RemoteAddr)),
					slog.String("path", r.URL.Path),
				)
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
