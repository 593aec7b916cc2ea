package middleware

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// SecurityConfig holds security middleware configuration
type SecurityConfig struct {
	CSPDirectives map[string]string

	HSTSMaxAge            int
	HSTSIncludeSubDomains bool
	HSTSPreload           bool

	PermissionsPolicy map[string][]string

	FrameOptions       string
	ContentTypeOptions string
	ReferrerPolicy     string

	CustomHeaders map[string]string
}

// defaultSecurityConfig returns secure defaults
func defaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		CSPDirectives: map[string]string{
			"default-src":     "'self'",
			"script-src":      "'self'",
			"style-src":       "'self'",
			"img-src":         "'self' data: https:",
			"font-src":        "'self'",
			"connect-src":     "'self'",
			"frame-ancestors": "'none'",
			"base-uri":        "'self'",
			"form-action":     "'self'",
		},
		HSTSMaxAge:            63072000, // 2 years
		HSTSIncludeSubDomains: true,
		HSTSPreload:           true,
		FrameOptions:          "DENY",
		ContentTypeOptions:    "nosniff",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy: map[string][]string{
			"geolocation": {},
			"microphone":  {},
			"camera":      {},
			"payment":     {},
			"usb":         {},
		},
		CustomHeaders: make(map[string]string),
	}
}

// apiSecurityConfig is the default config with a CSP for JSON responses.
func apiSecurityConfig() *SecurityConfig {
	config := defaultSecurityConfig()
	config.CSPDirectives = map[string]string{
		"default-src":     "'none'",
		"frame-ancestors": "'none'",
	}
	return config
}

// securityHeadersMiddleware adds security headers. HSTS and
// upgrade-insecure-requests are only sent over HTTPS so that the plain
// listener keeps working.
func securityHeadersMiddleware(config *SecurityConfig) Middleware {
	if config == nil {
		config = defaultSecurityConfig()
	}

	permissionsPolicy := buildPermissionsPolicy(config.PermissionsPolicy)
	csp := buildCSP(config.CSPDirectives)
	hsts := buildHSTS(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", config.ContentTypeOptions)
			h.Set("X-Frame-Options", config.FrameOptions)
			h.Set("Referrer-Policy", config.ReferrerPolicy)
			h.Set("X-XSS-Protection", "0")

			if permissionsPolicy != "" {
				h.Set("Permissions-Policy", permissionsPolicy)
			}

			if isHTTPS(r) {
				h.Set("Strict-Transport-Security", hsts)
				h.Set("Content-Security-Policy", csp+"; upgrade-insecure-requests")
			} else {
				h.Set("Content-Security-Policy", csp)
			}

			for k, v := range config.CustomHeaders {
				h.Set(k, v)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestSizeLimitMiddleware limits request body size
func requestSizeLimitMiddleware(maxSize int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				if r.ContentLength > maxSize {
					http.Error(w, fmt.Sprintf("Request body too large. Maximum size: %d bytes", maxSize),
						http.StatusRequestEntityTooLarge)
					return
				}

				r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requireJSONMiddleware rejects request bodies that are not JSON.
func requireJSONMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				ct := r.Header.Get("Content-Type")
				if i := strings.IndexByte(ct, ';'); i >= 0 {
					ct = ct[:i]
				}
				if !strings.EqualFold(strings.TrimSpace(ct), "application/json") {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnsupportedMediaType)
					w.Write([]byte(`{"error":"content type must be application/json"}`))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// staticFileMiddleware adds caching headers for static files
func staticFileMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=86400")
			next.ServeHTTP(w, r)
		})
	}
}

// buildCSP renders directives in a stable order.
func buildCSP(directives map[string]string) string {
	names := make([]string, 0, len(directives))
	for name := range directives {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if value := directives[name]; value != "" {
			parts = append(parts, name+" "+value)
		} else {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "; ")
}

func buildHSTS(config *SecurityConfig) string {
	parts := []string{fmt.Sprintf("max-age=%d", config.HSTSMaxAge)}

	if config.HSTSIncludeSubDomains {
		parts = append(parts, "includeSubDomains")
	}

	if config.HSTSPreload {
		parts = append(parts, "preload")
	}

	return strings.Join(parts, "; ")
}

func buildPermissionsPolicy(policies map[string][]string) string {
	features := make([]string, 0, len(policies))
	for feature := range policies {
		features = append(features, feature)
	}
	sort.Strings(features)

	parts := make([]string, 0, len(features))
	for _, feature := range features {
		parts = append(parts, fmt.Sprintf("%s=(%s)", feature, strings.Join(policies[feature], " ")))
	}

	return strings.Join(parts, ", ")
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil ||
		strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") ||
		strings.EqualFold(r.URL.Scheme, "https")
}
