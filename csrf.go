package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/imeyer/tsponsor/middleware"
)

const (
	csrfTokenLength = 32
	csrfCookieName  = "csrf_token"
	csrfHeaderName  = "X-CSRF-Token"
	csrfFormField   = "csrf_token"
	cleanupInterval = 1 * time.Hour
	tokenExpiryTime = 12 * time.Hour

	// A token closer than this to expiry is replaced on the next safe request.
	tokenRenewWindow = 1 * time.Hour
)

type csrfContextKey struct{}

var (
	errCSRFCookieMissing = errors.New("csrf cookie not found")
	errCSRFTokenMissing  = errors.New("csrf token not found")
	errCSRFTokenMismatch = errors.New("csrf token mismatch")
	errCSRFTokenUnknown  = errors.New("csrf token not issued by this server")
	errCSRFTokenExpired  = errors.New("csrf token expired")
)

// CSRFProtector issues double-submit tokens on safe requests and checks
// them on state-changing ones. Issued tokens are tracked so forged cookies
// are rejected.
type CSRFProtector struct {
	mu     sync.RWMutex
	tokens map[string]time.Time
	now    func() time.Time
	logger *slog.Logger
}

func NewCSRFProtector(logger *slog.Logger) *CSRFProtector {
	return &CSRFProtector{
		tokens: make(map[string]time.Time),
		now:    time.Now,
		logger: logger,
	}
}

func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (p *CSRFProtector) issue(w http.ResponseWriter, r *http.Request) (string, error) {
	token, err := generateCSRFToken()
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(tokenExpiryTime.Seconds()),
	})

	p.mu.Lock()
	p.tokens[token] = p.now().Add(tokenExpiryTime)
	p.mu.Unlock()

	return token, nil
}

// reusable returns the token already held in the cookie while it stays
// valid for longer than tokenRenewWindow, so open forms in other tabs keep
// working.
func (p *CSRFProtector) reusable(r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}

	p.mu.RLock()
	expiry, exists := p.tokens[cookie.Value]
	p.mu.RUnlock()

	if !exists || p.now().Add(tokenRenewWindow).After(expiry) {
		return ""
	}
	return cookie.Value
}

func submittedToken(r *http.Request) string {
	if token := r.Header.Get(csrfHeaderName); token != "" {
		return token
	}
	return r.PostFormValue(csrfFormField)
}

func (p *CSRFProtector) validate(r *http.Request) (string, error) {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil {
		return "", errCSRFCookieMissing
	}

	token := submittedToken(r)
	if token == "" {
		return "", errCSRFTokenMissing
	}

	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(token)) != 1 {
		return "", errCSRFTokenMismatch
	}

	p.mu.RLock()
	expiry, exists := p.tokens[token]
	p.mu.RUnlock()

	if !exists {
		return "", errCSRFTokenUnknown
	}
	if p.now().After(expiry) {
		return "", errCSRFTokenExpired
	}

	return token, nil
}

// Middleware issues a token for GET and HEAD, unless the cookie already
// holds a valid one, and validates every other method. The token is available to templates through GetCSRFToken.
func (p *CSRFProtector) Middleware() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				token string
				err   error
			)

			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				if token = p.reusable(r); token == "" {
					token, err = p.issue(w, r)
				}
				if err != nil {
					p.logger.ErrorContext(r.Context(), "failed to issue csrf token", slog.String("error", err.Error()))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				w.Header().Set(csrfHeaderName, token)
			} else {
				token, err = p.validate(r)
				if err != nil {
					p.logger.DebugContext(r.Context(), "csrf validation failed",
						slog.String("error", err.Error()),
						slog.String("path", r.URL.Path),
					)
					http.Error(w, "CSRF validation failed", http.StatusForbidden)
					return
				}
			}

			ctx := context.WithValue(r.Context(), csrfContextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCSRFToken returns the token for the current request, if any.
func GetCSRFToken(r *http.Request) string {
	if token, ok := r.Context().Value(csrfContextKey{}).(string); ok {
		return token
	}
	return ""
}

func (p *CSRFProtector) cleanup() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	removed := 0
	for token, expiry := range p.tokens {
		if now.After(expiry) {
			delete(p.tokens, token)
			removed++
		}
	}
	return removed
}

// Run removes expired tokens until ctx is done.
func (p *CSRFProtector) Run(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := p.cleanup(); n > 0 {
				p.logger.DebugContext(ctx, "cleaned up expired csrf tokens", slog.Int("removed", n))
			}
		case <-ctx.Done():
			return
		}
	}
}
