package main

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoveryMiddleware(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		panic("boom")
	}))

	form := url.Values{"title": {"Seed catalog"}, "csrf_token": {"secret-value"}}
	req := httptest.NewRequest(http.MethodPost, "/topics/1/sponsored_posts", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error ID: <code>ERR-")
	assert.Contains(t, rec.Body.String(), `data-view="error"`)
	assert.Contains(t, logs.String(), "panic recovered")
	assert.Contains(t, logs.String(), "Seed catalog")
	assert.NotContains(t, logs.String(), "secret-value")
}

func TestRecoveryMiddlewareAfterWrite(t *testing.T) {
	handler := RecoveryMiddleware(newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestRecoveryMiddlewareAbortHandler(t *testing.T) {
	handler := RecoveryMiddleware(newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestGenerateErrorID(t *testing.T) {
	id := generateErrorID()

	assert.Len(t, id, len("ERR-")+8)
	assert.True(t, strings.HasPrefix(id, "ERR-"))
	assert.Equal(t, strings.ToUpper(id), id)
	assert.NotEqual(t, id, generateErrorID())
}

func TestIsSensitiveField(t *testing.T) {
	for field, want := range map[string]bool{
		"csrf_token": true,
		"Password":   true,
		"api_key":    true,
		"secret":     true,
		"title":      false,
		"price":      false,
	} {
		assert.Equal(t, want, isSensitiveField(field), field)
	}
}

func TestConvertTelemetryConfig(t *testing.T) {
	tc := newTestTelemetry(t)

	converted := ConvertTelemetryConfig(tc, "tsponsor")

	assert.Equal(t, "tsponsor", converted.ServiceName)
	assert.Equal(t, tc.Tracer, converted.Tracer)
	assert.Equal(t, tc.Metrics.RequestCounter, converted.Metrics.RequestCounter)

	empty := ConvertTelemetryConfig(nil, "tsponsor")
	assert.Equal(t, "tsponsor", empty.ServiceName)
	assert.Nil(t, empty.Tracer)
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/nowhere", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
