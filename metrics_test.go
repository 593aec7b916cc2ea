package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/topics", "/topics"},
		{"/topics/12", "/topics/:id"},
		{"/topics/12/sponsored_posts/7/edit", "/topics/:id/sponsored_posts/:id/edit"},
		{"/api/v1/topics/3/sponsored_posts", "/api/v1/topics/:id/sponsored_posts"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizePath(tt.path))
		})
	}
}

func TestHistogramHttpHandler(t *testing.T) {
	handler := HistogramHttpHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("OK"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/topics/123/sponsored_posts/9", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	observer, err := httpRequestDuration.GetMetricWithLabelValues("/topics/:id/sponsored_posts/:id", http.MethodGet, "418")
	assert.NoError(t, err)
	assert.Equal(t, 1, testutil.CollectAndCount(observer.(prometheus.Collector)))
}

func TestVersionGaugeLabels(t *testing.T) {
	versionGauge.With(prometheus.Labels{
		"version":    "test",
		"git_commit": "abc123",
		"hostname":   "sponsor",
	}).Set(1)

	assert.Equal(t, float64(1), testutil.ToFloat64(versionGauge.WithLabelValues("test", "abc123", "sponsor")))
}
