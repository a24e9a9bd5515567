package httptransport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/internal/platform/metrics"
	"verigate/pkg/platform/middleware/device"
	"verigate/pkg/requestcontext"
)

type echoRoutes struct{}

func (echoRoutes) Register(r chi.Router) {
	r.Get("/echo", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		w.Header().Set("X-Request-ID", requestcontext.RequestID(ctx))
		w.Header().Set("X-Device", device.FromContext(ctx).Label)
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
}

func newTestRouter(health map[string]HealthCheck) http.Handler {
	reg := prometheus.NewRegistry()
	return NewRouter(Deps{
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Health:   health,
		Routes:   []Registrar{echoRoutes{}},
	})
}

func TestRouterPopulatesRequestContext(t *testing.T) {
	router := newTestRouter(nil)
	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Contains(t, w.Header().Get("X-Device"), "Chrome on ")
}

func TestRouterRecoversPanics(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		health map[string]HealthCheck
		status int
		body   string
	}{
		{name: "no dependencies", status: http.StatusOK, body: `"status":"ok"`},
		{
			name:   "healthy redis",
			health: map[string]HealthCheck{"redis": func(context.Context) error { return nil }},
			status: http.StatusOK,
			body:   `"redis":"ok"`,
		},
		{
			name:   "unreachable redis",
			health: map[string]HealthCheck{"redis": func(context.Context) error { return errors.New("connection refused") }},
			status: http.StatusServiceUnavailable,
			body:   `"status":"degraded"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newTestRouter(tt.health).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(nil)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/echo", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `verigate_http_requests_total{code="200",method="GET",route="/echo"} 1`)
}
