package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.HypergraphCreated()
	c.AddedHyperedges(3)
	c.RemovedHyperedge()
	c.StreamStarted(KindGenerate)(nil)

	h := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestStreamStarted_RecordsOutcome(t *testing.T) {
	c := NewCollector("test")

	done := c.StreamStarted(KindWormhole)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ActiveStreams))
	done(errors.New("boom"))

	assert.Equal(t, 0.0, testutil.ToFloat64(c.ActiveStreams))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Generations.WithLabelValues(KindWormhole, "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.Generations.WithLabelValues(KindWormhole, "ok")))
}

func TestCounters(t *testing.T) {
	c := NewCollector("test")
	c.HypergraphCreated()
	c.AddedHyperedges(2)
	c.AddedHyperedges(0)
	c.RemovedHyperedge()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.HypergraphsCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.HyperedgesAdded))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HyperedgesRemoved))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	c := NewCollector("test")
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/metrics", c.Handler().ServeHTTP)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/items/42", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/api/items/{id}", "404")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.True(t, strings.Contains(string(body), `test_http_requests_total{method="GET",route="/api/items/{id}",status="404"} 1`))
}
