package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSolve(t *testing.T) {
	m := New()
	m.ObserveSolve("optimal", time.Millisecond)
	m.ObserveSolve("optimal", time.Millisecond)
	m.ObserveSolve("infeasible", time.Millisecond)

	if got := testutil.ToFloat64(m.solvesTotal.WithLabelValues("optimal")); got != 2 {
		t.Fatalf("expected 2 optimal solves, got %v", got)
	}
	if got := testutil.ToFloat64(m.solvesTotal.WithLabelValues("infeasible")); got != 1 {
		t.Fatalf("expected 1 infeasible solve, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSolve("optimal", time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/api/health", http.StatusOK, time.Millisecond)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodPost, "POST /api/allocate", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `http_requests_total{method="POST",path="POST /api/allocate",status="200"} 1`) {
		t.Fatalf("expected request counter in exposition, got:\n%s", rec.Body.String())
	}
}
