package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type staticLimiter struct {
	allow bool
	delay time.Duration
	costs []int
}

func (s *staticLimiter) Take(cost int) (bool, time.Duration) {
	s.costs = append(s.costs, cost)
	if s.allow {
		return true, 0
	}
	return false, s.delay
}

func TestRateLimitMiddlewareBlocksWhenLimiterDenies(t *testing.T) {
	middleware := rateLimitMiddleware(&staticLimiter{allow: false, delay: 2500 * time.Millisecond}, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler should not execute when rate limited")
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/allocate", nil)
	middleware.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "3" {
		t.Fatalf("expected Retry-After 3, got %q", got)
	}
}

func TestRateLimitMiddlewarePassesWhenLimiterAllows(t *testing.T) {
	var called bool
	middleware := rateLimitMiddleware(&staticLimiter{allow: true}, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	middleware.ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to execute when limiter allows")
	}
}

func TestRateLimitMiddlewareChargesBatchRequests(t *testing.T) {
	limiter := &staticLimiter{allow: true}
	middleware := rateLimitMiddleware(limiter, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	middleware.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/allocate", nil))
	middleware.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/allocate/batch", nil))
	middleware.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/channels", nil))

	want := []int{1, batchRequestCost, 1}
	if len(limiter.costs) != len(want) {
		t.Fatalf("expected %d limiter calls, got %v", len(want), limiter.costs)
	}
	for i := range want {
		if limiter.costs[i] != want[i] {
			t.Fatalf("expected costs %v, got %v", want, limiter.costs)
		}
	}
}

func TestRateLimitMiddlewareWithoutLimiter(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	if got := rateLimitMiddleware(nil, next); got == nil {
		t.Fatalf("expected next handler to be returned")
	}
}

func TestNewTokenBucketLimiterUsesDefaults(t *testing.T) {
	limiter := newTokenBucketLimiter(0, 0)
	if limiter == nil {
		t.Fatalf("expected limiter instance")
	}
	if ok, _ := limiter.Take(1); !ok {
		t.Fatalf("expected first request to be allowed")
	}
}

func TestTokenBucketLimiterReportsWait(t *testing.T) {
	limiter := newTokenBucketLimiter(0.5, 1)

	if ok, _ := limiter.Take(1); !ok {
		t.Fatalf("expected first request to be allowed")
	}
	ok, delay := limiter.Take(1)
	if ok {
		t.Fatalf("expected second request to be rejected")
	}
	if got := retryAfterSeconds(delay); got != 2 {
		t.Fatalf("expected a 2s retry hint, got %d (delay %s)", got, delay)
	}
}

func TestTokenBucketLimiterCapsCostAtBurst(t *testing.T) {
	limiter := newTokenBucketLimiter(1, 2)

	if ok, _ := limiter.Take(batchRequestCost); !ok {
		t.Fatalf("expected a cost above burst to drain the full bucket")
	}
	if ok, _ := limiter.Take(1); ok {
		t.Fatalf("expected the bucket to be empty")
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		delay time.Duration
		want  int
	}{
		{0, 1},
		{200 * time.Millisecond, 1},
		{time.Second, 1},
		{1001 * time.Millisecond, 2},
		{4 * time.Second, 4},
	}
	for _, tc := range tests {
		if got := retryAfterSeconds(tc.delay); got != tc.want {
			t.Errorf("retryAfterSeconds(%s) = %d, want %d", tc.delay, got, tc.want)
		}
	}
}
