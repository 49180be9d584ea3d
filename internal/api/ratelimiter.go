package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// batchRequestCost is the number of tokens a batch allocation consumes; a
// single batch can fan out into many solves.
const batchRequestCost = 4

type rateLimiter interface {
	// Take consumes cost tokens. When the bucket cannot cover them nothing is
	// consumed and the wait until it could is returned.
	Take(cost int) (bool, time.Duration)
}

type limiterAdapter struct {
	limiter *rate.Limiter
}

func newTokenBucketLimiter(ratePerSecond float64, burst int) rateLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &limiterAdapter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

func (l *limiterAdapter) Take(cost int) (bool, time.Duration) {
	if l == nil || l.limiter == nil {
		return true, 0
	}
	if burst := l.limiter.Burst(); cost > burst {
		cost = burst
	}

	now := time.Now()
	reservation := l.limiter.ReserveN(now, cost)
	if !reservation.OK() {
		return false, time.Second
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func requestCost(r *http.Request) int {
	if r.Method == http.MethodPost && r.URL.Path == "/api/allocate/batch" {
		return batchRequestCost
	}
	return 1
}

// retryAfterSeconds rounds delay up to whole seconds, never below one.
func retryAfterSeconds(delay time.Duration) int {
	secs := int(math.Ceil(delay.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// rateLimitMiddleware rejects requests with 429 once the shared bucket cannot cover their cost.
func rateLimitMiddleware(limiter rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, delay := limiter.Take(requestCost(r))
		if ok {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(delay)))
		writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded, please retry shortly")
	})
}
