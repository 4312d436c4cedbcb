package auth

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"postfolio/internal/httpx"
)

// LoginRateLimiter caps login attempts per client ip over a sliding window:
// an attempt is allowed when fewer than maxHits attempts fall inside the
// window ending now.
type LoginRateLimiter struct {
	mu        sync.Mutex
	maxHits   int
	window    time.Duration
	hitsByIP  map[string][]time.Time
	maxMemory int
	now       func() time.Time
}

func NewLoginRateLimiter(maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		maxHits:   maxHits,
		window:    window,
		hitsByIP:  make(map[string][]time.Time),
		maxMemory: 5000,
		now:       time.Now,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.allow(httpx.ClientIP(r), l.now().UTC())
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			httpx.WriteMessage(w, http.StatusTooManyRequests, "Too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.hitsByIP[ip]
	recent := make([]time.Time, 0, len(hits)+1)
	for _, hit := range hits {
		if hit.After(threshold) {
			recent = append(recent, hit)
		}
	}

	if len(recent) >= l.maxHits {
		retryAfter := max(recent[0].Add(l.window).Sub(now), time.Second)
		l.hitsByIP[ip] = recent
		return false, retryAfter
	}

	l.hitsByIP[ip] = append(recent, now)

	if len(l.hitsByIP) > l.maxMemory {
		for key, value := range l.hitsByIP {
			if len(value) == 0 || value[len(value)-1].Before(threshold) {
				delete(l.hitsByIP, key)
			}
		}
	}

	return true, 0
}
