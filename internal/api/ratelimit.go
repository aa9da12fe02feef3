package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Default per-IP budgets per minute
const (
	DefaultGlobalLimit = 100
	DefaultFeedLimit   = 30
)

// RateLimiter admits at most Limit requests per key within any
// Window-long span.
type RateLimiter struct {
	limit   int
	window  time.Duration
	keyFunc func(r *http.Request) string
	now     func() time.Time

	mu      sync.Mutex
	clients map[string]*clientWindow

	stopCh   chan struct{}
	stopOnce sync.Once
}

// clientWindow holds one key's admitted request times, oldest first
type clientWindow struct {
	mu   sync.Mutex
	hits []time.Time
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Limit   int           // Max requests per window
	Window  time.Duration // Time window
	KeyFunc func(r *http.Request) string
}

// NewRateLimiter creates a limiter and starts its sweep goroutine. Call
// Stop to release it.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = GetClientIP
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	rl := &RateLimiter{
		limit:   cfg.Limit,
		window:  cfg.Window,
		keyFunc: cfg.KeyFunc,
		now:     time.Now,
		clients: make(map[string]*clientWindow),
		stopCh:  make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stopCh:
			return
		}
	}
}

// sweep forgets clients with no hits left in the window
func (rl *RateLimiter) sweep() {
	cutoff := rl.now().Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, cw := range rl.clients {
		cw.mu.Lock()
		cw.evict(cutoff)
		idle := len(cw.hits) == 0
		cw.mu.Unlock()
		if idle {
			delete(rl.clients, key)
		}
	}
}

// Stop ends the sweep goroutine. Safe to call multiple times.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}

// Allow records the request and reports whether it is within the limit
func (rl *RateLimiter) Allow(r *http.Request) bool {
	ok, _ := rl.reserve(r)
	return ok
}

// reserve admits the request or reports how long until its key's oldest
// hit leaves the window.
func (rl *RateLimiter) reserve(r *http.Request) (bool, time.Duration) {
	key := rl.keyFunc(r)

	rl.mu.Lock()
	cw := rl.clients[key]
	if cw == nil {
		cw = &clientWindow{}
		rl.clients[key] = cw
	}
	rl.mu.Unlock()

	return cw.admit(rl.now(), rl.limit, rl.window)
}

func (cw *clientWindow) admit(now time.Time, limit int, window time.Duration) (bool, time.Duration) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.evict(now.Add(-window))
	if len(cw.hits) >= limit {
		if len(cw.hits) == 0 {
			return false, window
		}
		return false, cw.hits[0].Add(window).Sub(now)
	}
	cw.hits = append(cw.hits, now)
	return true, 0
}

// evict drops hits older than cutoff. Caller holds cw.mu.
func (cw *clientWindow) evict(cutoff time.Time) {
	n := 0
	for n < len(cw.hits) && cw.hits[n].Before(cutoff) {
		n++
	}
	cw.hits = cw.hits[n:]
}

// Middleware rejects requests over the limit with 429, a Retry-After in
// whole seconds and a JSON body.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.reserve(r)
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			respondError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(wait time.Duration) int {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// GetClientIP extracts the client IP from a request.
// chi middleware.RealIP already sets r.RemoteAddr from X-Real-IP / X-Forwarded-For,
// so only the port is stripped here. Re-reading those headers would let a
// client spoof its way around per-IP limits.
func GetClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr may not have a port (e.g. unix socket)
		return r.RemoteAddr
	}
	return host
}

// RateLimiters holds all rate limiters for the application
type RateLimiters struct {
	Global *RateLimiter
	Feed   *RateLimiter
}

// NewRateLimiters creates the per-minute limiters. Non-positive budgets use
// the defaults.
func NewRateLimiters(global, feed int) *RateLimiters {
	if global <= 0 {
		global = DefaultGlobalLimit
	}
	if feed <= 0 {
		feed = DefaultFeedLimit
	}
	return &RateLimiters{
		Global: NewRateLimiter(RateLimitConfig{Limit: global, Window: time.Minute}),
		// Feed paging fans out to the database and Discord on cache misses
		Feed: NewRateLimiter(RateLimitConfig{Limit: feed, Window: time.Minute}),
	}
}

// Stop stops all rate limiter sweep goroutines
func (rls *RateLimiters) Stop() {
	rls.Global.Stop()
	rls.Feed.Stop()
}
