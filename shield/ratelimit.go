package shield

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig defines the rate limit for a single rule.
type RateLimitConfig struct {
	MaxRequests   int
	WindowSeconds int
}

type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// RateLimiter provides per-IP fixed-window rate limiting. Rules are keyed by
// path prefix and checked longest-prefix-first; requests with no matching
// rule pass through. Expired buckets are garbage collected periodically.
type RateLimiter struct {
	rules   []rule // sorted by prefix length, longest first
	buckets sync.Map
	exclude []string // path prefixes never rate limited
}

type rule struct {
	prefix string
	cfg    RateLimitConfig
}

// NewRateLimiter creates a rate limiter from a prefix → config map.
// Call StartGC to enable periodic bucket cleanup.
func NewRateLimiter(rules map[string]RateLimitConfig, excludePrefixes ...string) *RateLimiter {
	rl := &RateLimiter{exclude: excludePrefixes}
	for p, c := range rules {
		rl.rules = append(rl.rules, rule{prefix: p, cfg: c})
	}
	// Longest prefix first so /api/documents wins over /api.
	for i := 0; i < len(rl.rules); i++ {
		for j := i + 1; j < len(rl.rules); j++ {
			if len(rl.rules[j].prefix) > len(rl.rules[i].prefix) {
				rl.rules[i], rl.rules[j] = rl.rules[j], rl.rules[i]
			}
		}
	}
	return rl
}

// StartGC starts a background goroutine that drops expired buckets every
// five minutes. Stops when done is closed.
func (rl *RateLimiter) StartGC(done <-chan struct{}) {
	tick := time.NewTicker(5 * time.Minute)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				rl.gc()
			}
		}
	}()
}

func (rl *RateLimiter) gc() {
	now := time.Now()
	rl.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		expired := now.After(b.resetAt)
		b.mu.Unlock()
		if expired {
			rl.buckets.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiter) match(path string) (RateLimitConfig, bool) {
	for _, r := range rl.rules {
		if strings.HasPrefix(path, r.prefix) {
			return r.cfg, true
		}
	}
	return RateLimitConfig{}, false
}

func (rl *RateLimiter) allow(ip, path string) bool {
	cfg, ok := rl.match(path)
	if !ok || cfg.MaxRequests <= 0 {
		return true
	}

	key := ip + ":" + path
	now := time.Now()

	val, loaded := rl.buckets.LoadOrStore(key, &bucket{
		count:   1,
		resetAt: now.Add(time.Duration(cfg.WindowSeconds) * time.Second),
	})
	if !loaded {
		return true
	}

	b := val.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	if now.After(b.resetAt) {
		b.count = 1
		b.resetAt = now.Add(time.Duration(cfg.WindowSeconds) * time.Second)
		return true
	}
	b.count++
	return b.count <= cfg.MaxRequests
}

// Middleware is the HTTP middleware that enforces rate limits.
// Blocked requests get a 429 JSON response with a Retry-After header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range rl.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		ip := ExtractIP(r)
		if rl.allow(ip, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		slog.Warn("ratelimit: request blocked", "ip", ip, "path", r.URL.Path)

		w.Header().Set("Retry-After", "60")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "rate limit exceeded",
		})
	})
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
