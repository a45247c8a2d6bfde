package admin

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleLimiterTTL is how long a per-client limiter may sit idle before Prune drops it.
const staleLimiterTTL = 10 * time.Minute

type endpointRule struct {
	method string // empty matches any method
	prefix string // empty matches any path
	rps    rate.Limit
	burst  int
}

func (r endpointRule) key() string { return r.method + ":" + r.prefix }

// defaultRules throttle the expensive operator actions hardest. The last
// rule is the catch-all.
var defaultRules = []endpointRule{
	{method: http.MethodPost, prefix: "/admin/v1/reconcile", rps: rate.Limit(1.0 / 60), burst: 2},
	{method: http.MethodPost, prefix: "/admin/v1/backup", rps: rate.Limit(1.0 / 300), burst: 1},
	{method: http.MethodPost, prefix: "/admin/v1/restore", rps: rate.Limit(1.0 / 300), burst: 1},
	{rps: 1, burst: 5},
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies a token bucket per endpoint rule and client IP.
type RateLimitMiddleware struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry // "rule|clientIP"
	rules    []endpointRule
	logger   *slog.Logger
	nowFunc  func() time.Time
}

func NewRateLimitMiddleware(logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiters: make(map[string]*limiterEntry),
		rules:    defaultRules,
		logger:   logger.With("component", "admin_ratelimit"),
		nowFunc:  time.Now,
	}
}

// Wrap rejects requests over their client's budget with 429.
func (rl *RateLimitMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		rule := rl.match(r.Method, r.URL.Path)

		if !rl.limiterFor(rule, clientIP).Allow() {
			w.Header().Set("Retry-After", "60")
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			rl.logger.Warn("admin API rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", clientIP,
			)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Len returns the number of tracked limiters.
func (rl *RateLimitMiddleware) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Prune drops limiters idle for longer than staleLimiterTTL.
func (rl *RateLimitMiddleware) Prune() int {
	now := rl.nowFunc()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > staleLimiterTTL {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// RunCleanup prunes on every tick until ctx is done.
func (rl *RateLimitMiddleware) RunCleanup(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rl.Prune()
		}
	}
}

func (rl *RateLimitMiddleware) match(method, path string) endpointRule {
	for _, rule := range rl.rules {
		if rule.method != "" && !strings.EqualFold(rule.method, method) {
			continue
		}
		if rule.prefix != "" && !strings.HasPrefix(path, rule.prefix) {
			continue
		}
		return rule
	}
	return endpointRule{rps: 1, burst: 5}
}

func (rl *RateLimitMiddleware) limiterFor(rule endpointRule, clientIP string) *rate.Limiter {
	key := rule.key() + "|" + clientIP
	now := rl.nowFunc()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if entry, ok := rl.limiters[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}
	entry := &limiterEntry{limiter: rate.NewLimiter(rule.rps, rule.burst), lastSeen: now}
	rl.limiters[key] = entry
	return entry.limiter
}

// extractClientIP prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the connection's remote address.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
