package cooldown

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/emperorhan/holder-gate/internal/metrics"
	"golang.org/x/time/rate"
)

// DefaultWindow is the minimum spacing between accepted verify requests of one identity.
const DefaultWindow = 5 * time.Minute

// staleFactor multiplies the window to decide when an idle record can be dropped.
const staleFactor = 2

type record struct {
	limiter     *rate.Limiter
	lastAttempt time.Time
}

// Limiter gates verification requests per identity. Each identity owns a
// single-token bucket refilled once per window, so a request is accepted only
// when a full window has passed since the last accepted one. Rejections leave
// the record untouched.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	records map[string]*record
	logger  *slog.Logger
	nowFunc func() time.Time // injectable clock for testing
}

// NewLimiter creates a cool-down gate. A non-positive window uses DefaultWindow.
func NewLimiter(window time.Duration, logger *slog.Logger) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		window:  window,
		records: make(map[string]*record),
		logger:  logger.With("component", "cooldown"),
		nowFunc: time.Now,
	}
}

// TryAcquire reports whether identity may start a verification now, and
// records the attempt when it may.
func (l *Limiter) TryAcquire(identity string) bool {
	now := l.nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[identity]
	if !ok {
		rec = &record{limiter: rate.NewLimiter(rate.Every(l.window), 1)}
	}
	if !rec.limiter.AllowN(now, 1) {
		metrics.CooldownRejections.Inc()
		return false
	}

	rec.lastAttempt = now
	if !ok {
		l.records[identity] = rec
		metrics.CooldownRecords.Set(float64(len(l.records)))
	}
	return true
}

// Window returns the configured cool-down window.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Len returns the number of tracked identities.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Prune drops identities whose last accepted attempt is older than twice the
// window. Such records could never reject a request, so dropping them is
// invisible to callers. Returns the number removed.
func (l *Limiter) Prune() int {
	now := l.nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for identity, rec := range l.records {
		if now.Sub(rec.lastAttempt) > staleFactor*l.window {
			delete(l.records, identity)
			removed++
		}
	}
	metrics.CooldownRecords.Set(float64(len(l.records)))
	return removed
}

// RunCleanup prunes stale records every interval until ctx is cancelled.
func (l *Limiter) RunCleanup(ctx context.Context, interval time.Duration) error {
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
			if n := l.Prune(); n > 0 {
				l.logger.Debug("pruned cool-down records", "removed", n)
			}
		}
	}
}
