package verification

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/emperorhan/holder-gate/internal/chain"
	"github.com/emperorhan/holder-gate/internal/challenge"
	"github.com/emperorhan/holder-gate/internal/domain/model"
	"github.com/emperorhan/holder-gate/internal/metrics"
	"github.com/emperorhan/holder-gate/internal/reconciliation"
	"github.com/emperorhan/holder-gate/internal/store"
	"github.com/emperorhan/holder-gate/internal/tracing"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimeout       = 10 * time.Minute
	DefaultPollInterval  = 30 * time.Second
	defaultLookupTimeout = 20 * time.Second
)

// Reconciler applies the role diff for a freshly verified holder.
type Reconciler interface {
	Reconcile(ctx context.Context, identity, guildID string) (*reconciliation.Result, error)
}

// HoldingsCache forgets the cached holdings of an address.
type HoldingsCache interface {
	Invalidate(address string)
}

// Outcome is how a polled attempt resolved.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeMatched Outcome = "matched"
	OutcomeExpired Outcome = "expired"
)

// PollResult summarizes one poll tick.
type PollResult struct {
	Checked int
	Matched int
	Expired int
	Errors  int
}

// Queue tracks pending ownership challenges, one per identity, and resolves
// them by polling the chain for a self-transfer of exactly the challenge amount.
type Queue struct {
	mu       sync.Mutex
	attempts map[string]model.VerificationAttempt

	observer   chain.TransactionObserver
	holders    store.HolderRepository
	reconciler Reconciler
	cache      HoldingsCache
	generator  *challenge.Generator
	logger     *slog.Logger
	nowFunc    func() time.Time

	timeout       time.Duration
	lookupTimeout time.Duration
	workers       int
}

// Config holds queue tuning. Zero values take the defaults.
type Config struct {
	Timeout       time.Duration
	LookupTimeout time.Duration
	Workers       int
	// Cache, when set, drops a wallet's cached holdings once it verifies so
	// the first reconcile reads fresh counts.
	Cache HoldingsCache
}

func NewQueue(
	cfg Config,
	observer chain.TransactionObserver,
	holders store.HolderRepository,
	reconciler Reconciler,
	generator *challenge.Generator,
	logger *slog.Logger,
) *Queue {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = defaultLookupTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if generator == nil {
		generator = challenge.NewGenerator()
	}
	return &Queue{
		attempts:      make(map[string]model.VerificationAttempt),
		observer:      observer,
		holders:       holders,
		reconciler:    reconciler,
		cache:         cfg.Cache,
		generator:     generator,
		logger:        logger.With("component", "verification"),
		nowFunc:       time.Now,
		timeout:       cfg.Timeout,
		lookupTimeout: cfg.LookupTimeout,
		workers:       cfg.Workers,
	}
}

// Timeout is how long an attempt stays pending.
func (q *Queue) Timeout() time.Duration {
	return q.timeout
}

// Start issues a new challenge for identity, replacing any attempt it
// already has pending.
func (q *Queue) Start(identity, guildID, address string) model.VerificationAttempt {
	a := model.VerificationAttempt{
		Identity:  identity,
		GuildID:   guildID,
		Address:   address,
		Challenge: q.generator.Generate(),
		CreatedAt: q.nowFunc(),
	}

	q.mu.Lock()
	_, replaced := q.attempts[identity]
	q.attempts[identity] = a
	metrics.VerificationPending.Set(float64(len(q.attempts)))
	q.mu.Unlock()

	metrics.VerificationAttemptsStarted.Inc()
	q.logger.Info("verification started",
		"identity", identity, "guild", guildID, "address", address,
		"challenge", a.Challenge.String(), "replaced", replaced,
	)
	return a
}

// Get returns the pending attempt of identity.
func (q *Queue) Get(identity string) (model.VerificationAttempt, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	a, ok := q.attempts[identity]
	return a, ok
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.attempts)
}

// Poll evaluates every pending attempt once. Attempts are checked
// independently; a failed lookup counts as no match for this tick.
func (q *Queue) Poll(ctx context.Context) PollResult {
	ctx, span := tracing.Start(ctx, "verification", "poll")
	defer span.End()

	start := q.nowFunc()
	pending := q.snapshot()

	var (
		mu     sync.Mutex
		result PollResult
	)
	record := func(o Outcome, failed bool) {
		mu.Lock()
		defer mu.Unlock()
		switch o {
		case OutcomeMatched:
			result.Matched++
		case OutcomeExpired:
			result.Expired++
		}
		if failed {
			result.Errors++
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(q.workers)
	for _, a := range pending {
		if !start.Before(a.ExpiresAt(q.timeout)) {
			if q.removeIf(a) {
				metrics.VerificationAttemptsResolved.WithLabelValues(string(OutcomeExpired)).Inc()
				q.logger.Info("verification expired", "identity", a.Identity, "address", a.Address)
				record(OutcomeExpired, false)
			}
			continue
		}

		result.Checked++
		g.Go(func() error {
			o, err := q.check(ctx, a)
			record(o, err != nil)
			return nil
		})
	}
	_ = g.Wait()

	metrics.VerificationPollLatency.Observe(q.nowFunc().Sub(start).Seconds())
	if len(pending) > 0 {
		q.logger.Debug("verification poll completed",
			"pending", len(pending), "checked", result.Checked,
			"matched", result.Matched, "expired", result.Expired, "errors", result.Errors,
		)
	}
	return result
}

func (q *Queue) check(ctx context.Context, a model.VerificationAttempt) (Outcome, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, q.lookupTimeout)
	defer cancel()

	observed, ok, err := q.observer.LatestSelfTransfer(lookupCtx, a.Address)
	if err != nil {
		metrics.VerificationLookupErrors.Inc()
		q.logger.Warn("self-transfer lookup failed", "identity", a.Identity, "address", a.Address, "error", err)
		return OutcomePending, err
	}
	if !ok || observed != a.Challenge {
		return OutcomePending, nil
	}

	// A newer /verify may have replaced the attempt while we were looking.
	if !q.removeIf(a) {
		return OutcomePending, nil
	}
	metrics.VerificationAttemptsResolved.WithLabelValues(string(OutcomeMatched)).Inc()

	q.holders.Put(model.NewVerifiedHolder(a.Identity, a.Address, q.nowFunc()))
	if q.cache != nil {
		q.cache.Invalidate(a.Address)
	}
	q.logger.Info("wallet verified", "identity", a.Identity, "guild", a.GuildID, "address", a.Address)

	if q.reconciler != nil {
		recCtx, cancel := context.WithTimeout(ctx, q.lookupTimeout)
		defer cancel()
		if _, err := q.reconciler.Reconcile(recCtx, a.Identity, a.GuildID); err != nil {
			q.logger.Warn("post-verification reconcile failed", "identity", a.Identity, "guild", a.GuildID, "error", err)
		}
	}
	return OutcomeMatched, nil
}

func (q *Queue) snapshot() []model.VerificationAttempt {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.VerificationAttempt, 0, len(q.attempts))
	for _, a := range q.attempts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// removeIf deletes the attempt of a.Identity only if it is still a.
func (q *Queue) removeIf(a model.VerificationAttempt) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	cur, ok := q.attempts[a.Identity]
	if !ok || cur != a {
		return false
	}
	delete(q.attempts, a.Identity)
	metrics.VerificationPending.Set(float64(len(q.attempts)))
	return true
}

// RunPeriodic polls the queue at interval until ctx is cancelled.
func (q *Queue) RunPeriodic(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	q.logger.Info("verification polling started", "interval", interval, "timeout", q.timeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("verification polling stopping")
			return ctx.Err()
		case <-ticker.C:
			q.Poll(ctx)
		}
	}
}
