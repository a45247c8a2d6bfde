package chain

import (
	"context"
	"fmt"

	"github.com/emperorhan/holder-gate/internal/chain/ratelimit"
	"github.com/emperorhan/holder-gate/internal/circuitbreaker"
	"github.com/emperorhan/holder-gate/internal/domain/model"
)

const (
	methodLatestSelfTransfer = "latest_self_transfer"
	methodAssetCounts        = "asset_counts"
)

// GuardedObserver rate-limits and circuit-breaks a TransactionObserver.
type GuardedObserver struct {
	next    TransactionObserver
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.Breaker
}

var _ TransactionObserver = (*GuardedObserver)(nil)

func NewGuardedObserver(next TransactionObserver, limiter *ratelimit.Limiter, breaker *circuitbreaker.Breaker) *GuardedObserver {
	return &GuardedObserver{next: next, limiter: limiter, breaker: breaker}
}

func (g *GuardedObserver) Source() string { return g.next.Source() }

func (g *GuardedObserver) LatestSelfTransfer(ctx context.Context, address string) (model.Amount, bool, error) {
	var (
		amount model.Amount
		found  bool
	)
	err := guard(ctx, g.limiter, g.breaker, func() error {
		var err error
		amount, found, err = g.next.LatestSelfTransfer(ctx, address)
		return err
	})
	ratelimit.RecordCall(g.Source(), methodLatestSelfTransfer, err)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", g.Source(), err)
	}
	return amount, found, nil
}

// GuardedHoldings rate-limits and circuit-breaks a HoldingsLookup.
type GuardedHoldings struct {
	next    HoldingsLookup
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.Breaker
}

var _ HoldingsLookup = (*GuardedHoldings)(nil)

func NewGuardedHoldings(next HoldingsLookup, limiter *ratelimit.Limiter, breaker *circuitbreaker.Breaker) *GuardedHoldings {
	return &GuardedHoldings{next: next, limiter: limiter, breaker: breaker}
}

func (g *GuardedHoldings) Source() string { return g.next.Source() }

func (g *GuardedHoldings) AssetCounts(ctx context.Context, address string) (map[string]int, error) {
	var counts map[string]int
	err := guard(ctx, g.limiter, g.breaker, func() error {
		var err error
		counts, err = g.next.AssetCounts(ctx, address)
		return err
	})
	ratelimit.RecordCall(g.Source(), methodAssetCounts, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.Source(), err)
	}
	return counts, nil
}

// guard checks the breaker before waiting on the limiter so an open circuit
// does not consume tokens.
func guard(ctx context.Context, limiter *ratelimit.Limiter, breaker *circuitbreaker.Breaker, fn func() error) error {
	if breaker != nil {
		if err := breaker.Allow(); err != nil {
			return err
		}
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}
	err := fn()
	if breaker != nil {
		if err != nil && ctx.Err() == nil {
			breaker.RecordFailure()
		} else if err == nil {
			breaker.RecordSuccess()
		}
	}
	return err
}
