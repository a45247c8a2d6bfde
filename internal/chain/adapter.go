package chain

//go:generate mockgen -source=adapter.go -destination=mocks/mock_chain.go -package=mocks

import (
	"context"

	"github.com/emperorhan/holder-gate/internal/domain/model"
)

// TransactionObserver reports the most recent transfer an address sent to itself.
type TransactionObserver interface {
	// Source returns the data source identifier (e.g., "cardanoscan").
	Source() string

	// LatestSelfTransfer returns the amount of the most recent self-transfer
	// observed at address. ok is false when none is visible yet.
	LatestSelfTransfer(ctx context.Context, address string) (amount model.Amount, ok bool, err error)
}

// HoldingsLookup reports how many assets an address holds under each policy key.
type HoldingsLookup interface {
	// Source returns the data source identifier (e.g., "poolpm").
	Source() string

	// AssetCounts returns policy key -> asset count. Policies with no assets
	// are absent from the map.
	AssetCounts(ctx context.Context, address string) (map[string]int, error)
}
