package poolpm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/emperorhan/holder-gate/internal/chain"
)

const sourceName = "poolpm"

var policyPattern = regexp.MustCompile(`"policy":"([a-f0-9]+)"`)

// Holdings counts assets per policy by reading the pool.pm wallet page, where
// every held asset carries its policy id.
type Holdings struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

var _ chain.HoldingsLookup = (*Holdings)(nil)

func NewHoldings(baseURL string, timeout time.Duration, logger *slog.Logger) *Holdings {
	return &Holdings{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("source", sourceName),
	}
}

func (h *Holdings) Source() string {
	return sourceName
}

func (h *Holdings) AssetCounts(ctx context.Context, address string) (map[string]int, error) {
	page, err := chain.FetchPage(ctx, h.client, h.baseURL+"/"+url.PathEscape(address))
	if err != nil {
		return nil, fmt.Errorf("fetch wallet page: %w", err)
	}

	counts := ParseAssetCounts(page)
	h.logger.Debug("counted holdings", "address", address, "policies", len(counts))
	return counts, nil
}

// ParseAssetCounts counts occurrences of each policy id on a wallet page.
func ParseAssetCounts(page string) map[string]int {
	counts := make(map[string]int)
	for _, m := range policyPattern.FindAllStringSubmatch(page, -1) {
		counts[m[1]]++
	}
	return counts
}
