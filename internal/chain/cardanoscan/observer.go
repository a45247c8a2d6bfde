package cardanoscan

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
	"github.com/emperorhan/holder-gate/internal/domain/model"
)

const sourceName = "cardanoscan"

// Observer finds self-transfers by reading the CardanoScan address page.
// A self-transfer shows up as the address appearing twice (sender and
// receiver) followed by an ADA amount with four fraction digits; the first
// such row on the page is the most recent one.
type Observer struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

var _ chain.TransactionObserver = (*Observer)(nil)

func NewObserver(baseURL string, timeout time.Duration, logger *slog.Logger) *Observer {
	return &Observer{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("source", sourceName),
	}
}

func (o *Observer) Source() string {
	return sourceName
}

func (o *Observer) LatestSelfTransfer(ctx context.Context, address string) (model.Amount, bool, error) {
	page, err := chain.FetchPage(ctx, o.client, o.baseURL+"/address/"+url.PathEscape(address))
	if err != nil {
		return 0, false, fmt.Errorf("fetch address page: %w", err)
	}
	o.logger.Debug("fetched address page", "address", address, "bytes", len(page))

	amount, ok, err := ParseSelfTransfer(page, address)
	if err != nil {
		return 0, false, err
	}
	if ok {
		o.logger.Debug("self-transfer observed", "address", address, "amount", amount.String())
	}
	return amount, ok, nil
}

// ParseSelfTransfer extracts the first self-transfer amount for address from page.
func ParseSelfTransfer(page, address string) (model.Amount, bool, error) {
	if address == "" {
		return 0, false, nil
	}
	quoted := regexp.QuoteMeta(address)
	pattern, err := regexp.Compile(quoted + `.*?` + quoted + `.*?(\d+\.\d{4})\s*₳`)
	if err != nil {
		return 0, false, fmt.Errorf("compile self-transfer pattern: %w", err)
	}

	m := pattern.FindStringSubmatch(page)
	if m == nil {
		return 0, false, nil
	}
	amount, err := model.ParseAmount(m[1])
	if err != nil {
		return 0, false, fmt.Errorf("parse self-transfer amount: %w", err)
	}
	return amount, true, nil
}
