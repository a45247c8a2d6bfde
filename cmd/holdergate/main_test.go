package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/emperorhan/holder-gate/internal/alert"
	"github.com/emperorhan/holder-gate/internal/chain"
	"github.com/emperorhan/holder-gate/internal/circuitbreaker"
	"github.com/emperorhan/holder-gate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingAlerter struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (c *capturingAlerter) Send(_ context.Context, a alert.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
	return nil
}

func (c *capturingAlerter) snapshot() []alert.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]alert.Alert(nil), c.alerts...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestBuildAlerter(t *testing.T) {
	assert.IsType(t, &alert.NoopAlerter{}, buildAlerter(config.AlertConfig{}, discardLogger()))

	a := buildAlerter(config.AlertConfig{
		SlackWebhookURL: "https://hooks.slack.example/x",
		Cooldown:        time.Minute,
	}, discardLogger())
	assert.IsType(t, &alert.MultiAlerter{}, a)
}

func TestBreakerAlerts(t *testing.T) {
	sink := &capturingAlerter{}
	notify := breakerAlerts("poolpm", sink, discardLogger())

	notify(circuitbreaker.StateClosed, circuitbreaker.StateOpen)
	notify(circuitbreaker.StateOpen, circuitbreaker.StateHalfOpen)
	notify(circuitbreaker.StateHalfOpen, circuitbreaker.StateClosed)

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 5*time.Millisecond)

	types := map[alert.AlertType]bool{}
	for _, a := range sink.snapshot() {
		types[a.Type] = true
		assert.Equal(t, "poolpm", a.Fields["source"])
	}
	assert.True(t, types[alert.AlertTypeSourceDown])
	assert.True(t, types[alert.AlertTypeRecovery])
}

func TestBuildChainSources(t *testing.T) {
	cfg := config.ChainConfig{
		CardanoScanURL:      "https://scan.example",
		PoolPMURL:           "https://pm.example",
		HTTPTimeout:         time.Second,
		RPS:                 1,
		Burst:               1,
		HoldingsCacheTTL:    time.Minute,
		HoldingsCacheSize:   8,
		BreakerFailures:     3,
		BreakerOpenDuration: time.Minute,
	}

	observer, holdings := buildChainSources(cfg, &alert.NoopAlerter{}, discardLogger())
	assert.Equal(t, "cardanoscan", observer.Source())
	assert.Equal(t, "poolpm", holdings.Source())
	assert.IsType(t, &chain.CachedHoldings{}, holdings)
}

func TestHealthMux(t *testing.T) {
	mux := newHealthMux(discardLogger())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
