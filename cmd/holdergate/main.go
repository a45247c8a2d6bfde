package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emperorhan/holder-gate/internal/admin"
	"github.com/emperorhan/holder-gate/internal/alert"
	"github.com/emperorhan/holder-gate/internal/backup"
	"github.com/emperorhan/holder-gate/internal/bot"
	"github.com/emperorhan/holder-gate/internal/chain"
	"github.com/emperorhan/holder-gate/internal/chain/cardanoscan"
	"github.com/emperorhan/holder-gate/internal/chain/poolpm"
	"github.com/emperorhan/holder-gate/internal/chain/ratelimit"
	"github.com/emperorhan/holder-gate/internal/challenge"
	"github.com/emperorhan/holder-gate/internal/circuitbreaker"
	"github.com/emperorhan/holder-gate/internal/config"
	"github.com/emperorhan/holder-gate/internal/cooldown"
	"github.com/emperorhan/holder-gate/internal/discord"
	"github.com/emperorhan/holder-gate/internal/reconciliation"
	"github.com/emperorhan/holder-gate/internal/setup"
	"github.com/emperorhan/holder-gate/internal/store/memory"
	"github.com/emperorhan/holder-gate/internal/tier"
	"github.com/emperorhan/holder-gate/internal/tracing"
	"github.com/emperorhan/holder-gate/internal/verification"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const serviceName = "holder-gate"

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func buildAlerter(cfg config.AlertConfig, logger *slog.Logger) alert.Alerter {
	var sinks []alert.Alerter
	if cfg.SlackWebhookURL != "" {
		sinks = append(sinks, alert.NewSlackAlerter(cfg.SlackWebhookURL))
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, alert.NewWebhookAlerter(cfg.WebhookURL))
	}
	if len(sinks) == 0 {
		return &alert.NoopAlerter{}
	}
	return alert.NewMultiAlerter(cfg.Cooldown, logger, sinks...)
}

// breakerAlerts reports a chain source going down and coming back. The
// breaker calls it while holding its lock, so delivery is asynchronous.
func breakerAlerts(source string, alerter alert.Alerter, logger *slog.Logger) func(from, to circuitbreaker.State) {
	return func(from, to circuitbreaker.State) {
		logger.Warn("source breaker state changed", "source", source, "from", from.String(), "to", to.String())

		var a alert.Alert
		switch to {
		case circuitbreaker.StateOpen:
			a = alert.Alert{
				Type:    alert.AlertTypeSourceDown,
				Title:   fmt.Sprintf("%s unavailable", source),
				Message: "Chain data lookups are failing; calls are paused until the source recovers.",
				Fields:  map[string]string{"source": source},
			}
		case circuitbreaker.StateClosed:
			a = alert.Alert{
				Type:    alert.AlertTypeRecovery,
				Title:   fmt.Sprintf("%s recovered", source),
				Message: "Chain data lookups are succeeding again.",
				Fields:  map[string]string{"source": source},
			}
		default:
			return
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := alerter.Send(ctx, a); err != nil {
				logger.Warn("failed to send source alert", "source", source, "error", err)
			}
		}()
	}
}

func buildChainSources(cfg config.ChainConfig, alerter alert.Alerter, logger *slog.Logger) (chain.TransactionObserver, *chain.CachedHoldings) {
	newBreaker := func(source string) *circuitbreaker.Breaker {
		return circuitbreaker.New(circuitbreaker.Config{
			Name:             source,
			FailureThreshold: cfg.BreakerFailures,
			OpenTimeout:      cfg.BreakerOpenDuration,
			OnStateChange:    breakerAlerts(source, alerter, logger),
		})
	}

	scan := cardanoscan.NewObserver(cfg.CardanoScanURL, cfg.HTTPTimeout, logger)
	observer := chain.NewGuardedObserver(scan,
		ratelimit.NewLimiter(cfg.RPS, cfg.Burst, scan.Source()),
		newBreaker(scan.Source()))

	pm := poolpm.NewHoldings(cfg.PoolPMURL, cfg.HTTPTimeout, logger)
	guarded := chain.NewGuardedHoldings(pm,
		ratelimit.NewLimiter(cfg.RPS, cfg.Burst, pm.Source()),
		newBreaker(pm.Source()))
	holdings := chain.NewCachedHoldings(guarded, cfg.HoldingsCacheSize, cfg.HoldingsCacheTTL)

	return observer, holdings
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	logger.Info("starting holder-gate",
		"cardanoscan_url", cfg.Chain.CardanoScanURL,
		"poolpm_url", cfg.Chain.PoolPMURL,
		"command_guild", cfg.Discord.CommandGuildID,
		"verify_timeout", cfg.Verification.Timeout,
		"reconcile_interval", cfg.Reconcile.Interval,
		"backup_interval", cfg.Backup.Interval,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, serviceName, cfg.Tracing.Endpoint, cfg.Tracing.Insecure, cfg.Tracing.SampleRatio)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	alerter := buildAlerter(cfg.Alert, logger)
	observer, holdings := buildChainSources(cfg.Chain, alerter, logger)

	configs := memory.NewGuildConfigRepo()
	holders := memory.NewHolderRepo()
	pending := memory.NewPendingSetupRepo()

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		logger.Error("failed to create discord session", "error", err)
		os.Exit(1)
	}
	platform := discord.NewPlatform(session)
	policy := tier.NewPolicy(nil)

	reconciler := reconciliation.NewService(configs, holders, platform, holdings, policy, alerter, logger,
		reconciliation.WithWorkers(cfg.Reconcile.WorkerConcurrency),
		reconciliation.WithUnitTimeout(cfg.Reconcile.UnitTimeout),
	)
	queue := verification.NewQueue(verification.Config{
		Timeout:       cfg.Verification.Timeout,
		LookupTimeout: cfg.Verification.LookupTimeout,
		Workers:       cfg.Verification.WorkerConcurrency,
		Cache:         holdings,
	}, observer, holders, reconciler, challenge.NewGenerator(), logger)
	wizard := setup.NewWizard(pending, configs, cfg.Setup.SessionTTL, logger)
	limiter := cooldown.NewLimiter(cfg.Verification.RateLimitWindow, logger)
	dumper := backup.NewDumper(configs, holders, platform, platform, alerter, logger)
	restorer := backup.NewRestorer(platform, holders, logger)

	handler := bot.NewHandler(bot.Deps{
		Wizard:        wizard,
		Cooldown:      limiter,
		Queue:         queue,
		Configs:       configs,
		Restorer:      restorer,
		Roles:         platform,
		Policy:        policy,
		AddressPrefix: cfg.Verification.AddressPrefix,
		Ticker:        cfg.Verification.Ticker,
	}, logger)

	gateway := discord.New(session, cfg.Discord.CommandGuildID, handler, logger)
	if err := gateway.Open(); err != nil {
		logger.Error("failed to connect to discord", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := gateway.Close(); err != nil {
			logger.Warn("discord close error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// Health check server
	g.Go(func() error {
		return runHealthServer(gCtx, cfg.Server.HealthPort, logger)
	})

	g.Go(func() error {
		return queue.RunPeriodic(gCtx, cfg.Verification.PollInterval)
	})
	g.Go(func() error {
		return reconciler.RunPeriodic(gCtx, cfg.Reconcile.Interval)
	})
	g.Go(func() error {
		return dumper.RunPeriodic(gCtx, cfg.Backup.Interval)
	})
	g.Go(func() error {
		return limiter.RunCleanup(gCtx, cfg.Setup.MaintenanceInterval)
	})
	g.Go(func() error {
		return wizard.RunCleanup(gCtx, cfg.Setup.MaintenanceInterval)
	})

	if cfg.Admin.Port != 0 {
		adminServer := admin.NewServer(configs, holders, logger,
			admin.WithReconciler(reconciler),
			admin.WithBackupRunner(dumper),
			admin.WithRestorer(restorer),
			admin.WithPendingCounter(queue),
			admin.WithBasicAuth(cfg.Admin.Username, cfg.Admin.Password),
		)
		limits := admin.NewRateLimitMiddleware(logger)
		g.Go(func() error {
			return limits.RunCleanup(gCtx, cfg.Setup.MaintenanceInterval)
		})
		g.Go(func() error {
			return runAdminServer(gCtx, cfg.Admin.Port, admin.AuditMiddleware(logger, limits.Wrap(adminServer.Handler())), logger)
		})
	}

	// Signal handler
	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("holder-gate exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("holder-gate shut down gracefully")
}

func newHealthMux(logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func runHealthServer(ctx context.Context, port int, logger *slog.Logger) error {
	return serve(ctx, "health server", port, newHealthMux(logger), logger)
}

func runAdminServer(ctx context.Context, port int, handler http.Handler, logger *slog.Logger) error {
	return serve(ctx, "admin server", port, handler, logger)
}

func serve(ctx context.Context, name string, port int, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("server shutdown error", "server", name, "error", err)
		}
	}()

	logger.Info(name+" started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
