package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Discord      DiscordConfig
	Verification VerificationConfig
	Reconcile    ReconcileConfig
	Backup       BackupConfig
	Setup        SetupConfig
	Chain        ChainConfig
	Alert        AlertConfig
	Tracing      TracingConfig
	Server       ServerConfig
	Admin        AdminConfig
	Log          LogConfig
}

type DiscordConfig struct {
	Token string
	// CommandGuildID registers commands in a single guild instead of globally.
	CommandGuildID string
}

type VerificationConfig struct {
	PollInterval      time.Duration
	Timeout           time.Duration
	RateLimitWindow   time.Duration
	LookupTimeout     time.Duration
	WorkerConcurrency int
	AddressPrefix     string
	Ticker            string
}

type ReconcileConfig struct {
	Interval          time.Duration
	UnitTimeout       time.Duration
	WorkerConcurrency int
}

type BackupConfig struct {
	Interval time.Duration
}

type SetupConfig struct {
	SessionTTL          time.Duration
	MaintenanceInterval time.Duration
}

type ChainConfig struct {
	CardanoScanURL      string
	PoolPMURL           string
	HTTPTimeout         time.Duration
	RPS                 float64
	Burst               int
	HoldingsCacheTTL    time.Duration
	HoldingsCacheSize   int
	BreakerFailures     int
	BreakerOpenDuration time.Duration
}

type AlertConfig struct {
	SlackWebhookURL string
	WebhookURL      string
	Cooldown        time.Duration
}

type TracingConfig struct {
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

type ServerConfig struct {
	HealthPort int
}

// AdminConfig controls the operator HTTP API. Port 0 disables it.
type AdminConfig struct {
	Port     int
	Username string
	Password string
}

type LogConfig struct {
	Level string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Discord: DiscordConfig{
			Token:          strings.TrimSpace(getEnv("DISCORD_TOKEN", "")),
			CommandGuildID: getEnv("DISCORD_COMMAND_GUILD_ID", ""),
		},
		Verification: VerificationConfig{
			PollInterval:      time.Duration(getEnvInt("VERIFY_POLL_INTERVAL_SEC", 30)) * time.Second,
			Timeout:           time.Duration(getEnvInt("VERIFY_TIMEOUT_MIN", 10)) * time.Minute,
			RateLimitWindow:   time.Duration(getEnvInt("VERIFY_RATE_LIMIT_WINDOW_MIN", 5)) * time.Minute,
			LookupTimeout:     time.Duration(getEnvInt("VERIFY_LOOKUP_TIMEOUT_SEC", 20)) * time.Second,
			WorkerConcurrency: getEnvInt("VERIFY_WORKERS", 4),
			AddressPrefix:     getEnv("ADDRESS_PREFIX", "addr1"),
			Ticker:            getEnv("CURRENCY_TICKER", "ADA"),
		},
		Reconcile: ReconcileConfig{
			Interval:          time.Duration(getEnvInt("RECONCILE_INTERVAL_MIN", 30)) * time.Minute,
			UnitTimeout:       time.Duration(getEnvInt("RECONCILE_UNIT_TIMEOUT_SEC", 60)) * time.Second,
			WorkerConcurrency: getEnvInt("RECONCILE_WORKERS", 4),
		},
		Backup: BackupConfig{
			Interval: time.Duration(getEnvInt("BACKUP_INTERVAL_MIN", 240)) * time.Minute,
		},
		Setup: SetupConfig{
			SessionTTL:          time.Duration(getEnvInt("SETUP_SESSION_TTL_MIN", 30)) * time.Minute,
			MaintenanceInterval: time.Duration(getEnvInt("MAINTENANCE_INTERVAL_SEC", 60)) * time.Second,
		},
		Chain: ChainConfig{
			CardanoScanURL:      getEnv("CARDANOSCAN_URL", "https://cardanoscan.io"),
			PoolPMURL:           getEnv("POOLPM_URL", "https://pool.pm"),
			HTTPTimeout:         time.Duration(getEnvInt("CHAIN_HTTP_TIMEOUT_SEC", 30)) * time.Second,
			RPS:                 getEnvFloat("CHAIN_RPS", 2),
			Burst:               getEnvInt("CHAIN_BURST", 2),
			HoldingsCacheTTL:    time.Duration(getEnvInt("HOLDINGS_CACHE_TTL_SEC", 60)) * time.Second,
			HoldingsCacheSize:   getEnvInt("HOLDINGS_CACHE_SIZE", 1024),
			BreakerFailures:     getEnvInt("CHAIN_BREAKER_FAILURES", 5),
			BreakerOpenDuration: time.Duration(getEnvInt("CHAIN_BREAKER_OPEN_SEC", 60)) * time.Second,
		},
		Alert: AlertConfig{
			SlackWebhookURL: getEnv("ALERT_SLACK_WEBHOOK_URL", ""),
			WebhookURL:      getEnv("ALERT_WEBHOOK_URL", ""),
			Cooldown:        time.Duration(getEnvInt("ALERT_COOLDOWN_MIN", 30)) * time.Minute,
		},
		Tracing: TracingConfig{
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio: getEnvFloat("OTEL_TRACE_SAMPLE_RATIO", 0.1),
		},
		Server: ServerConfig{
			HealthPort: getEnvInt("HEALTH_PORT", 8080),
		},
		Admin: AdminConfig{
			Port:     getEnvInt("ADMIN_PORT", 0),
			Username: getEnv("ADMIN_USERNAME", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	if c.Verification.PollInterval <= 0 {
		return fmt.Errorf("VERIFY_POLL_INTERVAL_SEC must be positive")
	}
	if c.Verification.Timeout <= 0 {
		return fmt.Errorf("VERIFY_TIMEOUT_MIN must be positive")
	}
	if c.Setup.MaintenanceInterval <= 0 {
		return fmt.Errorf("MAINTENANCE_INTERVAL_SEC must be positive")
	}
	if c.Verification.AddressPrefix == "" {
		return fmt.Errorf("ADDRESS_PREFIX is required")
	}
	if c.Chain.CardanoScanURL == "" {
		return fmt.Errorf("CARDANOSCAN_URL is required")
	}
	if c.Chain.PoolPMURL == "" {
		return fmt.Errorf("POOLPM_URL is required")
	}
	if c.Chain.RPS <= 0 || c.Chain.Burst <= 0 {
		return fmt.Errorf("CHAIN_RPS and CHAIN_BURST must be positive")
	}
	if c.Admin.Port != 0 && (c.Admin.Username == "" || c.Admin.Password == "") {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required when ADMIN_PORT is set")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACE_SAMPLE_RATIO must be within [0, 1]")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
