package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emperorhan/holder-gate/internal/domain/model"
	"github.com/emperorhan/holder-gate/internal/metrics"
	"github.com/emperorhan/holder-gate/internal/store"
	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a setup session waits for the asset type choice.
const DefaultSessionTTL = 30 * time.Minute

var (
	ErrInvalidPolicyKey     = errors.New("invalid policy key")
	ErrInvalidRequest       = errors.New("invalid setup request")
	ErrSessionExpired       = errors.New("setup session expired")
	ErrUnsupportedAssetType = errors.New("asset type not supported")
	ErrInvalidTier          = errors.New("unknown tier")
	ErrConfigNotFound       = errors.New("guild config not found")
)

// StartRequest is what an administrator supplies to begin tracking a policy.
type StartRequest struct {
	GuildID         string `validate:"required"`
	PolicyKey       string `validate:"policykey"`
	BaseRoleID      string `validate:"required"`
	BaseRoleName    string
	BackupChannelID string `validate:"required"`
}

// Wizard walks an administrator through creating a GuildConfig: policy
// details, then the asset type, then one optional role per tier.
type Wizard struct {
	pending store.PendingSetupRepository
	configs store.GuildConfigRepository
	ttl     time.Duration
	logger  *slog.Logger
	nowFunc func() time.Time
	newIDFn func() string
}

func NewWizard(pending store.PendingSetupRepository, configs store.GuildConfigRepository, ttl time.Duration, logger *slog.Logger) *Wizard {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Wizard{
		pending: pending,
		configs: configs,
		ttl:     ttl,
		logger:  logger.With("component", "setup"),
		nowFunc: time.Now,
		newIDFn: func() string { return uuid.NewString() },
	}
}

// Start validates req and opens a setup session, returning it.
func (w *Wizard) Start(req StartRequest) (model.PendingSetup, error) {
	if !ValidPolicyKey(req.PolicyKey) {
		metrics.SetupSessionsTotal.WithLabelValues("invalid").Inc()
		return model.PendingSetup{}, fmt.Errorf("policy key %q: %w", req.PolicyKey, ErrInvalidPolicyKey)
	}
	if err := validateStruct(req); err != nil {
		metrics.SetupSessionsTotal.WithLabelValues("invalid").Inc()
		return model.PendingSetup{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	p := model.PendingSetup{
		SetupID:         w.newIDFn(),
		GuildID:         req.GuildID,
		PolicyKey:       req.PolicyKey,
		BaseRoleID:      req.BaseRoleID,
		BaseRoleName:    req.BaseRoleName,
		BackupChannelID: req.BackupChannelID,
		CreatedAt:       w.nowFunc(),
	}
	w.pending.Put(p)
	metrics.SetupSessionsTotal.WithLabelValues("started").Inc()

	w.logger.Info("setup started",
		"guild", p.GuildID, "setup_id", p.SetupID,
		"policy", p.PolicyKey, "base_role", p.BaseRoleName,
	)
	return p, nil
}

// ChooseAssetType resolves the session's asset type. For non-fungible assets
// a GuildConfig with no tier roles is appended to the guild and returned.
// The session ends either way.
func (w *Wizard) ChooseAssetType(guildID, setupID string, assetType model.AssetType) (model.GuildConfig, error) {
	p, ok := w.pending.Get(setupID)
	if !ok || p.GuildID != guildID || w.expired(p) {
		metrics.SetupSessionsTotal.WithLabelValues("expired").Inc()
		return model.GuildConfig{}, fmt.Errorf("setup %s: %w", setupID, ErrSessionExpired)
	}
	w.pending.Delete(setupID)

	if !assetType.Supported() {
		metrics.SetupSessionsTotal.WithLabelValues("unsupported").Inc()
		w.logger.Info("setup abandoned: unsupported asset type", "guild", guildID, "setup_id", setupID, "asset_type", assetType)
		return model.GuildConfig{}, fmt.Errorf("asset type %q: %w", assetType, ErrUnsupportedAssetType)
	}

	cfg := model.GuildConfig{
		GuildID:         p.GuildID,
		PolicyKey:       p.PolicyKey,
		BaseRoleID:      p.BaseRoleID,
		BackupChannelID: p.BackupChannelID,
		AssetType:       assetType,
		TierRoles:       make(map[model.Tier]string),
		SetupID:         setupID,
		CreatedAt:       w.nowFunc(),
	}
	w.configs.Append(cfg)
	metrics.SetupSessionsTotal.WithLabelValues("configured").Inc()

	w.logger.Info("guild config added", "guild", guildID, "setup_id", setupID, "policy", cfg.PolicyKey)
	return cfg, nil
}

// SelectTier sets the role for tier on the config created by setupID. An
// empty roleID records an explicit skip.
func (w *Wizard) SelectTier(guildID, setupID, tierName, roleID string) (model.Tier, error) {
	t, ok := model.ParseTier(tierName)
	if !ok {
		return "", fmt.Errorf("tier %q: %w", tierName, ErrInvalidTier)
	}
	if err := w.configs.SetTierRole(guildID, setupID, t, roleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return t, fmt.Errorf("setup %s: %w", setupID, ErrConfigNotFound)
		}
		return t, err
	}

	if roleID == "" {
		w.logger.Info("tier skipped", "guild", guildID, "setup_id", setupID, "tier", t)
	} else {
		w.logger.Info("tier role set", "guild", guildID, "setup_id", setupID, "tier", t, "role", roleID)
	}
	return t, nil
}

// Prune drops sessions older than the TTL and returns how many were removed.
func (w *Wizard) Prune() int {
	n := w.pending.DeleteCreatedBefore(w.nowFunc().Add(-w.ttl))
	if n > 0 {
		metrics.SetupSessionsTotal.WithLabelValues("expired").Add(float64(n))
		w.logger.Info("expired setup sessions pruned", "count", n)
	}
	return n
}

// RunCleanup prunes expired sessions at interval until ctx is cancelled.
// A non-positive interval falls back to one minute.
func (w *Wizard) RunCleanup(ctx context.Context, interval time.Duration) error {
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
			w.Prune()
		}
	}
}

func (w *Wizard) expired(p model.PendingSetup) bool {
	return !w.nowFunc().Before(p.CreatedAt.Add(w.ttl))
}
