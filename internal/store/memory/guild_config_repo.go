package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/emperorhan/holder-gate/internal/domain/model"
	"github.com/emperorhan/holder-gate/internal/store"
)

// GuildConfigRepo is the process-local guild config store.
type GuildConfigRepo struct {
	mu      sync.RWMutex
	configs map[string][]*model.GuildConfig
}

var _ store.GuildConfigRepository = (*GuildConfigRepo)(nil)

func NewGuildConfigRepo() *GuildConfigRepo {
	return &GuildConfigRepo{configs: make(map[string][]*model.GuildConfig)}
}

func (r *GuildConfigRepo) Append(cfg model.GuildConfig) {
	stored := cfg.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.GuildID] = append(r.configs[cfg.GuildID], &stored)
}

func (r *GuildConfigRepo) ListByGuild(guildID string) []model.GuildConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfgs := r.configs[guildID]
	out := make([]model.GuildConfig, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, c.Clone())
	}
	return out
}

func (r *GuildConfigRepo) FindBySetupID(guildID, setupID string) (model.GuildConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c := r.findLocked(guildID, setupID); c != nil {
		return c.Clone(), true
	}
	return model.GuildConfig{}, false
}

// SetTierRole sets or clears (roleID == "") the role of one tier in place.
func (r *GuildConfigRepo) SetTierRole(guildID, setupID string, tier model.Tier, roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.findLocked(guildID, setupID)
	if c == nil {
		return fmt.Errorf("guild %s setup %s: %w", guildID, setupID, store.ErrNotFound)
	}
	if c.TierRoles == nil {
		c.TierRoles = make(map[model.Tier]string)
	}
	c.TierRoles[tier] = roleID
	return nil
}

// GuildIDs returns every guild with at least one config, sorted.
func (r *GuildConfigRepo) GuildIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.configs))
	for id, cfgs := range r.configs {
		if len(cfgs) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (r *GuildConfigRepo) findLocked(guildID, setupID string) *model.GuildConfig {
	for _, c := range r.configs[guildID] {
		if c.SetupID == setupID {
			return c
		}
	}
	return nil
}
