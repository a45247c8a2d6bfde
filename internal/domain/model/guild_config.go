package model

import "time"

// GuildConfig tracks one asset policy for one guild. PolicyKey never changes
// after creation; TierRoles is filled in by the setup wizard.
type GuildConfig struct {
	GuildID         string
	PolicyKey       string
	BaseRoleID      string
	BackupChannelID string
	AssetType       AssetType
	TierRoles       map[Tier]string // empty or missing value = no role for the tier
	SetupID         string
	CreatedAt       time.Time
}

// TierRole returns the role configured for t, if any.
func (c *GuildConfig) TierRole(t Tier) (string, bool) {
	id := c.TierRoles[t]
	return id, id != ""
}

// Clone returns a deep copy safe to hand out of a store.
func (c *GuildConfig) Clone() GuildConfig {
	out := *c
	out.TierRoles = make(map[Tier]string, len(c.TierRoles))
	for k, v := range c.TierRoles {
		out.TierRoles[k] = v
	}
	return out
}

// PendingSetup holds what the wizard collected before the asset type is chosen.
type PendingSetup struct {
	SetupID         string
	GuildID         string
	PolicyKey       string
	BaseRoleID      string
	BaseRoleName    string
	BackupChannelID string
	CreatedAt       time.Time
}

// Role is a chat-platform role as seen by the bot.
type Role struct {
	ID   string
	Name string
}
