package store

import (
	"errors"
	"time"

	"github.com/emperorhan/holder-gate/internal/domain/model"
)

// ErrNotFound is returned when the addressed record does not exist.
var ErrNotFound = errors.New("not found")

// GuildConfigRepository holds each guild's tracked policies in insertion order.
type GuildConfigRepository interface {
	Append(cfg model.GuildConfig)
	ListByGuild(guildID string) []model.GuildConfig
	FindBySetupID(guildID, setupID string) (model.GuildConfig, bool)
	SetTierRole(guildID, setupID string, tier model.Tier, roleID string) error
	GuildIDs() []string
}

// HolderRepository holds verified holders keyed by identity.
type HolderRepository interface {
	Put(holder model.VerifiedHolder)
	Get(identity string) (model.VerifiedHolder, bool)
	// Update applies fn to the stored holder under the repository lock.
	Update(identity string, fn func(*model.VerifiedHolder)) error
	List() []model.VerifiedHolder
	Len() int
}

// PendingSetupRepository holds setup wizard sessions keyed by setup ID.
type PendingSetupRepository interface {
	Put(setup model.PendingSetup)
	Get(setupID string) (model.PendingSetup, bool)
	Delete(setupID string)
	DeleteCreatedBefore(cutoff time.Time) int
	Len() int
}
