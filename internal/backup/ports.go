package backup

import (
	"context"

	"github.com/emperorhan/holder-gate/internal/domain/model"
)

// Channel sends and reads text messages in a chat channel.
type Channel interface {
	SendMessage(ctx context.Context, channelID, content string) error
	// RecentMessages returns up to limit message bodies, newest first.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]string, error)
}

// RoleDirectory lists a guild's roles.
type RoleDirectory interface {
	GuildRoles(ctx context.Context, guildID string) ([]model.Role, error)
}
