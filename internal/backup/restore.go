package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emperorhan/holder-gate/internal/domain/model"
	"github.com/emperorhan/holder-gate/internal/metrics"
	"github.com/emperorhan/holder-gate/internal/store"
)

// RestoreWindow is how many recent channel messages are searched for a backup.
const RestoreWindow = 50

// ErrNoBackup is returned when the channel holds no backup message.
var ErrNoBackup = errors.New("no backup found")

// Restorer rebuilds the verified holder set from a backup channel.
type Restorer struct {
	channel Channel
	holders store.HolderRepository
	logger  *slog.Logger
	nowFunc func() time.Time
}

func NewRestorer(channel Channel, holders store.HolderRepository, logger *slog.Logger) *Restorer {
	return &Restorer{
		channel: channel,
		holders: holders,
		logger:  logger.With("component", "restore"),
		nowFunc: time.Now,
	}
}

// Restore reads the newest backup in channelID, a backup channel of
// guildID, and upserts one placeholder holder per line. Restored holders
// have no address and no assigned roles until they verify again; their role
// names belong to guildID. It returns how many holders were restored.
func (r *Restorer) Restore(ctx context.Context, guildID, channelID string) (int, error) {
	messages, err := r.channel.RecentMessages(ctx, channelID, RestoreWindow)
	if err != nil {
		return 0, fmt.Errorf("read channel %s: %w", channelID, err)
	}

	entries, ok := Decode(messages)
	if !ok {
		return 0, fmt.Errorf("channel %s: %w", channelID, ErrNoBackup)
	}

	now := r.nowFunc()
	for identity, roleNames := range entries {
		h := model.NewVerifiedHolder(identity, model.RestoredAddress, now)
		h.RestoredGuildID = guildID
		h.RestoredRoleNames = roleNames
		h.LastReconciledAt = now
		r.holders.Put(h)
	}

	metrics.RestoredHoldersTotal.Add(float64(len(entries)))
	r.logger.Info("holders restored from backup", "guild", guildID, "channel", channelID, "count", len(entries))
	return len(entries), nil
}
