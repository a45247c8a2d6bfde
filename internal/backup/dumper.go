package backup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/emperorhan/holder-gate/internal/alert"
	"github.com/emperorhan/holder-gate/internal/metrics"
	"github.com/emperorhan/holder-gate/internal/store"
	"github.com/emperorhan/holder-gate/internal/tracing"
	"github.com/google/uuid"
)

// DefaultInterval is the cadence of periodic backup dumps.
const DefaultInterval = 4 * time.Hour

// DumpResult summarizes one Dump call.
type DumpResult struct {
	Guilds   int
	Channels int
	Messages int
	Failures int
}

// Dumper writes the verified holder set, with role names as seen in each
// guild, to every backup channel configured for that guild.
type Dumper struct {
	configs store.GuildConfigRepository
	holders store.HolderRepository
	roles   RoleDirectory
	channel Channel
	alerter alert.Alerter
	logger  *slog.Logger
	newRun  func() string
}

func NewDumper(
	configs store.GuildConfigRepository,
	holders store.HolderRepository,
	roles RoleDirectory,
	channel Channel,
	alerter alert.Alerter,
	logger *slog.Logger,
) *Dumper {
	if alerter == nil {
		alerter = &alert.NoopAlerter{}
	}
	return &Dumper{
		configs: configs,
		holders: holders,
		roles:   roles,
		channel: channel,
		alerter: alerter,
		logger:  logger.With("component", "backup"),
		newRun:  func() string { return uuid.NewString()[:8] },
	}
}

// Dump writes one backup per guild. Failures are logged per channel and
// never stop the other channels or guilds.
func (d *Dumper) Dump(ctx context.Context) DumpResult {
	ctx, span := tracing.Start(ctx, "backup", "dump")
	defer span.End()

	var result DumpResult
	for _, guildID := range d.configs.GuildIDs() {
		result.Guilds++
		channels := d.backupChannels(guildID)
		if len(channels) == 0 {
			continue
		}

		roles, err := d.roles.GuildRoles(ctx, guildID)
		if err != nil {
			result.Failures++
			metrics.BackupDumpsTotal.WithLabelValues("error").Inc()
			d.logger.Warn("backup skipped: role lookup failed", "guild", guildID, "error", err)
			d.alert(ctx, guildID, "", err)
			continue
		}
		names := make(map[string]string, len(roles))
		for _, r := range roles {
			names[r.ID] = r.Name
		}

		messages := Encode(d.entries(guildID, names), d.newRun())
		for _, channelID := range channels {
			result.Channels++
			if err := d.send(ctx, channelID, messages); err != nil {
				result.Failures++
				metrics.BackupDumpsTotal.WithLabelValues("error").Inc()
				d.logger.Warn("backup channel failed", "guild", guildID, "channel", channelID, "error", err)
				d.alert(ctx, guildID, channelID, err)
				continue
			}
			result.Messages += len(messages)
			metrics.BackupDumpsTotal.WithLabelValues("ok").Inc()
		}
	}

	d.logger.Info("backup dump completed",
		"guilds", result.Guilds, "channels", result.Channels,
		"messages", result.Messages, "failures", result.Failures,
	)
	return result
}

func (d *Dumper) send(ctx context.Context, channelID string, messages []string) error {
	for i, m := range messages {
		if err := d.channel.SendMessage(ctx, channelID, m); err != nil {
			return fmt.Errorf("send part %d/%d: %w", i+1, len(messages), err)
		}
	}
	return nil
}

func (d *Dumper) backupChannels(guildID string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range d.configs.ListByGuild(guildID) {
		if c.BackupChannelID == "" {
			continue
		}
		if _, ok := seen[c.BackupChannelID]; ok {
			continue
		}
		seen[c.BackupChannelID] = struct{}{}
		out = append(out, c.BackupChannelID)
	}
	return out
}

// entries resolves each holder's assigned roles to names in one guild.
// Restored holders that have not been reconciled since keep the names they
// were restored with, but only in the guild those names came from.
func (d *Dumper) entries(guildID string, names map[string]string) []Entry {
	var out []Entry
	for _, h := range d.holders.List() {
		var roleNames []string
		for id := range h.AssignedRoleIDs {
			if name, ok := names[id]; ok {
				roleNames = append(roleNames, name)
			}
		}
		sort.Strings(roleNames)
		if len(roleNames) == 0 && h.IsRestored() && h.RestoredGuildID == guildID {
			roleNames = h.RestoredRoleNames
		}
		if len(roleNames) > 0 {
			out = append(out, Entry{Identity: h.Identity, RoleNames: roleNames})
		}
	}
	return out
}

func (d *Dumper) alert(ctx context.Context, guildID, channelID string, err error) {
	_ = d.alerter.Send(ctx, alert.Alert{
		Type:    alert.AlertTypeBackup,
		Guild:   guildID,
		Title:   "Backup dump failed",
		Message: err.Error(),
		Fields:  map[string]string{"channel": channelID},
	})
}

// RunPeriodic dumps backups at interval until ctx is cancelled.
func (d *Dumper) RunPeriodic(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	d.logger.Info("periodic backup started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("periodic backup stopping")
			return ctx.Err()
		case <-ticker.C:
			d.Dump(ctx)
		}
	}
}
