package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/emperorhan/holder-gate/internal/backup"
	"github.com/emperorhan/holder-gate/internal/cooldown"
	"github.com/emperorhan/holder-gate/internal/domain/model"
	"github.com/emperorhan/holder-gate/internal/setup"
	"github.com/emperorhan/holder-gate/internal/store"
	"github.com/emperorhan/holder-gate/internal/tier"
	"github.com/emperorhan/holder-gate/internal/verification"
)

const (
	assetTypePrefix = "asset_type:"
	tierPrefix      = "tier:"
	skipValue       = "skip"

	// maxMenuOptions is the chat platform's limit on options per select menu.
	maxMenuOptions = 25
	everyoneRole   = "@everyone"
)

// Handler implements the slash commands and select menus. It knows nothing
// about the chat platform's wire format; the platform adapter translates
// interactions into these calls and Replies back into responses.
type Handler struct {
	wizard        *setup.Wizard
	cooldown      *cooldown.Limiter
	queue         *verification.Queue
	configs       store.GuildConfigRepository
	restorer      *backup.Restorer
	roles         backup.RoleDirectory
	policy        *tier.Policy
	addressPrefix string
	ticker        string
	logger        *slog.Logger
}

// Deps bundles the collaborators of a Handler.
type Deps struct {
	Wizard        *setup.Wizard
	Cooldown      *cooldown.Limiter
	Queue         *verification.Queue
	Configs       store.GuildConfigRepository
	Restorer      *backup.Restorer
	Roles         backup.RoleDirectory
	Policy        *tier.Policy
	AddressPrefix string
	Ticker        string
}

func NewHandler(d Deps, logger *slog.Logger) *Handler {
	if d.Policy == nil {
		d.Policy = tier.NewPolicy(nil)
	}
	return &Handler{
		wizard:        d.Wizard,
		cooldown:      d.Cooldown,
		queue:         d.Queue,
		configs:       d.Configs,
		restorer:      d.Restorer,
		roles:         d.Roles,
		policy:        d.Policy,
		addressPrefix: d.AddressPrefix,
		ticker:        d.Ticker,
		logger:        logger.With("component", "bot"),
	}
}

// SetupVerify starts the setup wizard and offers the asset type menu.
func (h *Handler) SetupVerify(_ context.Context, inv Invoker, policyKey string, baseRole model.Role, backupChannelID string) Reply {
	if !inv.IsAdmin {
		return Reply{Content: msgAdminOnly}
	}

	p, err := h.wizard.Start(setup.StartRequest{
		GuildID:         inv.GuildID,
		PolicyKey:       policyKey,
		BaseRoleID:      baseRole.ID,
		BaseRoleName:    baseRole.Name,
		BackupChannelID: backupChannelID,
	})
	if errors.Is(err, setup.ErrInvalidPolicyKey) {
		return Reply{Content: msgInvalidPolicyKey}
	}
	if err != nil {
		h.logger.Warn("setupverify failed", "guild", inv.GuildID, "user", inv.UserID, "error", err)
		return Reply{Content: MsgGenericError}
	}

	return Reply{
		Content: msgChooseAssetType,
		Menus: []Menu{{
			CustomID:    assetTypePrefix + p.SetupID,
			Placeholder: "Select asset type",
			Options: []Option{
				{Label: "NFT", Value: string(model.AssetTypeNFT), Description: "Non-fungible tokens tracked via pool.pm"},
				{Label: "Token", Value: string(model.AssetTypeToken), Description: "Fungible tokens tracked via CardanoScan"},
			},
		}},
	}
}

// Verify issues an ownership challenge for address.
func (h *Handler) Verify(_ context.Context, inv Invoker, address string) Reply {
	if !strings.HasPrefix(address, h.addressPrefix) {
		return Reply{Content: fmt.Sprintf(msgInvalidAddress, h.addressPrefix)}
	}
	if !h.cooldown.TryAcquire(inv.UserID) {
		return Reply{Content: fmt.Sprintf(msgRateLimited, int(h.cooldown.Window().Minutes()))}
	}
	if len(h.configs.ListByGuild(inv.GuildID)) == 0 {
		return Reply{Content: msgNotConfigured}
	}

	a := h.queue.Start(inv.UserID, inv.GuildID, address)
	return Reply{Content: fmt.Sprintf(msgVerifyInstructions,
		a.Challenge.String(), h.ticker, address, int(h.queue.Timeout().Minutes()))}
}

// RestoreVerify rebuilds the holder set from the newest backup in channelID.
func (h *Handler) RestoreVerify(ctx context.Context, inv Invoker, channelID string) Reply {
	if !inv.IsAdmin {
		return Reply{Content: msgAdminOnly}
	}

	n, err := h.restorer.Restore(ctx, inv.GuildID, channelID)
	switch {
	case errors.Is(err, backup.ErrNoBackup):
		return Reply{Content: msgNoBackup}
	case err != nil:
		h.logger.Error("restore failed", "guild", inv.GuildID, "channel", channelID, "error", err)
		return Reply{Content: msgRestoreFailed}
	}
	return Reply{Content: fmt.Sprintf(msgRestored, n)}
}

// SelectMenu routes a select menu choice by its custom ID. ok is false when
// the custom ID does not belong to this handler.
func (h *Handler) SelectMenu(ctx context.Context, inv Invoker, customID string, values []string) (reply Reply, ok bool) {
	value := ""
	if len(values) > 0 {
		value = values[0]
	}

	switch {
	case strings.HasPrefix(customID, assetTypePrefix):
		return h.chooseAssetType(ctx, inv, strings.TrimPrefix(customID, assetTypePrefix), value), true
	case strings.HasPrefix(customID, tierPrefix):
		tierName, setupID, found := strings.Cut(strings.TrimPrefix(customID, tierPrefix), ":")
		if !found {
			return Reply{Content: MsgGenericError}, true
		}
		return h.selectTier(inv, tierName, setupID, value), true
	}
	return Reply{}, false
}

func (h *Handler) chooseAssetType(ctx context.Context, inv Invoker, setupID, value string) Reply {
	cfg, err := h.wizard.ChooseAssetType(inv.GuildID, setupID, model.AssetType(value))
	switch {
	case errors.Is(err, setup.ErrSessionExpired):
		return Reply{Content: msgSessionExpired}
	case errors.Is(err, setup.ErrUnsupportedAssetType):
		return Reply{Content: msgTokenUnsupported}
	case err != nil:
		h.logger.Warn("asset type selection failed", "guild", inv.GuildID, "setup_id", setupID, "error", err)
		return Reply{Content: MsgGenericError}
	}

	roleOptions := h.roleOptions(ctx, inv.GuildID)
	menus := make([]Menu, 0, len(model.Tiers))
	for _, t := range model.Tiers {
		options := make([]Option, 0, len(roleOptions)+1)
		options = append(options, Option{
			Label:       "Skip this tier",
			Value:       skipValue,
			Description: fmt.Sprintf("Don't assign a role for %s tier", t),
		})
		for _, o := range roleOptions {
			o.Description = fmt.Sprintf("Assign %s for %s tier", o.Label, t)
			options = append(options, o)
		}
		menus = append(menus, Menu{
			CustomID:    tierPrefix + string(t) + ":" + setupID,
			Placeholder: fmt.Sprintf("Select %s role (optional)", t),
			Options:     options,
		})
	}

	return Reply{
		Content: h.tierSetupText(cfg.PolicyKey),
		Menus:   menus,
	}
}

// roleOptions lists the guild's assignable roles, leaving room for the skip option.
func (h *Handler) roleOptions(ctx context.Context, guildID string) []Option {
	roles, err := h.roles.GuildRoles(ctx, guildID)
	if err != nil {
		h.logger.Warn("role fetch failed", "guild", guildID, "error", err)
		return nil
	}
	var out []Option
	for _, r := range roles {
		if r.Name == everyoneRole {
			continue
		}
		if len(out) >= maxMenuOptions-1 {
			break
		}
		out = append(out, Option{Label: r.Name, Value: r.ID})
	}
	return out
}

func (h *Handler) tierSetupText(policyKey string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎯 **NFT Rarity Setup for Policy ID:** %s\n\n", policyKey)
	b.WriteString("Select roles for each rarity tier (you can skip tiers you don't need):\n")

	ths := h.policy.Thresholds()
	for i, th := range ths {
		label := titleCase(string(th.Tier))
		if i == 0 {
			fmt.Fprintf(&b, "\n**%d+ NFTs** = %s", th.Floor, label)
			continue
		}
		fmt.Fprintf(&b, "\n**%d-%d NFTs** = %s", th.Floor, ths[i-1].Floor-1, label)
	}
	return b.String()
}

func (h *Handler) selectTier(inv Invoker, tierName, setupID, value string) Reply {
	roleID := value
	if value == skipValue {
		roleID = ""
	}

	t, err := h.wizard.SelectTier(inv.GuildID, setupID, tierName, roleID)
	switch {
	case errors.Is(err, setup.ErrConfigNotFound):
		return Reply{Content: msgSessionExpired}
	case err != nil:
		h.logger.Warn("tier selection failed", "guild", inv.GuildID, "setup_id", setupID, "tier", tierName, "error", err)
		return Reply{Content: MsgGenericError}
	}

	outcome := "configured"
	if roleID == "" {
		outcome = "skipped"
	}
	return Reply{Content: fmt.Sprintf(msgTierSet, t, outcome)}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
