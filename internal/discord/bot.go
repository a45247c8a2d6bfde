package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/emperorhan/holder-gate/internal/bot"
	"github.com/emperorhan/holder-gate/internal/domain/model"
)

const (
	presence           = "wallet verifications"
	interactionTimeout = 30 * time.Second
)

// CommandHandler is the platform-neutral interaction logic.
type CommandHandler interface {
	SetupVerify(ctx context.Context, inv bot.Invoker, policyKey string, baseRole model.Role, backupChannelID string) bot.Reply
	Verify(ctx context.Context, inv bot.Invoker, address string) bot.Reply
	RestoreVerify(ctx context.Context, inv bot.Invoker, channelID string) bot.Reply
	SelectMenu(ctx context.Context, inv bot.Invoker, customID string, values []string) (bot.Reply, bool)
}

var _ CommandHandler = (*bot.Handler)(nil)

type interactionClient interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Bot owns the gateway session and routes interactions to a CommandHandler.
type Bot struct {
	session        *discordgo.Session
	client         interactionClient
	handler        CommandHandler
	commandGuildID string
	logger         *slog.Logger
}

// NewSession creates a gateway session for token. Nothing connects until
// Bot.Open.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	return s, nil
}

func New(session *discordgo.Session, commandGuildID string, handler CommandHandler, logger *slog.Logger) *Bot {
	b := &Bot{
		session:        session,
		client:         session,
		handler:        handler,
		commandGuildID: commandGuildID,
		logger:         logger.With("component", "discord"),
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteraction)
	return b
}

func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("connected", "user", r.User.Username, "guilds", len(r.Guilds))

	if _, err := s.ApplicationCommandBulkOverwrite(r.User.ID, b.commandGuildID, Commands()); err != nil {
		b.logger.Error("register commands failed", "error", err)
	} else {
		b.logger.Info("commands registered", "guild", b.commandGuildID)
	}

	if err := s.UpdateWatchStatus(0, presence); err != nil {
		b.logger.Warn("set presence failed", "error", err)
	}
}

func (b *Bot) onInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()
	b.handleInteraction(ctx, ic.Interaction)
}

// handleInteraction acknowledges the interaction privately, runs the handler
// and delivers the reply as one or more follow-up messages.
func (b *Bot) handleInteraction(ctx context.Context, i *discordgo.Interaction) {
	if i.Type != discordgo.InteractionApplicationCommand && i.Type != discordgo.InteractionMessageComponent {
		return
	}

	err := b.client.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
	if err != nil {
		b.logger.Error("acknowledge interaction failed", "error", err)
		return
	}

	reply := b.dispatch(ctx, i)
	b.deliver(ctx, i, reply)
}

func (b *Bot) dispatch(ctx context.Context, i *discordgo.Interaction) (reply bot.Reply) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("interaction handler panicked", "panic", r)
			reply = bot.Reply{Content: bot.MsgGenericError}
		}
	}()

	inv := invoker(i)
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.Name {
		case cmdSetupVerify:
			roleID := optionString(data.Options, optBaseRole)
			role := model.Role{ID: roleID}
			if data.Resolved != nil {
				if r, ok := data.Resolved.Roles[roleID]; ok && r != nil {
					role.Name = r.Name
				}
			}
			return b.handler.SetupVerify(ctx, inv,
				optionString(data.Options, optPolicyID), role,
				optionString(data.Options, optBackupChannel))
		case cmdVerify:
			return b.handler.Verify(ctx, inv, optionString(data.Options, optWalletAddress))
		case cmdRestoreVerify:
			return b.handler.RestoreVerify(ctx, inv, optionString(data.Options, optBackupChannel))
		}
		b.logger.Warn("unknown command", "name", data.Name)
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		if r, ok := b.handler.SelectMenu(ctx, inv, data.CustomID, data.Values); ok {
			return r
		}
		b.logger.Warn("unknown component", "custom_id", data.CustomID)
	}
	return bot.Reply{Content: bot.MsgGenericError}
}

func (b *Bot) deliver(ctx context.Context, i *discordgo.Interaction, reply bot.Reply) {
	pages := componentPages(reply.Menus)
	first := &discordgo.WebhookParams{Content: reply.Content, Flags: discordgo.MessageFlagsEphemeral}
	if len(pages) > 0 {
		first.Components = pages[0]
	}
	if _, err := b.client.FollowupMessageCreate(i, false, first, discordgo.WithContext(ctx)); err != nil {
		b.logger.Error("send reply failed", "error", err)
		return
	}

	for _, page := range pages[min(1, len(pages)):] {
		params := &discordgo.WebhookParams{Components: page, Flags: discordgo.MessageFlagsEphemeral}
		if _, err := b.client.FollowupMessageCreate(i, false, params, discordgo.WithContext(ctx)); err != nil {
			b.logger.Error("send follow-up failed", "error", err)
			return
		}
	}
}

func invoker(i *discordgo.Interaction) bot.Invoker {
	inv := bot.Invoker{GuildID: i.GuildID}
	if i.Member != nil {
		inv.IsAdmin = i.Member.Permissions&discordgo.PermissionAdministrator != 0
		if i.Member.User != nil {
			inv.UserID = i.Member.User.ID
		}
	}
	if inv.UserID == "" && i.User != nil {
		inv.UserID = i.User.ID
	}
	return inv
}

// optionString returns the raw value of a string, role or channel option.
// Role and channel options carry the snowflake ID as their value.
func optionString(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, o := range opts {
		if o == nil || o.Name != name {
			continue
		}
		s, _ := o.Value.(string)
		return s
	}
	return ""
}
