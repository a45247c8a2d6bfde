package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/emperorhan/holder-gate/internal/backup"
	"github.com/emperorhan/holder-gate/internal/domain/model"
	"github.com/emperorhan/holder-gate/internal/reconciliation"
)

// restClient is the subset of the discordgo REST API the bot uses.
type restClient interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

var _ restClient = (*discordgo.Session)(nil)

// Platform exposes guild members, roles and channels to the core services.
type Platform struct {
	rest restClient
}

var (
	_ reconciliation.MemberRoles = (*Platform)(nil)
	_ backup.Channel             = (*Platform)(nil)
	_ backup.RoleDirectory       = (*Platform)(nil)
)

func NewPlatform(rest restClient) *Platform {
	return &Platform{rest: rest}
}

func (p *Platform) MemberRoleIDs(ctx context.Context, guildID, identity string) ([]string, error) {
	m, err := p.rest.GuildMember(guildID, identity, discordgo.WithContext(ctx))
	if err != nil {
		if isUnknownMember(err) {
			return nil, fmt.Errorf("member %s in guild %s: %w", identity, guildID, reconciliation.ErrMemberNotFound)
		}
		return nil, fmt.Errorf("fetch member: %w", err)
	}
	return m.Roles, nil
}

func (p *Platform) AddRole(ctx context.Context, guildID, identity, roleID string) error {
	if err := p.rest.GuildMemberRoleAdd(guildID, identity, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add role %s: %w", roleID, err)
	}
	return nil
}

func (p *Platform) RemoveRole(ctx context.Context, guildID, identity, roleID string) error {
	if err := p.rest.GuildMemberRoleRemove(guildID, identity, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("remove role %s: %w", roleID, err)
	}
	return nil
}

func (p *Platform) GuildRoles(ctx context.Context, guildID string) ([]model.Role, error) {
	roles, err := p.rest.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch roles: %w", err)
	}
	out := make([]model.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, model.Role{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

func (p *Platform) SendMessage(ctx context.Context, channelID, content string) error {
	if _, err := p.rest.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (p *Platform) RecentMessages(ctx context.Context, channelID string, limit int) ([]string, error) {
	msgs, err := p.rest.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out, nil
}

func isUnknownMember(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownMember {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
