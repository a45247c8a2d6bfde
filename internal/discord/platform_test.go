package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/emperorhan/holder-gate/internal/domain/model"
	"github.com/emperorhan/holder-gate/internal/reconciliation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeREST struct {
	member    *discordgo.Member
	memberErr error
	roles     []*discordgo.Role
	messages  []*discordgo.Message
	sendErr   error

	added   []string
	removed []string
	sent    []string
	limit   int
}

func (f *fakeREST) GuildMember(_, _ string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	return f.member, f.memberErr
}

func (f *fakeREST) GuildMemberRoleAdd(_, _, roleID string, _ ...discordgo.RequestOption) error {
	f.added = append(f.added, roleID)
	return nil
}

func (f *fakeREST) GuildMemberRoleRemove(_, _, roleID string, _ ...discordgo.RequestOption) error {
	f.removed = append(f.removed, roleID)
	return nil
}

func (f *fakeREST) GuildRoles(_ string, _ ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	return f.roles, nil
}

func (f *fakeREST) ChannelMessageSend(_, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, content)
	return &discordgo.Message{Content: content}, nil
}

func (f *fakeREST) ChannelMessages(_ string, limit int, _, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.limit = limit
	return f.messages, nil
}

func TestPlatform_MemberRoleIDs(t *testing.T) {
	rest := &fakeREST{member: &discordgo.Member{Roles: []string{"r1", "r2"}}}
	p := NewPlatform(rest)

	roles, err := p.MemberRoleIDs(context.Background(), "g", "u")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, roles)
}

func TestPlatform_MemberRoleIDs_UnknownMember(t *testing.T) {
	rest := &fakeREST{memberErr: &discordgo.RESTError{
		Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMember, Message: "Unknown Member"},
	}}
	p := NewPlatform(rest)

	_, err := p.MemberRoleIDs(context.Background(), "g", "u")
	require.Error(t, err)
	assert.ErrorIs(t, err, reconciliation.ErrMemberNotFound)
}

func TestPlatform_MemberRoleIDs_NotFoundStatus(t *testing.T) {
	rest := &fakeREST{memberErr: &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
	}}

	_, err := NewPlatform(rest).MemberRoleIDs(context.Background(), "g", "u")
	assert.ErrorIs(t, err, reconciliation.ErrMemberNotFound)
}

func TestPlatform_MemberRoleIDs_OtherError(t *testing.T) {
	rest := &fakeREST{memberErr: errors.New("gateway timeout")}

	_, err := NewPlatform(rest).MemberRoleIDs(context.Background(), "g", "u")
	require.Error(t, err)
	assert.NotErrorIs(t, err, reconciliation.ErrMemberNotFound)
}

func TestPlatform_RoleMutations(t *testing.T) {
	rest := &fakeREST{}
	p := NewPlatform(rest)

	require.NoError(t, p.AddRole(context.Background(), "g", "u", "r1"))
	require.NoError(t, p.RemoveRole(context.Background(), "g", "u", "r2"))
	assert.Equal(t, []string{"r1"}, rest.added)
	assert.Equal(t, []string{"r2"}, rest.removed)
}

func TestPlatform_GuildRoles(t *testing.T) {
	rest := &fakeREST{roles: []*discordgo.Role{{ID: "1", Name: "@everyone"}, {ID: "2", Name: "Holder"}}}

	roles, err := NewPlatform(rest).GuildRoles(context.Background(), "g")
	require.NoError(t, err)
	assert.Equal(t, []model.Role{{ID: "1", Name: "@everyone"}, {ID: "2", Name: "Holder"}}, roles)
}

func TestPlatform_Messages(t *testing.T) {
	rest := &fakeREST{messages: []*discordgo.Message{{Content: "newest"}, {Content: "older"}}}
	p := NewPlatform(rest)

	require.NoError(t, p.SendMessage(context.Background(), "c", "hello"))
	assert.Equal(t, []string{"hello"}, rest.sent)

	msgs, err := p.RecentMessages(context.Background(), "c", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"newest", "older"}, msgs)
	assert.Equal(t, 50, rest.limit)
}

func TestPlatform_SendMessageError(t *testing.T) {
	rest := &fakeREST{sendErr: errors.New("missing access")}

	err := NewPlatform(rest).SendMessage(context.Background(), "c", "hello")
	assert.ErrorContains(t, err, "missing access")
}
