package discord

import (
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/emperorhan/holder-gate/internal/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func menus(n int) []bot.Menu {
	out := make([]bot.Menu, n)
	for i := range out {
		out[i] = bot.Menu{
			CustomID:    fmt.Sprintf("menu:%d", i),
			Placeholder: "pick",
			Options:     []bot.Option{{Label: "Skip", Value: "skip", Description: "none"}},
		}
	}
	return out
}

func TestComponentPages(t *testing.T) {
	tests := []struct {
		name  string
		menus int
		pages []int
	}{
		{"none", 0, nil},
		{"one", 1, []int{1}},
		{"exactly five", 5, []int{5}},
		{"tier menus", 6, []int{5, 1}},
		{"eleven", 11, []int{5, 5, 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pages := componentPages(menus(tc.menus))
			require.Len(t, pages, len(tc.pages))
			for i, want := range tc.pages {
				assert.Len(t, pages[i], want)
			}
		})
	}
}

func TestComponentPages_RendersSelectMenus(t *testing.T) {
	pages := componentPages(menus(6))

	row, ok := pages[1][0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 1)
	sel, ok := row.Components[0].(discordgo.SelectMenu)
	require.True(t, ok)
	assert.Equal(t, "menu:5", sel.CustomID)
	assert.Equal(t, discordgo.StringSelectMenu, sel.MenuType)
	assert.Equal(t, []discordgo.SelectMenuOption{{Label: "Skip", Value: "skip", Description: "none"}}, sel.Options)
}

func TestCommands(t *testing.T) {
	cmds := Commands()
	require.Len(t, cmds, 3)

	byName := map[string]*discordgo.ApplicationCommand{}
	for _, c := range cmds {
		byName[c.Name] = c
	}

	setup := byName[cmdSetupVerify]
	require.NotNil(t, setup)
	require.NotNil(t, setup.DefaultMemberPermissions)
	assert.Equal(t, int64(discordgo.PermissionAdministrator), *setup.DefaultMemberPermissions)
	require.Len(t, setup.Options, 3)
	assert.Equal(t, discordgo.ApplicationCommandOptionRole, setup.Options[1].Type)

	verify := byName[cmdVerify]
	require.NotNil(t, verify)
	assert.Nil(t, verify.DefaultMemberPermissions)
	assert.Equal(t, optWalletAddress, verify.Options[0].Name)

	restore := byName[cmdRestoreVerify]
	require.NotNil(t, restore)
	assert.Equal(t, []discordgo.ChannelType{discordgo.ChannelTypeGuildText}, restore.Options[0].ChannelTypes)
}
