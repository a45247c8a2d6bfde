package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/emperorhan/holder-gate/internal/bot"
)

// maxRowsPerMessage is the platform's limit on action rows in one message.
const maxRowsPerMessage = 5

// componentPages renders menus one per action row, split into groups that
// fit a single message. The first group goes with the reply; the rest are
// sent as follow-ups.
func componentPages(menus []bot.Menu) [][]discordgo.MessageComponent {
	if len(menus) == 0 {
		return nil
	}

	var pages [][]discordgo.MessageComponent
	var page []discordgo.MessageComponent
	for _, m := range menus {
		if len(page) == maxRowsPerMessage {
			pages = append(pages, page)
			page = nil
		}
		page = append(page, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{selectMenu(m)},
		})
	}
	return append(pages, page)
}

func selectMenu(m bot.Menu) discordgo.SelectMenu {
	options := make([]discordgo.SelectMenuOption, 0, len(m.Options))
	for _, o := range m.Options {
		options = append(options, discordgo.SelectMenuOption{
			Label:       o.Label,
			Value:       o.Value,
			Description: o.Description,
		})
	}
	return discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    m.CustomID,
		Placeholder: m.Placeholder,
		Options:     options,
	}
}
