package discord

import "github.com/bwmarrin/discordgo"

const (
	cmdSetupVerify   = "setupverify"
	cmdVerify        = "verify"
	cmdRestoreVerify = "restoreverify"

	optPolicyID      = "policy_id"
	optBaseRole      = "base_role"
	optBackupChannel = "backup_channel"
	optWalletAddress = "wallet_address"
)

// Commands returns the slash commands the bot registers.
func Commands() []*discordgo.ApplicationCommand {
	adminOnly := int64(discordgo.PermissionAdministrator)
	noDM := false
	textChannels := []discordgo.ChannelType{discordgo.ChannelTypeGuildText}

	return []*discordgo.ApplicationCommand{
		{
			Name:                     cmdSetupVerify,
			Description:              "Set up wallet verification for an NFT policy",
			DefaultMemberPermissions: &adminOnly,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optPolicyID,
					Description: "Policy ID of the collection (56 hex characters)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        optBaseRole,
					Description: "Role granted to every verified holder",
					Required:    true,
				},
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         optBackupChannel,
					Description:  "Channel that receives periodic verification backups",
					ChannelTypes: textChannels,
					Required:     true,
				},
			},
		},
		{
			Name:         cmdVerify,
			Description:  "Verify ownership of your Cardano wallet",
			DMPermission: &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optWalletAddress,
					Description: "Your wallet address (addr1...)",
					Required:    true,
				},
			},
		},
		{
			Name:                     cmdRestoreVerify,
			Description:              "Restore verified holders from a backup channel",
			DefaultMemberPermissions: &adminOnly,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         optBackupChannel,
					Description:  "Channel holding the backup messages",
					ChannelTypes: textChannels,
					Required:     true,
				},
			},
		},
	}
}
