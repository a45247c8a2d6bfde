package bot

// Reply is a private response to the member who issued an interaction.
type Reply struct {
	Content string
	Menus   []Menu
}

// Menu is a single-choice select menu.
type Menu struct {
	CustomID    string
	Placeholder string
	Options     []Option
}

// Option is one entry of a Menu.
type Option struct {
	Label       string
	Value       string
	Description string
}

// Invoker identifies who triggered an interaction and where.
type Invoker struct {
	UserID  string
	GuildID string
	IsAdmin bool
}

const (
	msgAdminOnly        = "❌ Only administrators can use this command."
	msgInvalidPolicyKey = "❌ Invalid policy ID format. Must be 56 character hex string."
	msgInvalidAddress   = "❌ Invalid Cardano address. Must start with \"%s\"."
	msgRateLimited      = "⏰ Rate limit exceeded. Please wait %d minutes before trying again."
	msgNotConfigured    = "❌ No verification configured. Ask an admin to run /setupverify first."
	msgSessionExpired   = "❌ Setup session expired. Please run /setupverify again."
	msgTokenUnsupported = "🚧 **Token tracking coming soon!**\n\nPlease use NFT option for now."
	msgChooseAssetType  = "Select the asset type to track:"
	msgRestored         = "✅ Restored verification data for %d users from backup."
	msgNoBackup         = "❌ No backup data found in selected channel."
	msgRestoreFailed    = "❌ Error restoring data. Check logs."
	msgTierSet          = "✅ %s tier %s"

	// MsgGenericError answers any interaction that failed unexpectedly.
	MsgGenericError = "An error occurred while processing your request."

	msgVerifyInstructions = "🔐 **Wallet Verification**\n\n" +
		"Send exactly **%[1]s %[2]s** from your wallet to itself (same address).\n\n" +
		"**Your Address:** %[3]s\n" +
		"**Amount:** %[1]s %[2]s\n\n" +
		"I'll monitor for this transaction for %[4]d minutes."
)
