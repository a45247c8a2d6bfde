package model

type AssetType string

const (
	AssetTypeNFT   AssetType = "nft"
	AssetTypeToken AssetType = "token"
)

func (a AssetType) String() string {
	return string(a)
}

// Supported reports whether holdings of this asset type can be tracked.
func (a AssetType) Supported() bool {
	return a == AssetTypeNFT
}

type Tier string

const (
	TierMythical  Tier = "mythical"
	TierLegendary Tier = "legendary"
	TierEpic      Tier = "epic"
	TierRare      Tier = "rare"
	TierUncommon  Tier = "uncommon"
	TierCommon    Tier = "common"
)

// Tiers lists every tier from highest to lowest.
var Tiers = []Tier{
	TierMythical,
	TierLegendary,
	TierEpic,
	TierRare,
	TierUncommon,
	TierCommon,
}

func (t Tier) String() string {
	return string(t)
}

// ParseTier returns the tier named s, or false if s names no tier.
func ParseTier(s string) (Tier, bool) {
	for _, t := range Tiers {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}
