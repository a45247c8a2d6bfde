package tier

import (
	"sort"

	"github.com/emperorhan/holder-gate/internal/domain/model"
)

// Threshold is the minimum asset count that qualifies for a tier.
type Threshold struct {
	Tier  model.Tier
	Floor int
}

// DefaultThresholds are the floors used by every guild config.
var DefaultThresholds = []Threshold{
	{Tier: model.TierMythical, Floor: 50},
	{Tier: model.TierLegendary, Floor: 36},
	{Tier: model.TierEpic, Floor: 21},
	{Tier: model.TierRare, Floor: 11},
	{Tier: model.TierUncommon, Floor: 4},
	{Tier: model.TierCommon, Floor: 1},
}

// Policy maps asset counts to tiers.
type Policy struct {
	thresholds []Threshold
}

// NewPolicy builds a policy from thresholds in any order. Nil uses DefaultThresholds.
func NewPolicy(thresholds []Threshold) *Policy {
	if thresholds == nil {
		thresholds = DefaultThresholds
	}
	sorted := append([]Threshold(nil), thresholds...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Floor > sorted[j].Floor })
	return &Policy{thresholds: sorted}
}

// TierFor returns the highest tier whose floor is at most count and that has a
// role in roles. Tiers without a role are skipped in favour of the next lower
// one. A count of zero never qualifies.
func (p *Policy) TierFor(count int, roles map[model.Tier]string) (model.Tier, bool) {
	if count <= 0 {
		return "", false
	}
	for _, th := range p.thresholds {
		if th.Floor > count || th.Floor <= 0 {
			continue
		}
		if roles[th.Tier] != "" {
			return th.Tier, true
		}
	}
	return "", false
}

// Thresholds returns the thresholds from highest floor to lowest.
func (p *Policy) Thresholds() []Threshold {
	return append([]Threshold(nil), p.thresholds...)
}
