package model

import "github.com/rotisserie/eris"

// Tier is the business segment assigned to a company. The set is closed.
type Tier string

const (
	TierOne              Tier = "TIER_1"
	TierTASpecialists    Tier = "TA_SPECIALISTS"
	TierFirstLaunchers   Tier = "FIRST_LAUNCHERS"
	TierPlatformBuilders Tier = "PLATFORM_BUILDERS"
	TierMid              Tier = "MID_TIER"
	TierUnclassified     Tier = "UNCLASSIFIED"
)

var tierDescriptions = map[Tier]string{
	TierOne:              "Big Pharma - Global scale with significant revenue and late-stage assets",
	TierTASpecialists:    "Therapeutic Area Specialists - Focused on specific therapeutic areas",
	TierFirstLaunchers:   "First Launchers - Pre-revenue companies with upcoming launches",
	TierPlatformBuilders: "Focused Platform Builders - Technology/platform focused companies",
	TierMid:              "Mid-Tier - Established companies with some commercial presence",
	TierUnclassified:     "Unclassified - Companies that don't fit other categories",
}

// Tiers returns every tier in rule-priority order.
func Tiers() []Tier {
	return []Tier{
		TierOne,
		TierTASpecialists,
		TierFirstLaunchers,
		TierPlatformBuilders,
		TierMid,
		TierUnclassified,
	}
}

// Valid reports whether t is a member of the closed tier set.
func (t Tier) Valid() bool {
	_, ok := tierDescriptions[t]
	return ok
}

// Description returns a human readable description of t.
func (t Tier) Description() string {
	return tierDescriptions[t]
}

// ParseTier converts s into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", eris.Errorf("model: unknown tier %q", s)
	}
	return t, nil
}
