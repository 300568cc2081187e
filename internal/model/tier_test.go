package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTiers_ClosedSet(t *testing.T) {
	t.Parallel()

	tiers := Tiers()
	require.Len(t, tiers, 6)
	assert.Equal(t, TierOne, tiers[0])
	assert.Equal(t, TierUnclassified, tiers[len(tiers)-1])

	for _, tier := range tiers {
		assert.True(t, tier.Valid(), tier)
		assert.NotEmpty(t, tier.Description(), tier)
	}
}

func TestParseTier(t *testing.T) {
	t.Parallel()

	tier, err := ParseTier("MID_TIER")
	require.NoError(t, err)
	assert.Equal(t, TierMid, tier)

	_, err = ParseTier("TIER_2")
	assert.Error(t, err)
	assert.False(t, Tier("tier_1").Valid())
}
