package tier_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunelabs/entitled/tier"
)

func TestGetFallsBackToFree(t *testing.T) {
	c := tier.DefaultCatalog()

	got := c.Get(tier.Code("platinum"))
	assert.Equal(t, tier.Free, got.Code, "unknown code should degrade to the free tier")

	got = c.Get(tier.Pro)
	assert.Equal(t, tier.Pro, got.Code)
	assert.Equal(t, int64(25), got.DailyQuota)
}

func TestParseCode(t *testing.T) {
	assert.Equal(t, tier.Elite, tier.ParseCode("elite"))
	assert.Equal(t, tier.Free, tier.ParseCode(""))
	assert.Equal(t, tier.Free, tier.ParseCode("ELITE"), "codes are case-sensitive lowercase")
}

func TestNextTierOrdering(t *testing.T) {
	c := tier.DefaultCatalog()

	next := c.Next(tier.Free)
	require.NotNil(t, next)
	assert.Equal(t, tier.Starter, next.Code)

	next = c.Next(tier.Pro)
	require.NotNil(t, next)
	assert.Equal(t, tier.Elite, next.Code)

	assert.Nil(t, c.Next(tier.Elite), "elite has no next tier")

	// Unknown input ranks as free, so its next is starter.
	next = c.Next(tier.Code("garbage"))
	require.NotNil(t, next)
	assert.Equal(t, tier.Starter, next.Code)
}

func TestUnlimitedSentinel(t *testing.T) {
	c := tier.DefaultCatalog()
	assert.True(t, c.Get(tier.Elite).Unlimited())
	assert.False(t, c.Get(tier.Free).Unlimited())
}

func TestBundleCounts(t *testing.T) {
	c := tier.DefaultCatalog()

	want := map[tier.Code]int{tier.Free: 0, tier.Starter: 0, tier.Pro: 2, tier.Elite: 3}
	for code, bundled := range want {
		assert.Equal(t, bundled, c.Get(code).AddonsBundled, "tier %s", code)
	}
}

func TestAddonLookup(t *testing.T) {
	c := tier.DefaultCatalog()

	p, ok := c.Addon(tier.AddonClaude)
	require.True(t, ok)
	assert.Equal(t, "Claude AI Analysis", p.Name)

	_, ok = c.Addon(tier.AddonID("horoscope"))
	assert.False(t, ok)

	assert.Len(t, c.Addons(), 3)
}

func TestLoadCatalogOverride(t *testing.T) {
	const override = `
tiers:
  - code: pro
    name: Pro Plus
    daily_quota: 50
    addons_bundled: 2
addons:
  - id: cosmic
    name: Cosmic Alignment
    description: overridden
`
	c, err := tier.LoadCatalog(strings.NewReader(override))
	require.NoError(t, err)

	pro := c.Get(tier.Pro)
	assert.Equal(t, "Pro Plus", pro.Name)
	assert.Equal(t, int64(50), pro.DailyQuota)

	// Untouched tiers keep their defaults.
	assert.Equal(t, int64(3), c.Get(tier.Free).DailyQuota)

	p, ok := c.Addon(tier.AddonCosmic)
	require.True(t, ok)
	assert.Equal(t, "overridden", p.Description)
}

func TestLoadCatalogRejectsUnknownCodes(t *testing.T) {
	_, err := tier.LoadCatalog(strings.NewReader("tiers:\n  - code: diamond\n"))
	assert.Error(t, err)

	_, err = tier.LoadCatalog(strings.NewReader("addons:\n  - id: horoscope\n"))
	assert.Error(t, err)
}
