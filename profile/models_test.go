package profile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fortunelabs/entitled/profile"
	"github.com/fortunelabs/entitled/tier"
	"github.com/fortunelabs/entitled/types"
)

func TestNewProfileDefaults(t *testing.T) {
	today := types.Date("2025-04-01")
	p := profile.New("user-1", today)

	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, tier.Free, p.Tier)
	assert.Equal(t, profile.StatusActive, p.Status)
	assert.Equal(t, int64(0), p.DailyUsageCount)
	assert.Equal(t, today, p.LastResetDate)
	assert.Equal(t, int64(1), p.Version)
	assert.False(t, p.ID.IsNil())
}

func TestResetIfStale(t *testing.T) {
	p := profile.New("u", types.Date("2025-04-01"))
	p.DailyUsageCount = 7

	// Same day: no reset.
	assert.False(t, p.ResetIfStale(types.Date("2025-04-01")))
	assert.Equal(t, int64(7), p.DailyUsageCount)

	// New day: counter zeroed and re-anchored, regardless of prior value.
	assert.True(t, p.ResetIfStale(types.Date("2025-04-02")))
	assert.Equal(t, int64(0), p.DailyUsageCount)
	assert.Equal(t, types.Date("2025-04-02"), p.LastResetDate)
}

func TestEffectiveCount(t *testing.T) {
	p := profile.New("u", types.Date("2025-04-01"))
	p.DailyUsageCount = 3

	assert.Equal(t, int64(3), p.EffectiveCount(types.Date("2025-04-01")))
	assert.Equal(t, int64(0), p.EffectiveCount(types.Date("2025-04-02")), "stale counter reads as zero")
	// Reading never mutates.
	assert.Equal(t, int64(3), p.DailyUsageCount)
}

func TestCloneIsDeep(t *testing.T) {
	p := profile.New("u", types.Date("2025-04-01"))
	p.Addons = []tier.AddonID{tier.AddonCosmic}

	cp := p.Clone()
	cp.Addons[0] = tier.AddonClaude
	cp.DailyUsageCount = 99

	assert.Equal(t, tier.AddonCosmic, p.Addons[0])
	assert.Equal(t, int64(0), p.DailyUsageCount)
}

func TestChangesApply(t *testing.T) {
	p := profile.New("u", types.Date("2025-04-01"))

	newTier := tier.Pro
	addons := []tier.AddonID{tier.AddonCosmic, tier.AddonClaude}
	ch := profile.Changes{Tier: &newTier, Addons: &addons}
	assert.False(t, ch.Empty())

	ch.Apply(p)
	assert.Equal(t, tier.Pro, p.Tier)
	assert.Equal(t, addons, p.Addons)
	assert.Equal(t, profile.StatusActive, p.Status, "untouched field keeps its value")

	assert.True(t, profile.Changes{}.Empty())
}
