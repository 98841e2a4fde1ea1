// Package entitlement provides pure, side-effect-free decision functions over
// a profile, its tier, and the current calendar date. Nothing here touches a
// store or a clock; the date is always passed in by the caller.
package entitlement

import (
	"github.com/fortunelabs/entitled/profile"
	"github.com/fortunelabs/entitled/tier"
	"github.com/fortunelabs/entitled/types"
)

// proBundledAddons is how many add-ons a pro subscriber may hold without
// purchasing them separately.
const proBundledAddons = 2

// CanConsumeQuota reports whether the profile may perform one more
// quota-consuming action today. A pending lazy reset is accounted for: a
// stale counter reads as zero, so the first action of a new day is always
// permitted. The unlimited sentinel always permits.
func CanConsumeQuota(p *profile.Profile, t tier.Tier, today types.Date) bool {
	if t.Unlimited() {
		return true
	}
	return p.EffectiveCount(today) < t.DailyQuota
}

// Remaining returns how many quota units are left today, never negative.
// Returns tier.QuotaUnlimited for unlimited tiers. A tier downgrade can leave
// the stored counter above the new quota; remaining simply floors at zero.
func Remaining(p *profile.Profile, t tier.Tier, today types.Date) int64 {
	if t.Unlimited() {
		return tier.QuotaUnlimited
	}
	left := t.DailyQuota - p.EffectiveCount(today)
	if left < 0 {
		return 0
	}
	return left
}

// Evaluate composes CanConsumeQuota with the remaining math into a Result.
func Evaluate(p *profile.Profile, t tier.Tier, today types.Date) *Result {
	used := p.EffectiveCount(today)
	r := &Result{
		Used:      used,
		Limit:     t.DailyQuota,
		Remaining: Remaining(p, t, today),
	}

	switch {
	case t.Unlimited():
		r.Allowed = true
	case used < t.DailyQuota:
		r.Allowed = true
	default:
		r.Allowed = false
		r.Reason = "daily quota exhausted"
	}
	return r
}

// CanAccessAddon decides whether an add-on gated feature is available, by
// tier policy:
//
//   - elite: always, all add-ons are bundled.
//   - pro: if already active, or while fewer than two bundled slots are used.
//   - starter: only if already active (purchased separately, no bundling).
//   - free: never, regardless of purchase state.
func CanAccessAddon(t tier.Tier, addon tier.AddonID, active []tier.AddonID) bool {
	inActive := func() bool {
		for _, a := range active {
			if a == addon {
				return true
			}
		}
		return false
	}

	switch t.Code {
	case tier.Elite:
		return true
	case tier.Pro:
		return inActive() || len(active) < proBundledAddons
	case tier.Starter:
		return inActive()
	default:
		return false
	}
}

// UpgradeMessage returns the static, tier-specific prompt shown when a quota
// or add-on check denies. Purely presentational.
func UpgradeMessage(t tier.Tier) string {
	switch t.Code {
	case tier.Free:
		return "You've used your free predictions for today. Upgrade to Starter for 10 daily predictions."
	case tier.Starter:
		return "Out of predictions for today. Go Pro for 25 daily predictions and two bundled add-ons."
	case tier.Pro:
		return "Daily limit reached. Elite removes the limit and unlocks every add-on."
	case tier.Elite:
		return "You're on our top tier. Thanks for playing."
	default:
		return "Upgrade your plan to keep the predictions coming."
	}
}
