// Package tier defines the static subscription tier and add-on catalog.
//
// Tiers form a closed, totally ordered enumeration (free → starter → pro →
// elite). Unknown tier or add-on identifiers never surface as errors: lookups
// degrade to the free tier so callers always have something to evaluate
// against.
package tier

import "github.com/fortunelabs/entitled/types"

// Code identifies a subscription tier. The set of codes is closed; use
// ParseCode to map untrusted input onto it.
type Code string

const (
	Free    Code = "free"
	Starter Code = "starter"
	Pro     Code = "pro"
	Elite   Code = "elite"
)

// order is the fixed upgrade ordering over all tiers.
var order = []Code{Free, Starter, Pro, Elite}

// Codes returns all tier codes in upgrade order.
func Codes() []Code {
	out := make([]Code, len(order))
	copy(out, order)
	return out
}

// ParseCode maps a raw string onto the closed tier enumeration.
// Unrecognized input degrades to Free rather than failing.
func ParseCode(s string) Code {
	switch Code(s) {
	case Free, Starter, Pro, Elite:
		return Code(s)
	default:
		return Free
	}
}

// Compare orders two tier codes: negative when a is below b in the upgrade
// order, zero when equal, positive when above. Unknown codes rank as Free.
func Compare(a, b Code) int {
	return rank(ParseCode(string(a))) - rank(ParseCode(string(b)))
}

// rank returns the position of c in the upgrade order.
func rank(c Code) int {
	for i, o := range order {
		if o == c {
			return i
		}
	}
	return 0
}

// QuotaUnlimited is the daily-quota sentinel for effectively unlimited use.
const QuotaUnlimited int64 = -1

// Tier is an immutable subscription level record.
type Tier struct {
	Code          Code        `json:"code" yaml:"code"`
	Name          string      `json:"name" yaml:"name"`
	PriceMonthly  types.Money `json:"price_monthly" yaml:"price_monthly"`
	PriceYearly   types.Money `json:"price_yearly" yaml:"price_yearly"`
	DailyQuota    int64       `json:"daily_quota" yaml:"daily_quota"`
	AddonsBundled int         `json:"addons_bundled" yaml:"addons_bundled"`
	Features      []string    `json:"features" yaml:"features"` // display-only
}

// Unlimited reports whether the tier carries the unlimited quota sentinel.
func (t Tier) Unlimited() bool { return t.DailyQuota == QuotaUnlimited }

// AddonID identifies an optional paid feature module.
type AddonID string

const (
	AddonCosmic     AddonID = "cosmic"
	AddonClaude     AddonID = "claude"
	AddonNumerology AddonID = "numerology"
)

// AddonIDs returns all add-on identifiers.
func AddonIDs() []AddonID {
	return []AddonID{AddonCosmic, AddonClaude, AddonNumerology}
}

// ValidAddon reports whether the identifier names a known add-on.
func ValidAddon(a AddonID) bool {
	switch a {
	case AddonCosmic, AddonClaude, AddonNumerology:
		return true
	default:
		return false
	}
}

// AddonProduct is an immutable add-on record.
type AddonProduct struct {
	ID           AddonID     `json:"id" yaml:"id"`
	Name         string      `json:"name" yaml:"name"`
	PriceMonthly types.Money `json:"price_monthly" yaml:"price_monthly"`
	Description  string      `json:"description" yaml:"description"`
}
