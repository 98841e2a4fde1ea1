package tier

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/fortunelabs/entitled/types"
)

// Catalog is the immutable tier and add-on registry. Loaded once at process
// start; never mutated afterwards, so it is safe for concurrent readers.
type Catalog struct {
	tiers  map[Code]Tier
	addons map[AddonID]AddonProduct
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	return newCatalog([]Tier{
		{
			Code:          Free,
			Name:          "Lucky Lite",
			PriceMonthly:  types.USD(0),
			PriceYearly:   types.USD(0),
			DailyQuota:    3,
			AddonsBundled: 0,
			Features:      []string{"3 daily predictions", "standard number generator"},
		},
		{
			Code:          Starter,
			Name:          "Starter",
			PriceMonthly:  types.USD(499),
			PriceYearly:   types.USD(4990),
			DailyQuota:    10,
			AddonsBundled: 0,
			Features:      []string{"10 daily predictions", "prediction history", "hot and cold numbers"},
		},
		{
			Code:          Pro,
			Name:          "Pro",
			PriceMonthly:  types.USD(999),
			PriceYearly:   types.USD(9990),
			DailyQuota:    25,
			AddonsBundled: 2,
			Features:      []string{"25 daily predictions", "2 add-ons included", "frequency analytics"},
		},
		{
			Code:          Elite,
			Name:          "Elite",
			PriceMonthly:  types.USD(1999),
			PriceYearly:   types.USD(19990),
			DailyQuota:    QuotaUnlimited,
			AddonsBundled: 3,
			Features:      []string{"unlimited predictions", "all add-ons included", "priority support"},
		},
	}, []AddonProduct{
		{
			ID:           AddonCosmic,
			Name:         "Cosmic Alignment",
			PriceMonthly: types.USD(299),
			Description:  "Scores predictions against daily astrological alignment",
		},
		{
			ID:           AddonClaude,
			Name:         "Claude AI Analysis",
			PriceMonthly: types.USD(499),
			Description:  "AI-generated commentary on each predicted draw",
		},
		{
			ID:           AddonNumerology,
			Name:         "Numerology Boost",
			PriceMonthly: types.USD(199),
			Description:  "Weights predictions with personal numerology profiles",
		},
	})
}

func newCatalog(tiers []Tier, addons []AddonProduct) *Catalog {
	c := &Catalog{
		tiers:  make(map[Code]Tier, len(tiers)),
		addons: make(map[AddonID]AddonProduct, len(addons)),
	}
	for _, t := range tiers {
		c.tiers[t.Code] = t
	}
	for _, a := range addons {
		c.addons[a.ID] = a
	}
	return c
}

// Get returns the tier for the given code. Unknown codes degrade to the free
// tier — callers must always have a tier to evaluate against, so this lookup
// never fails.
func (c *Catalog) Get(code Code) Tier {
	if t, ok := c.tiers[code]; ok {
		return t
	}
	return c.tiers[Free]
}

// Next returns the tier immediately above current in the upgrade order, or
// nil if current is already the top tier.
func (c *Catalog) Next(current Code) *Tier {
	r := rank(ParseCode(string(current)))
	if r >= len(order)-1 {
		return nil
	}
	t := c.Get(order[r+1])
	return &t
}

// Addon returns the add-on product and whether the identifier is known.
func (c *Catalog) Addon(a AddonID) (AddonProduct, bool) {
	p, ok := c.addons[a]
	return p, ok
}

// Tiers returns all tiers in upgrade order.
func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, 0, len(order))
	for _, code := range order {
		if t, ok := c.tiers[code]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Addons returns all add-on products.
func (c *Catalog) Addons() []AddonProduct {
	out := make([]AddonProduct, 0, len(c.addons))
	for _, a := range AddonIDs() {
		if p, ok := c.addons[a]; ok {
			out = append(out, p)
		}
	}
	return out
}

// catalogFile is the YAML override shape. Only pricing, quotas, bundle counts
// and display copy can be overridden — the enumerations stay closed.
type catalogFile struct {
	Tiers  []Tier         `yaml:"tiers"`
	Addons []AddonProduct `yaml:"addons"`
}

// LoadCatalog reads a YAML catalog override and merges it over the defaults.
// Entries with codes outside the closed enumeration are rejected.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("tier: read catalog: %w", err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("tier: parse catalog: %w", err)
	}

	c := DefaultCatalog()
	for _, t := range f.Tiers {
		if _, ok := c.tiers[t.Code]; !ok {
			return nil, fmt.Errorf("tier: unknown tier code %q in catalog override", t.Code)
		}
		c.tiers[t.Code] = t
	}
	for _, a := range f.Addons {
		if !ValidAddon(a.ID) {
			return nil, fmt.Errorf("tier: unknown add-on %q in catalog override", a.ID)
		}
		c.addons[a.ID] = a
	}
	return c, nil
}
