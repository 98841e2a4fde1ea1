// Package profile defines the per-user subscription profile record.
package profile

import (
	"github.com/fortunelabs/entitled/id"
	"github.com/fortunelabs/entitled/tier"
	"github.com/fortunelabs/entitled/types"
)

// Status is the subscription state of a profile.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusCancelled Status = "cancelled"
	StatusPastDue   Status = "past_due"
)

// Profile is the mutable per-user entitlement state. The user identifier is
// opaque and owned by the external identity provider; it is stable across the
// user's lifetime and is the storage key.
//
// Version implements optimistic concurrency: every successful store update
// increments it, and conditional writes match on the previously read value.
type Profile struct {
	types.Entity
	ID              id.ProfileID   `json:"id"`
	UserID          string         `json:"user_id"`
	Tier            tier.Code      `json:"tier"`
	Status          Status         `json:"status"`
	Addons          []tier.AddonID `json:"addons,omitempty"`
	DailyUsageCount int64          `json:"daily_usage_count"`
	LastResetDate   types.Date     `json:"last_reset_date"`
	Version         int64          `json:"version"`
}

// New returns a fresh profile for a first-time user: free tier, active,
// counter zeroed and anchored to today.
func New(userID string, today types.Date) *Profile {
	return &Profile{
		Entity:          types.NewEntity(),
		ID:              id.NewProfileID(),
		UserID:          userID,
		Tier:            tier.Free,
		Status:          StatusActive,
		DailyUsageCount: 0,
		LastResetDate:   today,
		Version:         1,
	}
}

// Stale reports whether the stored counter belongs to an earlier day.
func (p *Profile) Stale(today types.Date) bool {
	return p.LastResetDate != today
}

// EffectiveCount returns the counter as of today: the stored value when the
// profile is current, zero when a lazy reset is pending.
func (p *Profile) EffectiveCount(today types.Date) int64 {
	if p.Stale(today) {
		return 0
	}
	return p.DailyUsageCount
}

// ResetIfStale applies the lazy daily reset in place: if the stored
// last-reset date is not today, the counter is zeroed and re-anchored.
// Reports whether a reset happened.
func (p *Profile) ResetIfStale(today types.Date) bool {
	if !p.Stale(today) {
		return false
	}
	p.DailyUsageCount = 0
	p.LastResetDate = today
	return true
}

// HasAddon reports whether the add-on is in the active set.
func (p *Profile) HasAddon(a tier.AddonID) bool {
	for _, active := range p.Addons {
		if active == a {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate persisted state through a shared pointer.
func (p *Profile) Clone() *Profile {
	cp := *p
	if p.Addons != nil {
		cp.Addons = make([]tier.AddonID, len(p.Addons))
		copy(cp.Addons, p.Addons)
	}
	return &cp
}

// Changes is a partial profile update. Nil fields are left untouched.
// Usage counters are deliberately absent: only the engine's consume path
// mutates them.
type Changes struct {
	Tier   *tier.Code
	Status *Status
	Addons *[]tier.AddonID
}

// Apply copies the non-nil fields onto p.
func (c Changes) Apply(p *Profile) {
	if c.Tier != nil {
		p.Tier = *c.Tier
	}
	if c.Status != nil {
		p.Status = *c.Status
	}
	if c.Addons != nil {
		addons := make([]tier.AddonID, len(*c.Addons))
		copy(addons, *c.Addons)
		p.Addons = addons
	}
}

// Empty reports whether the change set touches nothing.
func (c Changes) Empty() bool {
	return c.Tier == nil && c.Status == nil && c.Addons == nil
}
