package postgres

import (
	"time"

	"github.com/lib/pq"

	"github.com/fortunelabs/entitled/id"
	"github.com/fortunelabs/entitled/profile"
	"github.com/fortunelabs/entitled/tier"
	"github.com/fortunelabs/entitled/types"
	"github.com/fortunelabs/entitled/usage"
)

// profileRow mirrors the entitled_profiles table.
type profileRow struct {
	ID              string
	UserID          string
	Tier            string
	Status          string
	Addons          pq.StringArray
	DailyUsageCount int64
	LastResetDate   string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func toProfileRow(p *profile.Profile) *profileRow {
	addons := make(pq.StringArray, len(p.Addons))
	for i, a := range p.Addons {
		addons[i] = string(a)
	}
	return &profileRow{
		ID:              p.ID.String(),
		UserID:          p.UserID,
		Tier:            string(p.Tier),
		Status:          string(p.Status),
		Addons:          addons,
		DailyUsageCount: p.DailyUsageCount,
		LastResetDate:   string(p.LastResetDate),
		Version:         p.Version,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func fromProfileRow(r *profileRow) (*profile.Profile, error) {
	pid, err := id.ParseProfileID(r.ID)
	if err != nil {
		return nil, err
	}
	addons := make([]tier.AddonID, len(r.Addons))
	for i, a := range r.Addons {
		addons[i] = tier.AddonID(a)
	}
	return &profile.Profile{
		Entity: types.Entity{
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		},
		ID:              pid,
		UserID:          r.UserID,
		Tier:            tier.Code(r.Tier),
		Status:          profile.Status(r.Status),
		Addons:          addons,
		DailyUsageCount: r.DailyUsageCount,
		LastResetDate:   types.Date(r.LastResetDate),
		Version:         r.Version,
	}, nil
}

// usageRow mirrors the entitled_usage_log table.
type usageRow struct {
	ID        string
	UserID    string
	Action    string
	Detail    string
	Day       string
	Timestamp time.Time
}

func toUsageRow(e *usage.LogEntry) *usageRow {
	return &usageRow{
		ID:        e.ID.String(),
		UserID:    e.UserID,
		Action:    e.Action,
		Detail:    e.Detail,
		Day:       string(e.Day),
		Timestamp: e.Timestamp,
	}
}

func fromUsageRow(r *usageRow) (*usage.LogEntry, error) {
	uid, err := id.ParseUsageLogID(r.ID)
	if err != nil {
		return nil, err
	}
	return &usage.LogEntry{
		ID:        uid,
		UserID:    r.UserID,
		Action:    r.Action,
		Detail:    r.Detail,
		Day:       types.Date(r.Day),
		Timestamp: r.Timestamp.UTC(),
	}, nil
}
