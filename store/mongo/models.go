package mongo

import (
	"time"

	"github.com/fortunelabs/entitled/id"
	"github.com/fortunelabs/entitled/profile"
	"github.com/fortunelabs/entitled/tier"
	"github.com/fortunelabs/entitled/types"
	"github.com/fortunelabs/entitled/usage"
)

// profileDoc is the BSON shape of a profile. The user ID is the document key
// so the unique index the driver gives us for free carries the idempotent
// creation contract.
type profileDoc struct {
	UserID          string    `bson:"_id"`
	ProfileID       string    `bson:"profile_id"`
	Tier            string    `bson:"tier"`
	Status          string    `bson:"status"`
	Addons          []string  `bson:"addons"`
	DailyUsageCount int64     `bson:"daily_usage_count"`
	LastResetDate   string    `bson:"last_reset_date"`
	Version         int64     `bson:"version"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toProfileDoc(p *profile.Profile) *profileDoc {
	addons := make([]string, len(p.Addons))
	for i, a := range p.Addons {
		addons[i] = string(a)
	}
	return &profileDoc{
		UserID:          p.UserID,
		ProfileID:       p.ID.String(),
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

func fromProfileDoc(d *profileDoc) (*profile.Profile, error) {
	pid, err := id.ParseProfileID(d.ProfileID)
	if err != nil {
		return nil, err
	}
	addons := make([]tier.AddonID, len(d.Addons))
	for i, a := range d.Addons {
		addons[i] = tier.AddonID(a)
	}
	return &profile.Profile{
		Entity: types.Entity{
			CreatedAt: d.CreatedAt.UTC(),
			UpdatedAt: d.UpdatedAt.UTC(),
		},
		ID:              pid,
		UserID:          d.UserID,
		Tier:            tier.Code(d.Tier),
		Status:          profile.Status(d.Status),
		Addons:          addons,
		DailyUsageCount: d.DailyUsageCount,
		LastResetDate:   types.Date(d.LastResetDate),
		Version:         d.Version,
	}, nil
}

// usageDoc is the BSON shape of a usage log entry.
type usageDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Action    string    `bson:"action"`
	Detail    string    `bson:"detail,omitempty"`
	Day       string    `bson:"day"`
	Timestamp time.Time `bson:"ts"`
}

func toUsageDoc(e *usage.LogEntry) *usageDoc {
	return &usageDoc{
		ID:        e.ID.String(),
		UserID:    e.UserID,
		Action:    e.Action,
		Detail:    e.Detail,
		Day:       string(e.Day),
		Timestamp: e.Timestamp,
	}
}

func fromUsageDoc(d *usageDoc) (*usage.LogEntry, error) {
	uid, err := id.ParseUsageLogID(d.ID)
	if err != nil {
		return nil, err
	}
	return &usage.LogEntry{
		ID:        uid,
		UserID:    d.UserID,
		Action:    d.Action,
		Detail:    d.Detail,
		Day:       types.Date(d.Day),
		Timestamp: d.Timestamp.UTC(),
	}, nil
}
