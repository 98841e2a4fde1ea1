// Package usage defines the append-only usage audit records.
package usage

import (
	"time"

	"github.com/fortunelabs/entitled/id"
	"github.com/fortunelabs/entitled/types"
)

// LogEntry records one successful quota-consuming action. Entries are
// append-only: never mutated, never deleted except by retention purges.
type LogEntry struct {
	ID        id.UsageLogID `json:"id"`
	UserID    string        `json:"user_id"`
	Action    string        `json:"action"`
	Detail    string        `json:"detail,omitempty"`
	Day       types.Date    `json:"day"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewLogEntry builds an entry for an action performed at the given instant.
func NewLogEntry(userID, action, detail string, at time.Time) *LogEntry {
	return &LogEntry{
		ID:        id.NewUsageLogID(),
		UserID:    userID,
		Action:    action,
		Detail:    detail,
		Day:       types.DateOf(at),
		Timestamp: at.UTC(),
	}
}

// QueryOpts filters usage log queries. A zero value means "no constraint".
type QueryOpts struct {
	From   types.Date // inclusive
	To     types.Date // inclusive
	Action string
	Limit  int
	Offset int
}

// Matches reports whether the entry satisfies the filter. Shared by the
// memory store and tests; SQL stores express the same predicate in queries.
func (o QueryOpts) Matches(e *LogEntry) bool {
	if !o.From.IsZero() && e.Day.Before(o.From) {
		return false
	}
	if !o.To.IsZero() && o.To.Before(e.Day) {
		return false
	}
	if o.Action != "" && e.Action != o.Action {
		return false
	}
	return true
}
