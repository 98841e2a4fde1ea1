// Package audithook bridges engine lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on any
// particular audit system. Callers inject a RecorderFunc adapter that bridges
// to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fortunelabs/entitled/plugin"
	"github.com/fortunelabs/entitled/profile"
	"github.com/fortunelabs/entitled/usage"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin           = (*Extension)(nil)
	_ plugin.OnProfileCreated = (*Extension)(nil)
	_ plugin.OnProfileUpdated = (*Extension)(nil)
	_ plugin.OnTierChanged    = (*Extension)(nil)
	_ plugin.OnAddonGranted   = (*Extension)(nil)
	_ plugin.OnAddonRevoked   = (*Extension)(nil)
	_ plugin.OnUsageRecorded  = (*Extension)(nil)
	_ plugin.OnQuotaDenied    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. Defined
// locally so that this package carries no backend dependency — callers
// inject the concrete recorder at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges engine lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Profile lifecycle hooks
// ──────────────────────────────────────────────────

// OnProfileCreated implements plugin.OnProfileCreated.
func (e *Extension) OnProfileCreated(ctx context.Context, p interface{}) error {
	userID, tierCode := profileFields(p)
	return e.record(ctx, ActionProfileCreated, SeverityInfo, OutcomeSuccess,
		ResourceProfile, userID, CategoryAccount, nil,
		"user_id", userID,
		"tier", tierCode,
	)
}

// OnProfileUpdated implements plugin.OnProfileUpdated.
func (e *Extension) OnProfileUpdated(ctx context.Context, _, newProfile interface{}) error {
	userID, tierCode := profileFields(newProfile)
	return e.record(ctx, ActionProfileUpdated, SeverityInfo, OutcomeSuccess,
		ResourceProfile, userID, CategoryAccount, nil,
		"user_id", userID,
		"tier", tierCode,
	)
}

// OnTierChanged implements plugin.OnTierChanged.
func (e *Extension) OnTierChanged(ctx context.Context, p interface{}, from, to string, upgraded bool) error {
	action := ActionTierDowngraded
	severity := SeverityWarning
	if upgraded {
		action = ActionTierUpgraded
		severity = SeverityInfo
	}

	userID, _ := profileFields(p)
	return e.record(ctx, action, severity, OutcomeSuccess,
		ResourceTier, userID, CategoryAccount, nil,
		"user_id", userID,
		"from", from,
		"to", to,
	)
}

// ──────────────────────────────────────────────────
// Add-on hooks
// ──────────────────────────────────────────────────

// OnAddonGranted implements plugin.OnAddonGranted.
func (e *Extension) OnAddonGranted(ctx context.Context, userID, addon string) error {
	return e.record(ctx, ActionAddonGranted, SeverityInfo, OutcomeSuccess,
		ResourceAddon, addon, CategoryAccount, nil,
		"user_id", userID,
		"addon", addon,
	)
}

// OnAddonRevoked implements plugin.OnAddonRevoked.
func (e *Extension) OnAddonRevoked(ctx context.Context, userID, addon string) error {
	return e.record(ctx, ActionAddonRevoked, SeverityInfo, OutcomeSuccess,
		ResourceAddon, addon, CategoryAccount, nil,
		"user_id", userID,
		"addon", addon,
	)
}

// ──────────────────────────────────────────────────
// Usage and entitlement hooks
// ──────────────────────────────────────────────────

// OnUsageRecorded implements plugin.OnUsageRecorded.
func (e *Extension) OnUsageRecorded(ctx context.Context, entry interface{}) error {
	le, ok := entry.(*usage.LogEntry)
	if !ok {
		return e.record(ctx, ActionUsageRecorded, SeverityInfo, OutcomeSuccess,
			ResourceUsage, "", CategoryUsage, nil,
			"event", "usage_recorded",
		)
	}
	return e.record(ctx, ActionUsageRecorded, SeverityInfo, OutcomeSuccess,
		ResourceUsage, le.ID.String(), CategoryUsage, nil,
		"user_id", le.UserID,
		"action", le.Action,
		"day", string(le.Day),
	)
}

// OnQuotaDenied implements plugin.OnQuotaDenied.
func (e *Extension) OnQuotaDenied(ctx context.Context, userID, action string, used, limit int64) error {
	return e.record(ctx, ActionQuotaDenied, SeverityWarning, OutcomeDenied,
		ResourceEntitlement, userID, CategoryAccess, nil,
		"user_id", userID,
		"action", action,
		"used", used,
		"limit", limit,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func profileFields(p interface{}) (userID, tierCode string) {
	if prof, ok := p.(*profile.Profile); ok {
		return prof.UserID, string(prof.Tier)
	}
	return "", ""
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
