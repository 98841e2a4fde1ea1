// Package plugin provides an extensible plugin system for the entitled engine.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import "context"

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Profile lifecycle hooks
// ──────────────────────────────────────────────────

// OnProfileCreated is called when a first-time user's profile is created.
type OnProfileCreated interface {
	Plugin
	OnProfileCreated(ctx context.Context, p interface{}) error
}

// OnProfileUpdated is called when a profile is updated.
type OnProfileUpdated interface {
	Plugin
	OnProfileUpdated(ctx context.Context, oldProfile, newProfile interface{}) error
}

// OnTierChanged is called when a profile moves between tiers.
// upgraded is true when the new tier ranks above the old one.
type OnTierChanged interface {
	Plugin
	OnTierChanged(ctx context.Context, p interface{}, from, to string, upgraded bool) error
}

// ──────────────────────────────────────────────────
// Add-on hooks
// ──────────────────────────────────────────────────

// OnAddonGranted is called when an add-on is added to a profile's active set.
type OnAddonGranted interface {
	Plugin
	OnAddonGranted(ctx context.Context, userID, addon string) error
}

// OnAddonRevoked is called when an add-on is removed from a profile's active set.
type OnAddonRevoked interface {
	Plugin
	OnAddonRevoked(ctx context.Context, userID, addon string) error
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnUsageRecorded is called when a quota-consuming action is recorded.
type OnUsageRecorded interface {
	Plugin
	OnUsageRecorded(ctx context.Context, entry interface{}) error
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnEntitlementChecked is called when a quota entitlement is evaluated.
type OnEntitlementChecked interface {
	Plugin
	OnEntitlementChecked(ctx context.Context, result interface{}) error
}

// OnQuotaDenied is called when a quota check denies an action.
type OnQuotaDenied interface {
	Plugin
	OnQuotaDenied(ctx context.Context, userID, action string, used, limit int64) error
}
