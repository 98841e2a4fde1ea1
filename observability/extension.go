// Package observability provides a metrics extension that records engine
// lifecycle event counts through an injected MetricFactory.
package observability

import (
	"context"

	"github.com/fortunelabs/entitled/entitlement"
	"github.com/fortunelabs/entitled/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnProfileCreated     = (*MetricsExtension)(nil)
	_ plugin.OnProfileUpdated     = (*MetricsExtension)(nil)
	_ plugin.OnTierChanged        = (*MetricsExtension)(nil)
	_ plugin.OnAddonGranted       = (*MetricsExtension)(nil)
	_ plugin.OnAddonRevoked       = (*MetricsExtension)(nil)
	_ plugin.OnUsageRecorded      = (*MetricsExtension)(nil)
	_ plugin.OnEntitlementChecked = (*MetricsExtension)(nil)
	_ plugin.OnQuotaDenied        = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to automatically track entitlement metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Profile metrics
	ProfileCreated Counter
	ProfileUpdated Counter

	// Tier metrics
	TierUpgraded   Counter
	TierDowngraded Counter

	// Add-on metrics
	AddonGranted Counter
	AddonRevoked Counter

	// Usage metrics
	UsageRecorded Counter

	// Entitlement metrics
	EntitlementChecks Counter
	EntitlementDenied Counter
	QuotaRemaining    Histogram

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Profile metrics
		ProfileCreated: factory.Counter("entitled.profile.created"),
		ProfileUpdated: factory.Counter("entitled.profile.updated"),

		// Tier metrics
		TierUpgraded:   factory.Counter("entitled.tier.upgraded"),
		TierDowngraded: factory.Counter("entitled.tier.downgraded"),

		// Add-on metrics
		AddonGranted: factory.Counter("entitled.addon.granted"),
		AddonRevoked: factory.Counter("entitled.addon.revoked"),

		// Usage metrics
		UsageRecorded: factory.Counter("entitled.usage.recorded"),

		// Entitlement metrics
		EntitlementChecks: factory.Counter("entitled.entitlement.checks"),
		EntitlementDenied: factory.Counter("entitled.entitlement.denied"),
		QuotaRemaining:    factory.Histogram("entitled.quota.remaining"),

		// Error metrics
		StoreErrors:  factory.Counter("entitled.store.errors"),
		PluginErrors: factory.Counter("entitled.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Profile lifecycle hooks
// ──────────────────────────────────────────────────

// OnProfileCreated implements plugin.OnProfileCreated.
func (m *MetricsExtension) OnProfileCreated(_ context.Context, _ interface{}) error {
	m.ProfileCreated.Inc()
	return nil
}

// OnProfileUpdated implements plugin.OnProfileUpdated.
func (m *MetricsExtension) OnProfileUpdated(_ context.Context, _, _ interface{}) error {
	m.ProfileUpdated.Inc()
	return nil
}

// OnTierChanged implements plugin.OnTierChanged.
func (m *MetricsExtension) OnTierChanged(_ context.Context, _ interface{}, _, _ string, upgraded bool) error {
	if upgraded {
		m.TierUpgraded.Inc()
	} else {
		m.TierDowngraded.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Add-on lifecycle hooks
// ──────────────────────────────────────────────────

// OnAddonGranted implements plugin.OnAddonGranted.
func (m *MetricsExtension) OnAddonGranted(_ context.Context, _, _ string) error {
	m.AddonGranted.Inc()
	return nil
}

// OnAddonRevoked implements plugin.OnAddonRevoked.
func (m *MetricsExtension) OnAddonRevoked(_ context.Context, _, _ string) error {
	m.AddonRevoked.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Usage and entitlement hooks
// ──────────────────────────────────────────────────

// OnUsageRecorded implements plugin.OnUsageRecorded.
func (m *MetricsExtension) OnUsageRecorded(_ context.Context, _ interface{}) error {
	m.UsageRecorded.Inc()
	return nil
}

// OnEntitlementChecked implements plugin.OnEntitlementChecked.
func (m *MetricsExtension) OnEntitlementChecked(_ context.Context, result interface{}) error {
	m.EntitlementChecks.Inc()
	if res, ok := result.(*entitlement.Result); ok && res.Remaining >= 0 {
		m.QuotaRemaining.Observe(float64(res.Remaining))
	}
	return nil
}

// OnQuotaDenied implements plugin.OnQuotaDenied.
func (m *MetricsExtension) OnQuotaDenied(_ context.Context, _, _ string, _, _ int64) error {
	m.EntitlementDenied.Inc()
	return nil
}
