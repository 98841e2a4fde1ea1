package audithook

// Action constants for audit events.
const (
	// Profile actions
	ActionProfileCreated = "profile.created"
	ActionProfileUpdated = "profile.updated"

	// Tier actions
	ActionTierUpgraded   = "tier.upgraded"
	ActionTierDowngraded = "tier.downgraded"

	// Add-on actions
	ActionAddonGranted = "addon.granted"
	ActionAddonRevoked = "addon.revoked"

	// Usage actions
	ActionUsageRecorded = "usage.recorded"

	// Entitlement actions
	ActionEntitlementChecked = "entitlement.checked"
	ActionQuotaDenied        = "quota.denied"
)

// Resource constants for audit events.
const (
	ResourceProfile     = "profile"
	ResourceTier        = "tier"
	ResourceAddon       = "addon"
	ResourceUsage       = "usage"
	ResourceEntitlement = "entitlement"
)

// Category constants for audit events.
const (
	CategoryAccount = "account"
	CategoryUsage   = "usage"
	CategoryAccess  = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)
