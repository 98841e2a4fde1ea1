package entitled

import "github.com/fortunelabs/entitled/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Date is re-exported from types package.
type Date = types.Date

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	USD  = types.USD
	EUR  = types.EUR
	GBP  = types.GBP
	Zero = types.Zero
)

// Re-export Date constructors
var (
	DateOf    = types.DateOf
	ParseDate = types.ParseDate
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
