package entitled

import "github.com/fortunelabs/entitled/id"

// ID is the primary identifier type for all Entitled entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
