package bastion

import "github.com/xraph/bastion/id"

// ID is the primary identifier type for all Bastion entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
