package database

import (
	"context"

	"github.com/kailas-cloud/structdex/internal/domain/schema"
)

// Tables creates and drops the storage tables of a set.
type Tables interface {
	Upsert(ctx context.Context, s *schema.Schema) error
	Drop(ctx context.Context, s *schema.Schema) error
}

// Synchronizer prunes side-table rows of members a schema no longer declares.
type Synchronizer interface {
	All(ctx context.Context, s *schema.Schema) error
}

// IdentityForgetter removes the id counter of a dropped set.
type IdentityForgetter interface {
	Forget(ctx context.Context, set string) error
}

// SyncResetter forgets when a set was last synchronized.
type SyncResetter interface {
	Reset(set string)
}
