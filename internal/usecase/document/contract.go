package document

import (
	"context"

	"github.com/kailas-cloud/structdex/internal/domain/query"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
	"github.com/kailas-cloud/structdex/internal/domain/structure"
)

// Repository defines the storage contract for structures.
type Repository interface {
	Insert(ctx context.Context, s *schema.Schema, items []structure.Structure) error
	Update(ctx context.Context, s *schema.Schema, item structure.Structure) error
	DeleteByID(ctx context.Context, s *schema.Schema, id structure.ID) (bool, error)
	DeleteByQuery(ctx context.Context, s *schema.Schema, q query.Query) (int64, error)
	DeleteAll(ctx context.Context, s *schema.Schema) (int64, error)
}

// Schemas resolves cached set schemas.
type Schemas interface {
	Schema(name string) (*schema.Schema, error)
}

// IdentityReserver reserves blocks of sequential ids.
type IdentityReserver interface {
	Reserve(ctx context.Context, set string, n int64) (int64, error)
}

// Synchronizer prunes stale side rows, at most once per interval per set.
type Synchronizer interface {
	Maybe(ctx context.Context, s *schema.Schema) error
}

// Reader loads the stored JSON of one structure.
type Reader interface {
	GetByID(ctx context.Context, set string, id structure.ID) (string, error)
}

// Observer records write operations.
type Observer interface {
	ObserveWrite(set, op string, n int, err error)
}
