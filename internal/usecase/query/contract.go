package query

import (
	"time"

	"github.com/kailas-cloud/structdex/internal/domain/schema"
)

// Schemas resolves cached set schemas.
type Schemas interface {
	Schema(name string) (*schema.Schema, error)
}

// Observer records query executions.
type Observer interface {
	ObserveQuery(set, shape string, d time.Duration, err error)
}
