package structure

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kailas-cloud/structdex/internal/domain"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
)

// ErrBlockExhausted signals that a reserved identity block has no ids left.
var ErrBlockExhausted = errors.New("identity block exhausted")

// IDGenerator supplies identifiers for instances whose id member is unset.
type IDGenerator interface {
	Next(s *schema.Schema) (ID, error)
}

// Block hands out a pre-reserved range of identity values and random guids.
// Reservation happens before indexing so that building stays free of I/O.
type Block struct {
	mu   sync.Mutex
	next int64
	end  int64 // exclusive
}

// NewBlock creates a generator over the identity range [first, first+n).
func NewBlock(first, n int64) *Block {
	return &Block{next: first, end: first + n}
}

// Next returns the next id for the schema's id kind.
func (b *Block) Next(s *schema.Schema) (ID, error) {
	switch k := s.ID().Kind(); k {
	case schema.IDIdentity:
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.next >= b.end {
			return ID{}, fmt.Errorf("%s: %w", s.Name(), ErrBlockExhausted)
		}
		id := IdentityID(b.next)
		b.next++
		return id, nil
	case schema.IDGuid:
		u, err := uuid.NewRandom()
		if err != nil {
			return ID{}, fmt.Errorf("generate guid: %w", err)
		}
		return GuidID(u), nil
	default:
		return ID{}, fmt.Errorf("%s: %s ids are never generated: %w", s.Name(), k, domain.ErrInvalidDocument)
	}
}

// Remaining returns the number of identity values left in the block.
func (b *Block) Remaining() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.end - b.next
}
