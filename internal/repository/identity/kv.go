package identity

import (
	"context"
	"fmt"
)

// kvStore is the consumer interface of the key-value reserver (ISP).
type kvStore interface {
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Del(ctx context.Context, key string) error
}

// KV reserves ids with an atomic increment per set, e.g. on Redis or Valkey.
type KV struct {
	store kvStore
}

// NewKV creates a key-value reserver.
func NewKV(s kvStore) *KV {
	return &KV{store: s}
}

// Reserve returns the first id of a block of n consecutive ids for set.
func (r *KV) Reserve(ctx context.Context, set string, n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("reserve %d ids: block size must be positive", n)
	}
	last, err := r.store.IncrBy(ctx, key(set), n)
	if err != nil {
		return 0, fmt.Errorf("reserve %s: %w", set, err)
	}
	return last - n + 1, nil
}

// Forget removes the counter of a dropped set.
func (r *KV) Forget(ctx context.Context, set string) error {
	return r.store.Del(ctx, key(set))
}

func key(set string) string { return "ids:" + set }
