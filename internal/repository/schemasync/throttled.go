package schemasync

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/structdex/internal/domain/schema"
)

// DefaultInterval bounds how often a set is synchronized on the write path.
const DefaultInterval = time.Minute

// Throttled runs a Synchronizer at most once per interval per set. The first
// call for a set always runs.
type Throttled struct {
	sync     *Synchronizer
	interval time.Duration

	mu  sync.Mutex
	per map[string]*rate.Sometimes
}

// NewThrottled wraps sy. A non-positive interval falls back to DefaultInterval.
func NewThrottled(sy *Synchronizer, interval time.Duration) *Throttled {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Throttled{sync: sy, interval: interval, per: make(map[string]*rate.Sometimes)}
}

// Maybe synchronizes s unless it was synchronized within the interval.
// A failed run is forgotten so the next call retries.
func (t *Throttled) Maybe(ctx context.Context, s *schema.Schema) error {
	var err error
	t.sometimes(s.Name()).Do(func() {
		err = t.sync.All(ctx, s)
	})
	if err != nil {
		t.Reset(s.Name())
	}
	return err
}

// Reset makes the next Maybe for set run immediately, e.g. after its schema changed.
func (t *Throttled) Reset(set string) {
	t.mu.Lock()
	delete(t.per, set)
	t.mu.Unlock()
}

func (t *Throttled) sometimes(set string) *rate.Sometimes {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.per[set]
	if !ok {
		st = &rate.Sometimes{Interval: t.interval}
		t.per[set] = st
	}
	return st
}
