// Package events publishes structure change events after a write commits.
package events

import (
	"context"
	"sync"
	"time"
)

// Kind names a change.
type Kind string

// Change kinds.
const (
	Inserted       Kind = "inserted"
	Updated        Kind = "updated"
	Deleted        Kind = "deleted"
	DeletedByQuery Kind = "deleted_by_query"
)

// Event describes one committed write. IDs lists affected structures when
// they are known; Count is the number of affected structures.
type Event struct {
	Kind  Kind      `json:"kind"`
	Set   string    `json:"set"`
	IDs   []string  `json:"ids,omitempty"`
	Count int64     `json:"count"`
	At    time.Time `json:"at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// Noop discards events.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(context.Context, ...Event) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }

// Memory keeps events in memory, for tests and embedding.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory creates an in-memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish appends events.
func (m *Memory) Publish(_ context.Context, events ...Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

// Events returns a copy of the published events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Reset discards the published events.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.events = nil
	m.mu.Unlock()
}

// Close does nothing.
func (m *Memory) Close() error { return nil }
