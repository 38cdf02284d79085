package structdex

import (
	"context"
	"time"

	"github.com/kailas-cloud/structdex/internal/events"
)

// EventKind names the write that produced an Event.
type EventKind string

// Event kinds.
const (
	EventInserted       EventKind = EventKind(events.Inserted)
	EventUpdated        EventKind = EventKind(events.Updated)
	EventDeleted        EventKind = EventKind(events.Deleted)
	EventDeletedByQuery EventKind = EventKind(events.DeletedByQuery)
)

// Event describes a committed write.
type Event struct {
	Kind  EventKind
	Set   string
	IDs   []string // empty for EventDeletedByQuery
	Count int64
	At    time.Time
}

// handlerPublisher adapts a callback to the internal publisher contract.
type handlerPublisher struct {
	fn func(Event)
}

func (p *handlerPublisher) Publish(_ context.Context, evs ...events.Event) error {
	for _, e := range evs {
		p.fn(Event{
			Kind:  EventKind(e.Kind),
			Set:   e.Set,
			IDs:   e.IDs,
			Count: e.Count,
			At:    e.At,
		})
	}
	return nil
}

func (p *handlerPublisher) Close() error { return nil }
