package anchor

import (
	"context"
	"time"
)

// Window is a half-open time range [Start, End) of accepted events.
type Window struct {
	Start time.Time
	End   time.Time
}

// Validate returns ErrInvalidWindow when End precedes Start. An empty window
// (Start == End) is valid and anchors to the hash of empty input.
func (w Window) Validate() error {
	if w.End.Before(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// EventLister produces the ordered events of a time window.
type EventLister interface {
	// ListEvents returns a lazy iterator. No I/O happens until the first Next.
	ListEvents(start, end time.Time) EventIterator
}

// EventIterator pulls events one at a time in source order.
type EventIterator interface {
	// Next returns the next event, Done when the window is exhausted, or the
	// error that stopped iteration. After a non-nil error Next must not be called.
	Next(ctx context.Context) (RawEvent, error)
}

// StaticEvents is an in-memory EventLister that yields the same events for every
// window. It is used for replaying exported events and in tests.
type StaticEvents []RawEvent

// Events returns a StaticEvents lister over evs.
func Events(evs ...RawEvent) StaticEvents {
	return StaticEvents(evs)
}

// ListEvents implements EventLister.
func (s StaticEvents) ListEvents(start, end time.Time) EventIterator {
	return &sliceIterator{events: s}
}

type sliceIterator struct {
	events []RawEvent
	pos    int
}

func (it *sliceIterator) Next(ctx context.Context) (RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.events) {
		return nil, Done
	}
	ev := it.events[it.pos]
	it.pos++
	return ev, nil
}
