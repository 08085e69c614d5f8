package av

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// EventType identifies the kind of state change an Event describes.
type EventType string

// Event types emitted by rooms and sources.
const (
	// EventPowerChanged fires when Room.Power flips.
	EventPowerChanged EventType = "room.power_changed"

	// EventSourceChanged carries the Pending/Complete/Failed lifecycle of a
	// source selection.
	EventSourceChanged EventType = "room.source_changed"

	// EventSourceTargetChanged fires once a selection has finished (either
	// way) and the output is free again.
	EventSourceTargetChanged EventType = "room.source_target_changed"

	// EventVideoChanged fires when a source's video activity flips.
	EventVideoChanged EventType = "source.video_changed"
)

// Status is the phase of a source selection or power transition.
type Status string

// Status values.
const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
	StatusNoChange Status = "no_change"
)

// Event describes one state transition. Which fields are meaningful depends
// on Type; Payload returns the wire shape for each type.
type Event struct {
	Type             EventType `json:"type"`
	RoomID           uint      `json:"room_id,omitempty"`
	SourceID         uint      `json:"source_id,omitempty"`
	PreviousSourceID uint      `json:"previous_source_id,omitempty"`
	OutputIndex      uint      `json:"output_index,omitempty"`
	Status           Status    `json:"status,omitempty"`
	Power            bool      `json:"power"`
	Active           bool      `json:"active"`
	Reason           string    `json:"reason,omitempty"`
	Error            string    `json:"error,omitempty"`
	Time             time.Time `json:"time"`
}

// Payload returns the notification payload for the event. A source ID of 0
// means "no source".
func (e Event) Payload() map[string]any {
	switch e.Type {
	case EventPowerChanged:
		p := map[string]any{
			"room_id": e.RoomID,
			"power":   e.Power,
		}
		if e.Reason != "" {
			p["reason"] = e.Reason
		}
		return p
	case EventSourceChanged, EventSourceTargetChanged:
		p := map[string]any{
			"room_id":      e.RoomID,
			"source_id":    e.SourceID,
			"status":       string(e.Status),
			"output_index": e.OutputIndex,
		}
		if e.Error != "" {
			p["error"] = e.Error
		}
		return p
	case EventVideoChanged:
		return map[string]any{
			"source_id": e.SourceID,
			"active":    e.Active,
		}
	default:
		return map[string]any{"type": string(e.Type)}
	}
}

// String implements fmt.Stringer for log output.
func (e Event) String() string {
	switch e.Type {
	case EventPowerChanged:
		return fmt.Sprintf("%s room=%d power=%t", e.Type, e.RoomID, e.Power)
	case EventVideoChanged:
		return fmt.Sprintf("%s source=%d active=%t", e.Type, e.SourceID, e.Active)
	default:
		return fmt.Sprintf("%s room=%d source=%d index=%d status=%s", e.Type, e.RoomID, e.SourceID, e.OutputIndex, e.Status)
	}
}

// Notifier is the external event service. Rooms and sources call Notify
// exactly once per transition; errors and panics are logged and dropped.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, ev Event) error

// Notify calls f(ctx, ev).
func (f NotifierFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// listenerList is an ordered, concurrency-safe list of callbacks.
type listenerList[T any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries []listenerEntry[T]
}

type listenerEntry[T any] struct {
	id uint64
	fn func(T)
}

// add registers fn and returns a func that removes it again.
func (l *listenerList[T]) add(fn func(T)) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, listenerEntry[T]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, e := range l.entries {
				if e.id == id {
					l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
					return
				}
			}
		})
	}
}

// emit calls every listener registered at the time of the call. Listener
// panics are recovered and logged so one bad observer cannot break the rest.
func (l *listenerList[T]) emit(logger Logger, v T) {
	l.mu.Lock()
	fns := make([]func(T), len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	l.mu.Unlock()

	for _, fn := range fns {
		callListener(logger, fn, v)
	}
}

func callListener[T any](logger Logger, fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("listener panic recovered", "panic", r)
		}
	}()
	fn(v)
}
