package av

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MainOutput is the output index of a room's main display feed.
const MainOutput uint = 1

// RoomOptions describes a room at construction time.
type RoomOptions struct {
	ID         uint
	Name       string // defaults to "Room <id>"
	ScreenName string // defaults to Name

	// Hooks performs the hardware side of transitions. Defaults to NopHooks.
	Hooks RoomHooks

	// Parent is optional. See SetParent.
	Parent *Room

	// DefaultSource is used by DefaultSource when no main source has been
	// selected yet.
	DefaultSource *Source
}

// Room is a controllable space with a power state and one or more output
// indexes that can each present a source.
//
// Each room serialises its own state behind a mutex; hooks always run on
// worker goroutines owned by the environment, never under the lock.
//
// Thread Safety: all methods are safe for concurrent use.
type Room struct {
	env        *Environment
	id         uint
	name       string
	screenName string
	hooks      RoomHooks

	mu            sync.Mutex
	power         bool
	parent        *Room
	current       map[uint]*Source
	busy          map[uint]uint64 // output index -> owning selection token
	nextToken     uint64
	lastMain      *Source
	defaultSource *Source

	// outbox holds events in the order their state changes were made.
	// flushing is set while some caller is delivering it.
	outbox   []Event
	flushing bool

	// powerTail is closed when the most recently requested power sequence
	// has finished its hooks. Each new sequence waits on the previous one.
	powerTail chan struct{}

	listeners listenerList[Event]
}

// NewRoom creates a room and registers it with env.
// It fails with ErrDuplicateID if env already holds a room with the same ID.
func NewRoom(env *Environment, opts RoomOptions) (*Room, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil environment", ErrInvalidArgument)
	}
	if opts.ID == 0 {
		return nil, fmt.Errorf("%w: room id must be non-zero", ErrInvalidArgument)
	}

	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("Room %d", opts.ID)
	}
	screenName := opts.ScreenName
	if screenName == "" {
		screenName = name
	}
	hooks := opts.Hooks
	if hooks == nil {
		hooks = NopHooks{}
	}

	r := &Room{
		env:           env,
		id:            opts.ID,
		name:          name,
		screenName:    screenName,
		hooks:         hooks,
		current:       make(map[uint]*Source),
		busy:          make(map[uint]uint64),
		defaultSource: opts.DefaultSource,
	}

	if opts.Parent != nil {
		if err := r.SetParent(opts.Parent); err != nil {
			return nil, err
		}
	}

	if err := env.AddRoom(r); err != nil {
		return nil, err
	}
	return r, nil
}

// ID returns the room's unique ID.
func (r *Room) ID() uint { return r.id }

// Name returns the room name.
func (r *Room) Name() string { return r.name }

// ScreenName returns the name shown on panels.
func (r *Room) ScreenName() string { return r.screenName }

// Hooks returns the room's hardware hooks.
func (r *Room) Hooks() RoomHooks { return r.hooks }

// String implements fmt.Stringer.
func (r *Room) String() string {
	return fmt.Sprintf("Room[%d] %q", r.id, r.name)
}

// Power reports the room's power state. During a transition this is the
// requested state, not the state of the hardware.
func (r *Room) Power() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.power
}

// Parent returns the parent room, or nil.
func (r *Room) Parent() *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parent
}

// SetParent sets the parent room. A nil parent detaches the room. Parents
// must belong to the same environment and may not form a cycle.
func (r *Room) SetParent(parent *Room) error {
	r.env.hierarchyMu.Lock()
	defer r.env.hierarchyMu.Unlock()

	if parent != nil {
		if parent.env != r.env {
			return fmt.Errorf("%w: parent room %d belongs to another environment", ErrInvalidArgument, parent.id)
		}
		for p := parent; p != nil; p = p.Parent() {
			if p == r {
				return fmt.Errorf("%w: room %d cannot be its own ancestor", ErrInvalidArgument, r.id)
			}
		}
	}

	r.mu.Lock()
	r.parent = parent
	r.mu.Unlock()
	return nil
}

// ChildRooms returns the rooms whose parent is r. It is computed from the
// registry on every call.
func (r *Room) ChildRooms() *RoomCollection {
	return r.env.Rooms().ChildrenOf(r)
}

// Sources returns the sources visible to this room: assigned sources plus
// global ones, in default order.
func (r *Room) Sources() *SourceCollection {
	sources, _ := r.env.Sources().ForRoomOrGlobal(r)
	return sources
}

// CurrentSource returns the source on the given output index, or nil.
func (r *Room) CurrentSource(index uint) *Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current[index]
}

// CurrentSources returns a copy of the index to source map. Empty outputs
// are omitted.
func (r *Room) CurrentSources() map[uint]*Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uint]*Source, len(r.current))
	for i, s := range r.current {
		out[i] = s
	}
	return out
}

// LastMainSource returns the last non-nil source selected on MainOutput.
// It survives deselection and power off.
func (r *Room) LastMainSource() *Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastMain
}

// DefaultSource returns the source a panel should offer first: the last main
// source if the room can still see it, then the configured default, then the
// first visible source.
func (r *Room) DefaultSource() *Source {
	r.mu.Lock()
	last, def := r.lastMain, r.defaultSource
	r.mu.Unlock()

	sources := r.Sources()
	if sources.Contains(last) {
		return last
	}
	if def != nil {
		return def
	}
	if sources.Len() > 0 {
		return sources.At(0)
	}
	return nil
}

// SetDefaultSource sets the configured fallback for DefaultSource.
func (r *Room) SetDefaultSource(src *Source) {
	r.mu.Lock()
	r.defaultSource = src
	r.mu.Unlock()
}

// IsBusy reports whether a selection is in flight on index.
func (r *Room) IsBusy(index uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.busy[index]
	return ok
}

// AnyBusy reports whether a selection is in flight on any index.
func (r *Room) AnyBusy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.busy) > 0
}

// BusyIndexes returns the output indexes with a selection in flight, sorted.
func (r *Room) BusyIndexes() []uint {
	r.mu.Lock()
	idx := make([]uint, 0, len(r.busy))
	for i := range r.busy {
		idx = append(idx, i)
	}
	r.mu.Unlock()
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	return idx
}

// Subscribe registers fn for every event the room emits. Events for a given
// output index arrive in order; fn must not block for long. The returned func
// unsubscribes.
func (r *Room) Subscribe(fn func(Event)) func() {
	return r.listeners.add(fn)
}

// emit queues ev and delivers the room's outbox.
func (r *Room) emit(ev Event) {
	r.mu.Lock()
	r.queueLocked(ev)
	r.mu.Unlock()
	r.flush()
}

// queueLocked appends ev to the outbox. Callers hold r.mu and queue in the
// same critical section as the change ev describes, so the event stream
// matches the order of the changes.
func (r *Room) queueLocked(ev Event) {
	ev.RoomID = r.id
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	r.outbox = append(r.outbox, ev)
}

func (r *Room) queuePowerLocked(power bool, reason PowerOffReason) {
	r.queueLocked(Event{
		Type:   EventPowerChanged,
		Power:  power,
		Reason: string(reason),
	})
}

// flush delivers the outbox to the notifier and then to local subscribers,
// one event at a time and never under r.mu. If another call is already
// delivering, including one further up this goroutine's stack when a
// subscriber reacts to an event, flush returns and leaves the queue to it.
func (r *Room) flush() {
	r.mu.Lock()
	if r.flushing {
		r.mu.Unlock()
		return
	}
	r.flushing = true
	for len(r.outbox) > 0 {
		ev := r.outbox[0]
		r.outbox[0] = Event{}
		r.outbox = r.outbox[1:]
		r.mu.Unlock()

		r.env.notify(ev)
		r.listeners.emit(r.env.logger, ev)

		r.mu.Lock()
	}
	r.outbox = nil
	r.flushing = false
	r.mu.Unlock()
}

// powerStep is one link in a room's chain of power sequences.
type powerStep struct {
	prev <-chan struct{}
	done chan struct{}
}

// nextPowerStepLocked appends a link to the power chain. r.mu must be held
// by the caller that just changed r.power.
func (r *Room) nextPowerStepLocked() *powerStep {
	step := &powerStep{prev: r.powerTail, done: make(chan struct{})}
	r.powerTail = step.done
	return step
}

// wait blocks until every earlier power sequence of the room has finished.
func (s *powerStep) wait() {
	if s.prev != nil {
		<-s.prev
	}
}

func (s *powerStep) finish() {
	close(s.done)
}
