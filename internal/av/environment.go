package av

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Timing holds the fixed delays and bounds used by the room state machines.
type Timing struct {
	// SourceSettle is waited after a successful SourceShouldLoad before
	// Complete is emitted.
	SourceSettle time.Duration

	// PowerOnSettle is waited after a selection forced the room on, before
	// the source is loaded.
	PowerOnSettle time.Duration

	// DrainInterval and DrainAttempts bound how long PowerOff waits for
	// in-flight selections before force-clearing them.
	DrainInterval time.Duration
	DrainAttempts int

	// HookTimeout bounds the context passed to every hook.
	HookTimeout time.Duration
}

// DefaultTiming returns the production timing values.
func DefaultTiming() Timing {
	return Timing{
		SourceSettle:  500 * time.Millisecond,
		PowerOnSettle: time.Second,
		DrainInterval: 100 * time.Millisecond,
		DrainAttempts: 100,
		HookTimeout:   30 * time.Second,
	}
}

// Option configures an Environment.
type Option func(*Environment)

// WithLogger sets the logger shared by all rooms and sources.
func WithLogger(logger Logger) Option {
	return func(e *Environment) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithNotifier sets the external event service.
func WithNotifier(n Notifier) Option {
	return func(e *Environment) {
		e.notifier = n
	}
}

// WithTiming overrides DefaultTiming.
func WithTiming(t Timing) Option {
	return func(e *Environment) {
		e.timing = t
	}
}

// WithContext sets the parent context for hook calls. Cancelling it cancels
// every hook in flight.
func WithContext(ctx context.Context) Option {
	return func(e *Environment) {
		if ctx != nil {
			e.ctx = ctx
		}
	}
}

// Environment is the registry of rooms and sources. It replaces a
// process-wide singleton: tests build as many isolated environments as they
// need.
//
// Registration is expected at start-up (possibly from several goroutines);
// after that the maps are effectively read-only. Entries are never removed.
//
// Thread Safety: all methods are safe for concurrent use.
type Environment struct {
	mu      sync.RWMutex
	rooms   map[uint]*Room
	sources map[uint]*Source

	ctx      context.Context
	logger   Logger
	notifier Notifier
	timing   Timing

	// hierarchyMu serialises SetParent so concurrent calls cannot close a
	// cycle between them.
	hierarchyMu sync.Mutex

	// workers tracks room goroutines so Wait/Shutdown can drain them.
	workers sync.WaitGroup
}

// NewEnvironment creates an empty environment.
func NewEnvironment(opts ...Option) *Environment {
	e := &Environment{
		rooms:   make(map[uint]*Room),
		sources: make(map[uint]*Source),
		ctx:     context.Background(),
		logger:  noopLogger{},
		timing:  DefaultTiming(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timing returns the environment's timing values.
func (e *Environment) Timing() Timing {
	return e.timing
}

// AddRoom registers room. NewRoom calls this; it is exported for callers
// that need the registry surface directly.
func (e *Environment) AddRoom(room *Room) error {
	if room == nil {
		return fmt.Errorf("%w: nil room", ErrInvalidArgument)
	}
	if room.env != e {
		return fmt.Errorf("%w: room %d belongs to another environment", ErrInvalidArgument, room.id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rooms[room.id]; exists {
		return fmt.Errorf("%w: room id %d already registered", ErrDuplicateID, room.id)
	}
	e.rooms[room.id] = room
	e.logger.Debug("room registered", "room_id", room.id, "name", room.name)
	return nil
}

// AddSource registers src. NewSource calls this.
func (e *Environment) AddSource(src *Source) error {
	if src == nil {
		return fmt.Errorf("%w: nil source", ErrInvalidArgument)
	}
	if src.env != e {
		return fmt.Errorf("%w: source %d belongs to another environment", ErrInvalidArgument, src.id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.sources[src.id]; exists {
		return fmt.Errorf("%w: source id %d already registered", ErrDuplicateID, src.id)
	}
	e.sources[src.id] = src
	e.logger.Debug("source registered", "source_id", src.id, "name", src.name)
	return nil
}

// Room returns the room with the given ID.
func (e *Environment) Room(id uint) (*Room, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if r, ok := e.rooms[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrRoomNotFound, id)
}

// Source returns the source with the given ID.
func (e *Environment) Source(id uint) (*Source, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if s, ok := e.sources[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrSourceNotFound, id)
}

// Rooms returns a snapshot of all rooms ordered by ID.
func (e *Environment) Rooms() *RoomCollection {
	e.mu.RLock()
	rooms := make([]*Room, 0, len(e.rooms))
	for _, r := range e.rooms {
		rooms = append(rooms, r)
	}
	e.mu.RUnlock()
	return NewRoomCollection(rooms...)
}

// Sources returns a snapshot of all sources in default order.
func (e *Environment) Sources() *SourceCollection {
	e.mu.RLock()
	sources := make([]*Source, 0, len(e.sources))
	for _, s := range e.sources {
		sources = append(sources, s)
	}
	e.mu.RUnlock()
	return NewSourceCollection(sources...)
}

// RoomCount returns the number of registered rooms.
func (e *Environment) RoomCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rooms)
}

// SourceCount returns the number of registered sources.
func (e *Environment) SourceCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sources)
}

// Wait blocks until every room worker started so far has finished.
func (e *Environment) Wait() {
	e.workers.Wait()
}

// Shutdown powers off every powered room with PowerOffShutdown and waits for
// all workers, giving up when ctx is done.
func (e *Environment) Shutdown(ctx context.Context) error {
	for _, room := range e.Rooms().Powered().All() {
		if _, err := room.PowerOff(PowerOffShutdown); err != nil {
			e.logger.Warn("shutdown power off failed", "room_id", room.id, "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		e.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for room workers: %w", ctx.Err())
	}
}

// spawn runs fn on a tracked goroutine.
func (e *Environment) spawn(fn func()) {
	e.workers.Add(1)
	go func() {
		defer e.workers.Done()
		fn()
	}()
}

// hookContext returns the context handed to hooks.
func (e *Environment) hookContext() (context.Context, context.CancelFunc) {
	if e.timing.HookTimeout <= 0 {
		return context.WithCancel(e.ctx)
	}
	return context.WithTimeout(e.ctx, e.timing.HookTimeout)
}

// notify forwards ev to the notifier. Failures are logged, never returned.
func (e *Environment) notify(ev Event) {
	if e.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("notifier panic recovered", "event", ev.Type, "panic", r)
		}
	}()
	if err := e.notifier.Notify(e.ctx, ev); err != nil {
		e.logger.Warn("event notification failed", "event", ev.Type, "error", err)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
