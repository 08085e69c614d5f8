package av

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// ─── Test Helpers ───────────────────────────────────────────────────────────

// testTiming removes settle delays and shortens the drain loop.
func testTiming() Timing {
	return Timing{
		DrainInterval: time.Millisecond,
		DrainAttempts: 50,
		HookTimeout:   5 * time.Second,
	}
}

func newTestEnv(t *testing.T, opts ...Option) *Environment {
	t.Helper()
	opts = append([]Option{WithTiming(testTiming())}, opts...)
	env := NewEnvironment(opts...)
	t.Cleanup(env.Wait)
	return env
}

func mustRoom(t *testing.T, env *Environment, opts RoomOptions) *Room {
	t.Helper()
	r, err := NewRoom(env, opts)
	if err != nil {
		t.Fatalf("NewRoom(%d): %v", opts.ID, err)
	}
	return r
}

func mustSource(t *testing.T, env *Environment, opts SourceOptions) *Source {
	t.Helper()
	s, err := NewSource(env, opts)
	if err != nil {
		t.Fatalf("NewSource(%d): %v", opts.ID, err)
	}
	return s
}

func waitOp(t *testing.T, op *Operation) {
	t.Helper()
	select {
	case <-op.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("operation did not finish")
	}
}

// recorder collects a single ordered trace of events and hook calls.
type recorder struct {
	mu      sync.Mutex
	entries []string
	events  []Event
}

func (r *recorder) add(entry string) {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

func (r *recorder) event(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()

	switch ev.Type {
	case EventPowerChanged:
		r.add(fmt.Sprintf("power:%t", ev.Power))
	case EventVideoChanged:
		r.add(fmt.Sprintf("video:%t", ev.Active))
	default:
		r.add(fmt.Sprintf("%s:%s", ev.Type, ev.Status))
	}
}

func (r *recorder) trace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *recorder) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) notifier() Notifier {
	return NotifierFunc(func(_ context.Context, ev Event) error {
		r.event(ev)
		return nil
	})
}

// ─── Fake Hooks ─────────────────────────────────────────────────────────────

// fakeHooks implements RoomHooks only.
type fakeHooks struct {
	mu        sync.Mutex
	rec       *recorder
	gates     map[uint]chan struct{} // source ID -> gate SourceShouldLoad waits on
	loadErr   error
	loadPanic bool
	onErr     error
	offErr    error
	offDelay  time.Duration // RoomPowerOffProcess sleeps this long first
	offCalls  []PowerOffReason
	started   chan uint // receives the source ID when a load starts
}

func newFakeHooks(rec *recorder) *fakeHooks {
	return &fakeHooks{
		rec:     rec,
		gates:   make(map[uint]chan struct{}),
		started: make(chan uint, 16),
	}
}

// gate makes loads of srcID block until release is called.
func (h *fakeHooks) gate(srcID uint) (release func()) {
	ch := make(chan struct{})
	h.mu.Lock()
	h.gates[srcID] = ch
	h.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (h *fakeHooks) SourceShouldLoad(ctx context.Context, _ *Room, _, next *Source, index uint) error {
	id := idOf(next)
	if h.rec != nil {
		h.rec.add(fmt.Sprintf("load:%d@%d", id, index))
	}
	select {
	case h.started <- id:
	default:
	}

	h.mu.Lock()
	gate := h.gates[id]
	err, panics := h.loadErr, h.loadPanic
	h.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if panics {
		panic("switcher exploded")
	}
	return err
}

func (h *fakeHooks) RoomPowerOnProcess(context.Context, *Room) error {
	if h.rec != nil {
		h.rec.add("hook:power_on")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.onErr
}

func (h *fakeHooks) RoomPowerOffProcess(_ context.Context, _ *Room, reason PowerOffReason) error {
	h.mu.Lock()
	delay := h.offDelay
	h.mu.Unlock()
	time.Sleep(delay)

	if h.rec != nil {
		h.rec.add("hook:power_off")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offCalls = append(h.offCalls, reason)
	return h.offErr
}

func (h *fakeHooks) powerOffReasons() []PowerOffReason {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]PowerOffReason(nil), h.offCalls...)
}

// fullHooks adds the optional third-party sync and pre power off hooks.
type fullHooks struct {
	*fakeHooks
	syncErr error
	synced  chan bool
}

func newFullHooks(rec *recorder) *fullHooks {
	return &fullHooks{fakeHooks: newFakeHooks(rec), synced: make(chan bool, 4)}
}

func (h *fullHooks) SyncThirdPartyPower(_ context.Context, _ *Room, power bool) error {
	h.synced <- power
	return h.syncErr
}

func (h *fullHooks) PrePowerOffProcess(context.Context, *Room, PowerOffReason) error {
	if h.rec != nil {
		h.rec.add("hook:pre_power_off")
	}
	return nil
}

// captureLogger records warnings and errors.
type captureLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *captureLogger) Debug(string, ...any) {}
func (l *captureLogger) Info(string, ...any)  {}
func (l *captureLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.msgs = append(l.msgs, "WARN "+msg)
	l.mu.Unlock()
}
func (l *captureLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.msgs = append(l.msgs, "ERROR "+msg)
	l.mu.Unlock()
}

// hookedLogger runs onInfo for every Info line, from inside the logging
// call.
type hookedLogger struct {
	captureLogger
	onInfo func(msg string)
}

func (l *hookedLogger) Info(msg string, _ ...any) {
	if l.onInfo != nil {
		l.onInfo(msg)
	}
}

func (l *captureLogger) has(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.msgs {
		if m == msg {
			return true
		}
	}
	return false
}
