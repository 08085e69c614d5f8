package av

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

// ─── Source Selection ───────────────────────────────────────────────────────

func TestSelectSourceForcesPowerOn(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(t, WithNotifier(rec.notifier()))
	hooks := newFakeHooks(rec)
	room := mustRoom(t, env, RoomOptions{ID: 1, Hooks: hooks})
	pc := mustSource(t, env, SourceOptions{ID: 10, Type: SourceTypePC})

	release := hooks.gate(pc.ID())
	op, err := room.SelectSourceAsync(pc, MainOutput)
	if err != nil {
		t.Fatalf("SelectSourceAsync: %v", err)
	}

	// Synchronous part: power flipped, Pending emitted before the hook ran.
	if !room.Power() {
		t.Error("Power() = false immediately after selecting on an off room")
	}
	got := rec.trace()
	if len(got) < 2 || got[0] != "room.source_changed:pending" || got[1] != "power:true" {
		t.Fatalf("trace after return = %v, want pending then power:true first", got)
	}
	if op.Status() != StatusPending {
		t.Errorf("op.Status() = %q, want pending", op.Status())
	}
	if !room.IsBusy(MainOutput) {
		t.Error("IsBusy(1) = false while hook is blocked")
	}

	release()
	waitOp(t, op)

	want := []string{
		"room.source_changed:pending",
		"power:true",
		"hook:power_on",
		"load:10@1",
		"room.source_changed:complete",
		"room.source_target_changed:complete",
	}
	if got := rec.trace(); !reflect.DeepEqual(got, want) {
		t.Errorf("trace = %v\nwant    %v", got, want)
	}
	if op.Status() != StatusComplete || op.Err() != nil {
		t.Errorf("op = %q/%v, want complete/nil", op.Status(), op.Err())
	}
	if room.CurrentSource(MainOutput) != pc {
		t.Errorf("CurrentSource(1) = %v, want %v", room.CurrentSource(MainOutput), pc)
	}
	if room.IsBusy(MainOutput) {
		t.Error("IsBusy(1) = true after completion")
	}
}

func TestSelectSourceSameSourceIsNoChange(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(t, WithNotifier(rec.notifier()))
	room := mustRoom(t, env, RoomOptions{ID: 1})
	pc := mustSource(t, env, SourceOptions{ID: 10})

	op, err := room.SelectSourceAsync(pc, MainOutput)
	if err != nil {
		t.Fatalf("SelectSourceAsync: %v", err)
	}
	waitOp(t, op)
	before := rec.eventCount()

	tests := []struct {
		name  string
		src   *Source
		index uint
	}{
		{"current source", pc, MainOutput},
		{"nil on empty output", nil, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := room.SelectSourceAsync(tt.src, tt.index)
			if err != nil {
				t.Fatalf("SelectSourceAsync: %v", err)
			}
			select {
			case <-op.Done():
			default:
				t.Fatal("no-change operation is not already done")
			}
			if op.Status() != StatusNoChange {
				t.Errorf("Status() = %q, want no_change", op.Status())
			}
			if got := rec.eventCount(); got != before {
				t.Errorf("events = %d, want %d (no new events)", got, before)
			}
		})
	}
	if pc.ActiveUseCount() != 1 {
		t.Errorf("ActiveUseCount() = %d, want 1", pc.ActiveUseCount())
	}
}

func TestSelectSourceBusyIsPerIndex(t *testing.T) {
	env := newTestEnv(t)
	hooks := newFakeHooks(nil)
	room := mustRoom(t, env, RoomOptions{ID: 1, Hooks: hooks})
	a := mustSource(t, env, SourceOptions{ID: 1, Name: "A"})
	b := mustSource(t, env, SourceOptions{ID: 2, Name: "B"})

	release := hooks.gate(a.ID())
	defer release()

	opA, err := room.SelectSourceAsync(a, 1)
	if err != nil {
		t.Fatalf("select A on 1: %v", err)
	}

	_, err = room.SelectSourceAsync(b, 1)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("select B on busy output 1: err = %v, want ErrBusy", err)
	}
	if room.CurrentSource(1) != a || b.ActiveUseCount() != 0 {
		t.Error("rejected selection mutated state")
	}

	opB, err := room.SelectSourceAsync(b, 2)
	if err != nil {
		t.Fatalf("select B on output 2: %v", err)
	}
	waitOp(t, opB)
	if opB.Status() != StatusComplete {
		t.Errorf("output 2 status = %q, want complete", opB.Status())
	}
	if !room.IsBusy(1) {
		t.Error("output 1 no longer busy while its hook is blocked")
	}

	release()
	waitOp(t, opA)
	if room.AnyBusy() {
		t.Errorf("BusyIndexes() = %v after both finished", room.BusyIndexes())
	}
}

func TestSelectSourceHookFailureDoesNotRollBack(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *fakeHooks)
		wantMsg string
	}{
		{"error", func(h *fakeHooks) { h.loadErr = errors.New("matrix offline") }, "matrix offline"},
		{"panic", func(h *fakeHooks) { h.loadPanic = true }, "panic: switcher exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			log := &captureLogger{}
			env := newTestEnv(t, WithNotifier(rec.notifier()), WithLogger(log))
			hooks := newFakeHooks(nil)
			tt.setup(hooks)
			room := mustRoom(t, env, RoomOptions{ID: 1, Hooks: hooks})
			pc := mustSource(t, env, SourceOptions{ID: 10})

			op, err := room.SelectSourceAsync(pc, MainOutput)
			if err != nil {
				t.Fatalf("SelectSourceAsync returned %v, want nil (failures are async)", err)
			}
			waitOp(t, op)

			if op.Status() != StatusFailed {
				t.Errorf("Status() = %q, want failed", op.Status())
			}
			if !errors.Is(op.Err(), ErrHookFailed) || !strings.Contains(op.Err().Error(), tt.wantMsg) {
				t.Errorf("Err() = %v, want ErrHookFailed containing %q", op.Err(), tt.wantMsg)
			}
			if room.CurrentSource(MainOutput) != pc {
				t.Error("CurrentSource rolled back after failure")
			}
			if pc.ActiveUseCount() != 1 {
				t.Errorf("ActiveUseCount() = %d, want 1", pc.ActiveUseCount())
			}
			if room.IsBusy(MainOutput) {
				t.Error("busy flag not cleared after failure")
			}
			if !log.has("ERROR source selection failed") {
				t.Error("failure not logged")
			}

			trace := rec.trace()
			last := trace[len(trace)-2:]
			want := []string{"room.source_changed:failed", "room.source_target_changed:failed"}
			if !reflect.DeepEqual(last, want) {
				t.Errorf("final events = %v, want %v", last, want)
			}
		})
	}
}

func TestSelectSourceRejectsInvalidArguments(t *testing.T) {
	env := newTestEnv(t)
	other := newTestEnv(t)
	room := mustRoom(t, env, RoomOptions{ID: 1})
	src := mustSource(t, env, SourceOptions{ID: 1})
	foreign := mustSource(t, other, SourceOptions{ID: 2})

	if _, err := room.SelectSourceAsync(src, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("index 0: err = %v, want ErrInvalidArgument", err)
	}
	if _, err := room.SelectSourceAsync(foreign, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("foreign source: err = %v, want ErrInvalidArgument", err)
	}
	if room.AnyBusy() || room.Power() {
		t.Error("rejected request mutated room state")
	}
}

// ─── Active Use ─────────────────────────────────────────────────────────────

func TestActiveUseCountMatchesSlots(t *testing.T) {
	env := newTestEnv(t)
	r1 := mustRoom(t, env, RoomOptions{ID: 1})
	r2 := mustRoom(t, env, RoomOptions{ID: 2})
	s1 := mustSource(t, env, SourceOptions{ID: 1})
	s2 := mustSource(t, env, SourceOptions{ID: 2})
	s3 := mustSource(t, env, SourceOptions{ID: 3})
	rooms := []*Room{r1, r2}
	sources := []*Source{s1, s2, s3}

	steps := []struct {
		room  *Room
		src   *Source
		index uint
	}{
		{r1, s1, 1},
		{r2, s1, 1},
		{r1, s2, 2},
		{r1, s2, 1},
		{r2, s3, 1},
		{r2, s1, 3},
		{r1, nil, 1},
		{r1, s1, 2},
		{r2, nil, 3},
		{r2, nil, 1},
		{r1, s3, 1},
	}

	for i, st := range steps {
		op, err := st.room.SelectSourceAsync(st.src, st.index)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		waitOp(t, op)

		want := make(map[*Source]int)
		for _, r := range rooms {
			for _, s := range r.CurrentSources() {
				want[s]++
			}
		}
		for _, s := range sources {
			if got := s.ActiveUseCount(); got != want[s] {
				t.Errorf("step %d: %v ActiveUseCount() = %d, want %d", i, s, got, want[s])
			}
		}
	}
}

func TestActiveUseHookCalledOnChange(t *testing.T) {
	log := &captureLogger{}
	env := newTestEnv(t, WithLogger(log))
	r1 := mustRoom(t, env, RoomOptions{ID: 1})
	r2 := mustRoom(t, env, RoomOptions{ID: 2})

	var (
		mu     sync.Mutex
		counts []int
	)
	src := mustSource(t, env, SourceOptions{
		ID: 1,
		Hook: ActiveUseHookFunc(func(_ *Source, n int) error {
			mu.Lock()
			counts = append(counts, n)
			mu.Unlock()
			if n == 2 {
				panic("hook bug")
			}
			return nil
		}),
	})

	for _, step := range []struct {
		room *Room
		src  *Source
	}{{r1, src}, {r2, src}, {r1, nil}} {
		op, err := step.room.SelectSourceAsync(step.src, MainOutput)
		if err != nil {
			t.Fatalf("SelectSourceAsync: %v", err)
		}
		waitOp(t, op)
	}

	mu.Lock()
	defer mu.Unlock()
	if want := []int{1, 2, 1}; !reflect.DeepEqual(counts, want) {
		t.Errorf("hook counts = %v, want %v", counts, want)
	}
	if src.ActiveUseCount() != 1 {
		t.Errorf("ActiveUseCount() = %d, want 1", src.ActiveUseCount())
	}
	if !log.has("ERROR active use hook failed") {
		t.Error("hook panic not logged")
	}
}

func TestLastMainAndDefaultSource(t *testing.T) {
	env := newTestEnv(t)
	room := mustRoom(t, env, RoomOptions{ID: 1})
	first := mustSource(t, env, SourceOptions{ID: 1, Name: "Lectern PC", Priority: 1})
	second := mustSource(t, env, SourceOptions{ID: 2, Name: "Apple TV", Priority: 2})

	if got := room.DefaultSource(); got != first {
		t.Errorf("DefaultSource() with no history = %v, want %v", got, first)
	}

	room.SetDefaultSource(second)
	if got := room.DefaultSource(); got != second {
		t.Errorf("DefaultSource() with configured default = %v, want %v", got, second)
	}

	for _, step := range []struct {
		src   *Source
		index uint
	}{{second, 1}, {first, 2}, {nil, 1}} {
		op, err := room.SelectSourceAsync(step.src, step.index)
		if err != nil {
			t.Fatalf("SelectSourceAsync: %v", err)
		}
		waitOp(t, op)
	}

	if got := room.LastMainSource(); got != second {
		t.Errorf("LastMainSource() = %v, want %v (sticky after deselect)", got, second)
	}
	if got := room.DefaultSource(); got != second {
		t.Errorf("DefaultSource() = %v, want last main %v", got, second)
	}
}

// ─── Power ──────────────────────────────────────────────────────────────────

func TestPowerOnRunsHooksInParallelWithSync(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(t, WithNotifier(rec.notifier()))
	hooks := newFullHooks(rec)
	room := mustRoom(t, env, RoomOptions{ID: 1, Hooks: hooks})

	op, err := room.PowerOn()
	if err != nil {
		t.Fatalf("PowerOn: %v", err)
	}
	if !room.Power() {
		t.Error("Power() = false right after PowerOn")
	}
	waitOp(t, op)

	select {
	case p := <-hooks.synced:
		if !p {
			t.Error("third-party sync got power=false")
		}
	default:
		t.Error("third-party sync not called")
	}

	again, err := room.PowerOn()
	if err != nil {
		t.Fatalf("second PowerOn: %v", err)
	}
	if again.Status() != StatusNoChange {
		t.Errorf("second PowerOn status = %q, want no_change", again.Status())
	}

	want := []string{"power:true", "hook:power_on"}
	if got := rec.trace(); !reflect.DeepEqual(got, want) {
		t.Errorf("trace = %v, want %v", got, want)
	}
}

func TestPowerOnFailureKeepsPower(t *testing.T) {
	env := newTestEnv(t)
	hooks := newFullHooks(nil)
	hooks.onErr = errors.New("projector lamp")
	hooks.syncErr = errors.New("fusion unreachable")
	room := mustRoom(t, env, RoomOptions{ID: 1, Hooks: hooks})

	op, err := room.PowerOn()
	if err != nil {
		t.Fatalf("PowerOn: %v", err)
	}
	waitOp(t, op)

	if op.Status() != StatusFailed || !errors.Is(op.Err(), ErrHookFailed) {
		t.Errorf("op = %q/%v, want failed/ErrHookFailed", op.Status(), op.Err())
	}
	for _, msg := range []string{"projector lamp", "fusion unreachable"} {
		if !strings.Contains(op.Err().Error(), msg) {
			t.Errorf("Err() = %v, missing %q", op.Err(), msg)
		}
	}
	if !room.Power() {
		t.Error("Power() reverted after hook failure")
	}
}

func TestPowerOnRejectedWhileSelecting(t *testing.T) {
	env := newTestEnv(t)
	hooks := newFakeHooks(nil)
	room := mustRoom(t, env, RoomOptions{ID: 1, Hooks: hooks})

	src := mustSource(t, env, SourceOptions{ID: 1})
	op, err := room.SelectSourceAsync(src, 2)
	if err != nil {
		t.Fatalf("SelectSourceAsync: %v", err)
	}
	waitOp(t, op)
	off, _ := room.PowerOff(PowerOffUser)
	waitOp(t, off)

	// Deselecting on an off room keeps it off but marks output 2 busy.
	release := hooks.gate(0)
	sel, err := room.SelectSourceAsync(nil, 2)
	if err != nil {
		t.Fatalf("deselect: %v", err)
	}
	defer func() {
		release()
		waitOp(t, sel)
	}()

	if room.Power() {
		t.Fatal("deselect powered the room on")
	}
	if _, err := room.PowerOn(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("PowerOn while busy: err = %v, want ErrInvalidOperation", err)
	}
	if room.SetPower(true) {
		t.Error("SetPower(true) = true while busy")
	}
	if room.Power() {
		t.Error("Power() changed by rejected request")
	}
}

func TestPowerOffHookFailure(t *testing.T) {
	log := &captureLogger{}
	env := newTestEnv(t, WithLogger(log))
	hooks := newFakeHooks(nil)
	hooks.offErr = errors.New("relay stuck")
	room := mustRoom(t, env, RoomOptions{ID: 1, Hooks: hooks})

	on, _ := room.PowerOn()
	waitOp(t, on)

	op, err := room.PowerOff(PowerOffScheduled)
	if err != nil {
		t.Fatalf("PowerOff returned %v, want nil", err)
	}
	if room.Power() {
		t.Error("Power() = true right after PowerOff")
	}
	waitOp(t, op)

	if room.Power() {
		t.Error("Power() reverted after hook failure")
	}
	if op.Status() != StatusFailed || !errors.Is(op.Err(), ErrHookFailed) {
		t.Errorf("op = %q/%v, want failed/ErrHookFailed", op.Status(), op.Err())
	}
	if got := hooks.powerOffReasons(); !reflect.DeepEqual(got, []PowerOffReason{PowerOffScheduled}) {
		t.Errorf("power off reasons = %v", got)
	}
	if !log.has("ERROR room power off failed") {
		t.Error("failure not logged")
	}
}

func TestPowerOffRunsPreProcessFirst(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(t, WithNotifier(rec.notifier()))
	hooks := newFullHooks(rec)
	room := mustRoom(t, env, RoomOptions{ID: 1, Hooks: hooks})

	on, _ := room.PowerOn()
	waitOp(t, on)
	off, err := room.PowerOff("")
	if err != nil {
		t.Fatalf("PowerOff: %v", err)
	}
	waitOp(t, off)

	want := []string{"power:true", "hook:power_on", "power:false", "hook:pre_power_off", "hook:power_off"}
	if got := rec.trace(); !reflect.DeepEqual(got, want) {
		t.Errorf("trace = %v\nwant    %v", got, want)
	}
	if got := hooks.powerOffReasons(); !reflect.DeepEqual(got, []PowerOffReason{PowerOffUser}) {
		t.Errorf("empty reason should default to user, got %v", got)
	}

	again, _ := room.PowerOff(PowerOffUser)
	if again.Status() != StatusNoChange {
		t.Errorf("second PowerOff status = %q, want no_change", again.Status())
	}
}

func TestPowerOffWaitsForSelections(t *testing.T) {
	log := &captureLogger{}
	timing := testTiming()
	timing.DrainAttempts = 5000
	env := newTestEnv(t, WithLogger(log), WithTiming(timing))
	hooks := newFakeHooks(nil)
	room := mustRoom(t, env, RoomOptions{ID: 1, Hooks: hooks})
	src := mustSource(t, env, SourceOptions{ID: 1})

	release := hooks.gate(src.ID())
	sel, err := room.SelectSourceAsync(src, MainOutput)
	if err != nil {
		t.Fatalf("SelectSourceAsync: %v", err)
	}

	off, err := room.PowerOff(PowerOffUser)
	if err != nil {
		t.Fatalf("PowerOff: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if len(hooks.powerOffReasons()) != 0 {
		t.Fatal("power off hook ran while a selection was in flight")
	}

	release()
	waitOp(t, sel)
	waitOp(t, off)

	if len(hooks.powerOffReasons()) != 1 {
		t.Error("power off hook did not run after drain")
	}
	if log.has("WARN forcing power off with source selections still in flight") {
		t.Error("drain forced although the selection finished in time")
	}
}

func TestPowerOffForcesBusyFlagsAfterBound(t *testing.T) {
	log := &captureLogger{}
	timing := testTiming()
	timing.DrainAttempts = 3
	env := newTestEnv(t, WithLogger(log), WithTiming(timing))
	hooks := newFakeHooks(nil)
	room := mustRoom(t, env, RoomOptions{ID: 1, Hooks: hooks})
	a := mustSource(t, env, SourceOptions{ID: 1})
	b := mustSource(t, env, SourceOptions{ID: 2})

	releaseA := hooks.gate(a.ID())
	defer releaseA()
	opA, err := room.SelectSourceAsync(a, MainOutput)
	if err != nil {
		t.Fatalf("select A: %v", err)
	}

	off, _ := room.PowerOff(PowerOffUser)
	waitOp(t, off)

	if room.IsBusy(MainOutput) {
		t.Fatal("busy flag survived forced power off")
	}
	if !log.has("WARN forcing power off with source selections still in flight") {
		t.Error("forced clear not logged")
	}

	// A newer selection owns the output now; the stale worker must not
	// clear its flag when it finally finishes.
	releaseB := hooks.gate(b.ID())
	defer releaseB()
	opB, err := room.SelectSourceAsync(b, MainOutput)
	if err != nil {
		t.Fatalf("select B after forced clear: %v", err)
	}

	releaseA()
	waitOp(t, opA)
	if !room.IsBusy(MainOutput) {
		t.Error("stale selection cleared the newer selection's busy flag")
	}

	releaseB()
	waitOp(t, opB)
	if room.IsBusy(MainOutput) {
		t.Error("busy flag not cleared after newer selection finished")
	}
}

func TestSetPower(t *testing.T) {
	env := newTestEnv(t)
	room := mustRoom(t, env, RoomOptions{ID: 1})

	if room.SetPower(false) {
		t.Error("SetPower(false) on off room = true")
	}
	if !room.SetPower(true) {
		t.Error("SetPower(true) on off room = false")
	}
	if !room.Power() {
		t.Error("Power() = false after SetPower(true)")
	}
	if room.SetPower(true) {
		t.Error("SetPower(true) on on room = true")
	}
	if !room.SetPower(false) {
		t.Error("SetPower(false) on on room = false")
	}
	env.Wait()
	if room.Power() {
		t.Error("Power() = true after SetPower(false)")
	}
}

// ─── Observers ──────────────────────────────────────────────────────────────

func TestListenerPanicIsIsolated(t *testing.T) {
	log := &captureLogger{}
	env := newTestEnv(t, WithLogger(log), WithNotifier(NotifierFunc(func(_ context.Context, _ Event) error {
		return errors.New("broker down")
	})))
	room := mustRoom(t, env, RoomOptions{ID: 1})

	var (
		mu  sync.Mutex
		got []Event
	)
	room.Subscribe(func(Event) { panic("bad panel") })
	unsub := room.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	on, err := room.PowerOn()
	if err != nil {
		t.Fatalf("PowerOn: %v", err)
	}
	waitOp(t, on)

	mu.Lock()
	if len(got) != 1 || got[0].Type != EventPowerChanged || !got[0].Power || got[0].RoomID != 1 {
		t.Errorf("second listener got %v, want one power_changed(true)", got)
	}
	mu.Unlock()

	if !log.has("ERROR listener panic recovered") {
		t.Error("listener panic not logged")
	}
	if !log.has("WARN event notification failed") {
		t.Error("notifier error not logged")
	}

	unsub()
	off, _ := room.PowerOff(PowerOffUser)
	waitOp(t, off)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Errorf("unsubscribed listener still called: %d events", len(got))
	}
}

// ─── Hierarchy ──────────────────────────────────────────────────────────────

func TestRoomHierarchy(t *testing.T) {
	env := newTestEnv(t)
	floor := mustRoom(t, env, RoomOptions{ID: 1, Name: "Floor 3"})
	suite := mustRoom(t, env, RoomOptions{ID: 2, Name: "Suite", Parent: floor})
	divA := mustRoom(t, env, RoomOptions{ID: 3, Name: "Suite A", Parent: suite})
	divB := mustRoom(t, env, RoomOptions{ID: 4, Name: "Suite B", Parent: suite})

	if got := suite.ChildRooms().IDs(); !reflect.DeepEqual(got, []uint{3, 4}) {
		t.Errorf("suite.ChildRooms() = %v, want [3 4]", got)
	}
	if got := env.Rooms().TopLevel().IDs(); !reflect.DeepEqual(got, []uint{1}) {
		t.Errorf("TopLevel() = %v, want [1]", got)
	}

	if err := floor.SetParent(divA); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("cycle: err = %v, want ErrInvalidArgument", err)
	}
	if err := floor.SetParent(floor); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("self parent: err = %v, want ErrInvalidArgument", err)
	}

	if err := divB.SetParent(nil); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if got := suite.ChildRooms().IDs(); !reflect.DeepEqual(got, []uint{3}) {
		t.Errorf("after detach ChildRooms() = %v, want [3]", got)
	}
}

func TestRoomDefaults(t *testing.T) {
	env := newTestEnv(t)
	room := mustRoom(t, env, RoomOptions{ID: 7})

	if room.Name() != "Room 7" || room.ScreenName() != "Room 7" {
		t.Errorf("names = %q/%q, want Room 7", room.Name(), room.ScreenName())
	}
	if _, ok := room.Hooks().(NopHooks); !ok {
		t.Errorf("Hooks() = %T, want NopHooks", room.Hooks())
	}
	if room.Power() {
		t.Error("new room is powered")
	}
}

func TestConcurrentSetParentCannotCycle(t *testing.T) {
	env := newTestEnv(t)
	a := mustRoom(t, env, RoomOptions{ID: 1})
	b := mustRoom(t, env, RoomOptions{ID: 2})

	for i := 0; i < 200; i++ {
		var (
			wg         sync.WaitGroup
			errA, errB error
		)
		wg.Add(2)
		go func() { defer wg.Done(); errA = a.SetParent(b) }()
		go func() { defer wg.Done(); errB = b.SetParent(a) }()
		wg.Wait()

		if (errA == nil) == (errB == nil) {
			t.Fatalf("iteration %d: errA = %v, errB = %v; want exactly one rejected", i, errA, errB)
		}
		if a.Parent() == b && b.Parent() == a {
			t.Fatalf("iteration %d: rooms are each other's parent", i)
		}

		if err := a.SetParent(nil); err != nil {
			t.Fatal(err)
		}
		if err := b.SetParent(nil); err != nil {
			t.Fatal(err)
		}
	}
}

// ─── Power Ordering ─────────────────────────────────────────────────────────

func powerTrace(rec *recorder) []string {
	var out []string
	for _, e := range rec.trace() {
		if strings.HasPrefix(e, "power:") {
			out = append(out, e)
		}
	}
	return out
}

func TestPowerEventsFollowFlipOrder(t *testing.T) {
	tests := []struct {
		name    string
		trigger string
		start   func(room *Room, src *Source) (*Operation, error)
	}{
		{
			name:    "power on",
			trigger: "room power on",
			start:   func(room *Room, _ *Source) (*Operation, error) { return room.PowerOn() },
		},
		{
			name:    "selection on an off room",
			trigger: "room powered on by source selection",
			start: func(room *Room, src *Source) (*Operation, error) {
				return room.SelectSourceAsync(src, MainOutput)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			var (
				room *Room
				once sync.Once
				off  *Operation
			)
			// PowerOff lands after the flip to on but before that
			// event has been delivered.
			log := &hookedLogger{onInfo: func(msg string) {
				if msg == tt.trigger {
					once.Do(func() { off, _ = room.PowerOff(PowerOffUser) })
				}
			}}
			env := newTestEnv(t, WithLogger(log), WithNotifier(rec.notifier()))
			room = mustRoom(t, env, RoomOptions{ID: 1})
			src := mustSource(t, env, SourceOptions{ID: 1})

			op, err := tt.start(room, src)
			if err != nil {
				t.Fatalf("start: %v", err)
			}
			waitOp(t, op)
			if off == nil {
				t.Fatal("PowerOff was not triggered")
			}
			waitOp(t, off)

			if got, want := powerTrace(rec), []string{"power:true", "power:false"}; !reflect.DeepEqual(got, want) {
				t.Errorf("power events = %v, want %v", got, want)
			}
			if room.Power() {
				t.Error("Power() = true, want false to match the last power event")
			}
		})
	}
}

func TestPowerSequencesRunInRequestOrder(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(t)
	hooks := newFakeHooks(rec)
	hooks.offDelay = 50 * time.Millisecond
	room := mustRoom(t, env, RoomOptions{ID: 1, Hooks: hooks})

	on, _ := room.PowerOn()
	waitOp(t, on)

	off, err := room.PowerOff(PowerOffUser)
	if err != nil {
		t.Fatalf("PowerOff: %v", err)
	}
	again, err := room.PowerOn()
	if err != nil {
		t.Fatalf("PowerOn: %v", err)
	}
	waitOp(t, off)
	waitOp(t, again)

	want := []string{"hook:power_on", "hook:power_off", "hook:power_on"}
	if got := rec.trace(); !reflect.DeepEqual(got, want) {
		t.Errorf("hook order = %v, want %v", got, want)
	}
	if !room.Power() {
		t.Error("Power() = false after the final PowerOn")
	}
}

func TestForcedPowerOnWaitsForPowerOff(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(t)
	hooks := newFakeHooks(rec)
	hooks.offDelay = 50 * time.Millisecond
	room := mustRoom(t, env, RoomOptions{ID: 1, Hooks: hooks})
	src := mustSource(t, env, SourceOptions{ID: 4})

	on, _ := room.PowerOn()
	waitOp(t, on)
	off, _ := room.PowerOff(PowerOffUser)

	sel, err := room.SelectSourceAsync(src, MainOutput)
	if err != nil {
		t.Fatalf("SelectSourceAsync: %v", err)
	}
	waitOp(t, off)
	waitOp(t, sel)

	want := []string{"hook:power_on", "hook:power_off", "hook:power_on", "load:4@1"}
	if got := rec.trace(); !reflect.DeepEqual(got, want) {
		t.Errorf("hook order = %v, want %v", got, want)
	}
	if sel.Status() != StatusComplete {
		t.Errorf("selection status = %q, want complete", sel.Status())
	}
}

func TestPowerOffSyncsThirdParty(t *testing.T) {
	tests := []struct {
		reason PowerOffReason
		synced bool
	}{
		{PowerOffUser, true},
		{PowerOffScheduled, true},
		{PowerOffThirdParty, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			env := newTestEnv(t)
			hooks := newFullHooks(nil)
			room := mustRoom(t, env, RoomOptions{ID: 1, Hooks: hooks})

			on, _ := room.PowerOn()
			waitOp(t, on)
			if p := <-hooks.synced; !p {
				t.Fatal("power on synced power=false")
			}

			off, _ := room.PowerOff(tt.reason)
			waitOp(t, off)

			select {
			case p := <-hooks.synced:
				if !tt.synced {
					t.Errorf("synced power=%t for a third-party power off", p)
				} else if p {
					t.Error("power off synced power=true")
				}
			default:
				if tt.synced {
					t.Error("power off did not sync the third party")
				}
			}
		})
	}
}
