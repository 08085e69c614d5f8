package av

import (
	"context"
	"fmt"
)

// PowerOffReason records why a room is being switched off.
type PowerOffReason string

// Power-off reasons passed to RoomPowerOffProcess.
const (
	PowerOffUser       PowerOffReason = "user"
	PowerOffThirdParty PowerOffReason = "third_party"
	PowerOffScheduled  PowerOffReason = "scheduled"
	PowerOffShutdown   PowerOffReason = "shutdown"
)

// RoomHooks performs the hardware side of room transitions. Implementations
// may block and may return errors; rooms always call them off the caller's
// goroutine and treat an error (or panic) as a failed transition.
//
// One implementation may serve many rooms, so every hook receives the room.
type RoomHooks interface {
	// SourceShouldLoad routes next (nil for "no source") to output index.
	SourceShouldLoad(ctx context.Context, room *Room, previous, next *Source, index uint) error

	// RoomPowerOnProcess runs the power-on sequence.
	RoomPowerOnProcess(ctx context.Context, room *Room) error

	// RoomPowerOffProcess runs the power-off sequence.
	RoomPowerOffProcess(ctx context.Context, room *Room, reason PowerOffReason) error
}

// ThirdPartySyncer is optionally implemented by RoomHooks. It runs in
// parallel with RoomPowerOnProcess or RoomPowerOffProcess to push the new
// state to a third-party control system. It is not called when the third
// party itself asked for the power off.
type ThirdPartySyncer interface {
	SyncThirdPartyPower(ctx context.Context, room *Room, power bool) error
}

// PrePowerOffProcessor is optionally implemented by RoomHooks. It runs after
// in-flight selections have drained and before RoomPowerOffProcess.
type PrePowerOffProcessor interface {
	PrePowerOffProcess(ctx context.Context, room *Room, reason PowerOffReason) error
}

// ActiveUseHook is told whenever a source's active-use count changes.
// Errors and panics are logged; the count itself is never affected.
type ActiveUseHook interface {
	OnActiveUseCountChange(src *Source, count int) error
}

// ActiveUseHookFunc adapts a function to ActiveUseHook.
type ActiveUseHookFunc func(src *Source, count int) error

// OnActiveUseCountChange calls f(src, count).
func (f ActiveUseHookFunc) OnActiveUseCountChange(src *Source, count int) error {
	return f(src, count)
}

// NopHooks is a RoomHooks that succeeds immediately. Rooms built without
// hooks use it.
type NopHooks struct{}

// SourceShouldLoad implements RoomHooks.
func (NopHooks) SourceShouldLoad(context.Context, *Room, *Source, *Source, uint) error { return nil }

// RoomPowerOnProcess implements RoomHooks.
func (NopHooks) RoomPowerOnProcess(context.Context, *Room) error { return nil }

// RoomPowerOffProcess implements RoomHooks.
func (NopHooks) RoomPowerOffProcess(context.Context, *Room, PowerOffReason) error { return nil }

// callHook runs fn, converting a panic into an error.
func callHook(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
