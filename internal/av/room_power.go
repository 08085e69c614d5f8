package av

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// PowerOn switches the room on. Power flips and the power event is queued
// in one step, and the event is delivered before PowerOn returns unless
// another caller is already delivering this room's events.
//
// The worker waits for any earlier power sequence of the room, then runs
// RoomPowerOnProcess and, if the hooks implement it, SyncThirdPartyPower in
// parallel.
//
// It is a no-op (StatusNoChange) when the room is already on and fails with
// ErrInvalidOperation while any output has a selection in flight.
func (r *Room) PowerOn() (*Operation, error) {
	r.mu.Lock()
	if r.power {
		r.mu.Unlock()
		return finishedOperation(StatusNoChange, nil), nil
	}
	if len(r.busy) > 0 {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: room %d has a source selection in progress", ErrInvalidOperation, r.id)
	}
	r.power = true
	r.queuePowerLocked(true, "")
	step := r.nextPowerStepLocked()
	r.mu.Unlock()

	r.env.logger.Info("room power on", "room_id", r.id)
	r.flush()

	op := newOperation()
	r.env.spawn(func() {
		step.wait()
		ctx, cancel := r.env.hookContext()
		defer cancel()

		err := r.runPowerOnHooks(ctx)
		step.finish()
		if err != nil {
			r.env.logger.Error("room power on failed", "room_id", r.id, "error", err)
			op.finish(StatusFailed, err)
			return
		}
		op.finish(StatusComplete, nil)
	})
	return op, nil
}

// PowerOff switches the room off. Power flips and the event is queued as in
// PowerOn. The worker waits for any earlier power sequence, then for
// in-flight selections to drain, force-clearing them after
// Timing.DrainAttempts polls. It then runs PrePowerOffProcess (if
// implemented), followed by RoomPowerOffProcess in parallel with
// SyncThirdPartyPower(false). The sync is skipped when the third party
// asked for the power off.
//
// Hook failures are logged and reported through the Operation only; Power
// stays false.
func (r *Room) PowerOff(reason PowerOffReason) (*Operation, error) {
	if reason == "" {
		reason = PowerOffUser
	}

	r.mu.Lock()
	if !r.power {
		r.mu.Unlock()
		return finishedOperation(StatusNoChange, nil), nil
	}
	r.power = false
	r.queuePowerLocked(false, reason)
	step := r.nextPowerStepLocked()
	inflight := maps.Clone(r.busy)
	r.mu.Unlock()

	r.env.logger.Info("room power off", "room_id", r.id, "reason", reason)
	r.flush()

	op := newOperation()
	r.env.spawn(func() {
		step.wait()
		ctx, cancel := r.env.hookContext()
		defer cancel()

		r.drainSelections(ctx, inflight)

		err := r.runPowerOffHooks(ctx, reason)
		step.finish()
		if err != nil {
			r.env.logger.Error("room power off failed", "room_id", r.id, "reason", reason, "error", err)
			op.finish(StatusFailed, err)
			return
		}
		op.finish(StatusComplete, nil)
	})
	return op, nil
}

// SetPower turns the room on or off with PowerOffUser. It returns false,
// without error, when a selection is in flight or the room is already in the
// requested state.
func (r *Room) SetPower(on bool) bool {
	r.mu.Lock()
	skip := len(r.busy) > 0 || r.power == on
	r.mu.Unlock()
	if skip {
		return false
	}

	var (
		op  *Operation
		err error
	)
	if on {
		op, err = r.PowerOn()
	} else {
		op, err = r.PowerOff(PowerOffUser)
	}
	// A concurrent caller may have won the race since the check above.
	return err == nil && op.Status() != StatusNoChange
}

// runPowerOnHooks runs RoomPowerOnProcess and SyncThirdPartyPower(true)
// in parallel and joins their errors.
func (r *Room) runPowerOnHooks(ctx context.Context) error {
	return r.runWithSync(ctx, true, true, func() error {
		return r.hooks.RoomPowerOnProcess(ctx, r)
	})
}

func (r *Room) runPowerOffHooks(ctx context.Context, reason PowerOffReason) error {
	var preErr error
	if pre, ok := r.hooks.(PrePowerOffProcessor); ok {
		preErr = callHook(func() error {
			return pre.PrePowerOffProcess(ctx, r, reason)
		})
		if preErr != nil {
			preErr = fmt.Errorf("%w: pre power off room %d: %w", ErrHookFailed, r.id, preErr)
			r.env.logger.Warn("pre power off hook failed", "room_id", r.id, "error", preErr)
		}
	}

	err := r.runWithSync(ctx, false, reason != PowerOffThirdParty, func() error {
		return r.hooks.RoomPowerOffProcess(ctx, r, reason)
	})
	return errors.Join(preErr, err)
}

// runWithSync runs the power hook and, when syncThirdParty is set and the
// hooks implement ThirdPartySyncer, pushes power to the third party in
// parallel.
func (r *Room) runWithSync(ctx context.Context, power, syncThirdParty bool, hook func() error) error {
	what := "power off"
	if power {
		what = "power on"
	}

	var (
		wg      sync.WaitGroup
		hookErr error
		syncErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		hookErr = callHook(hook)
	}()

	if syncer, ok := r.hooks.(ThirdPartySyncer); ok && syncThirdParty {
		wg.Add(1)
		go func() {
			defer wg.Done()
			syncErr = callHook(func() error {
				return syncer.SyncThirdPartyPower(ctx, r, power)
			})
		}()
	}
	wg.Wait()

	if hookErr != nil {
		hookErr = fmt.Errorf("%w: %s room %d: %w", ErrHookFailed, what, r.id, hookErr)
	}
	if syncErr != nil {
		syncErr = fmt.Errorf("%w: third-party sync room %d: %w", ErrHookFailed, r.id, syncErr)
	}
	return errors.Join(hookErr, syncErr)
}

// drainSelections polls until none of the selections in inflight (index to
// owning token, captured at power off) still holds its busy flag. After
// DrainAttempts polls the remaining flags are cleared and power off
// proceeds anyway. Selections started after the power off are left alone.
func (r *Room) drainSelections(ctx context.Context, inflight map[uint]uint64) {
	if len(inflight) == 0 {
		return
	}
	for attempt := 0; attempt < r.env.timing.DrainAttempts; attempt++ {
		if len(r.stillBusy(inflight, false)) == 0 {
			return
		}
		sleep(ctx, r.env.timing.DrainInterval)
	}

	cleared := r.stillBusy(inflight, true)
	if len(cleared) == 0 {
		return
	}
	r.env.logger.Warn("forcing power off with source selections still in flight",
		"room_id", r.id,
		"output_indexes", cleared,
		"attempts", r.env.timing.DrainAttempts,
	)
}

// stillBusy returns the sorted indexes whose busy flag is still owned by the
// token in inflight, clearing those flags when clear is set.
func (r *Room) stillBusy(inflight map[uint]uint64, clear bool) []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint
	for index, token := range inflight {
		if r.busy[index] == token {
			out = append(out, index)
			if clear {
				delete(r.busy, index)
			}
		}
	}
	slices.Sort(out)
	return out
}
