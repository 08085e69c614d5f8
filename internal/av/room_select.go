package av

import "fmt"

// SelectSourceAsync routes src to output index (1 is MainOutput). A nil src
// clears the output.
//
// The call returns once the request is accepted and the Pending event has
// been emitted. Hardware routing, the settle delay and the terminal
// Complete/Failed event happen on a worker; the returned Operation finishes
// after them.
//
// Selecting the source already on index returns a finished operation with
// StatusNoChange and emits nothing. Selecting while index is busy returns
// ErrBusy; requests are never queued.
//
// If the room is off and src is not nil, the room is switched on first.
//
// A failed hook does not roll back: CurrentSource keeps reporting src and the
// active-use counts stay as they are, so operators can see what was attempted.
func (r *Room) SelectSourceAsync(src *Source, index uint) (*Operation, error) {
	if index == 0 {
		return nil, fmt.Errorf("%w: output index must be non-zero", ErrInvalidArgument)
	}
	if src != nil && src.env != r.env {
		return nil, fmt.Errorf("%w: source %d belongs to another environment", ErrInvalidArgument, src.id)
	}

	r.mu.Lock()
	if _, busy := r.busy[index]; busy {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: room %d output %d", ErrBusy, r.id, index)
	}

	prev := r.current[index]
	if prev == src {
		r.mu.Unlock()
		return finishedOperation(StatusNoChange, nil), nil
	}

	r.nextToken++
	token := r.nextToken
	r.busy[index] = token

	if src == nil {
		delete(r.current, index)
	} else {
		r.current[index] = src
		if index == MainOutput {
			r.lastMain = src
		}
	}

	// Counts move under the room lock so the invariant holds for anyone
	// reading both. Hooks run after unlock.
	var prevCount, nextCount int
	var prevChanged, nextChanged bool
	if prev != nil {
		prevCount, prevChanged = prev.adjustActiveUse(-1)
	}
	if src != nil {
		nextCount, nextChanged = src.adjustActiveUse(1)
	}

	r.queueLocked(Event{
		Type:             EventSourceChanged,
		SourceID:         idOf(src),
		PreviousSourceID: idOf(prev),
		OutputIndex:      index,
		Status:           StatusPending,
	})

	var power *powerStep
	if src != nil && !r.power {
		r.power = true
		r.queuePowerLocked(true, "")
		power = r.nextPowerStepLocked()
	}
	r.mu.Unlock()

	if prevChanged {
		prev.activeUseChanged(prevCount)
	}
	if nextChanged {
		src.activeUseChanged(nextCount)
	}

	r.env.logger.Info("source selection requested",
		"room_id", r.id,
		"output_index", index,
		"source_id", idOf(src),
		"previous_source_id", idOf(prev),
	)

	if power != nil {
		r.env.logger.Info("room powered on by source selection", "room_id", r.id)
	}
	r.flush()

	op := newOperation()
	r.env.spawn(func() {
		r.runSelection(op, token, prev, src, index, power)
	})
	return op, nil
}

// runSelection is the worker half of SelectSourceAsync. A non-nil power
// step means the selection switched the room on and must run the power-on
// sequence, in turn with the room's other power sequences, before loading.
func (r *Room) runSelection(op *Operation, token uint64, prev, src *Source, index uint, power *powerStep) {
	if power != nil {
		power.wait()
	}
	ctx, cancel := r.env.hookContext()
	defer cancel()

	if power != nil {
		err := r.runPowerOnHooks(ctx)
		power.finish()
		if err != nil {
			r.env.logger.Error("power on before source selection failed", "room_id", r.id, "error", err)
		}
		sleep(ctx, r.env.timing.PowerOnSettle)
	}

	status := StatusComplete
	err := callHook(func() error {
		return r.hooks.SourceShouldLoad(ctx, r, prev, src, index)
	})
	if err != nil {
		status = StatusFailed
		err = fmt.Errorf("%w: source load for room %d output %d: %w", ErrHookFailed, r.id, index, err)
		r.env.logger.Error("source selection failed",
			"room_id", r.id,
			"output_index", index,
			"source_id", idOf(src),
			"error", err,
		)
	} else {
		sleep(ctx, r.env.timing.SourceSettle)
		r.env.logger.Info("source selection complete",
			"room_id", r.id,
			"output_index", index,
			"source_id", idOf(src),
		)
	}

	ev := Event{
		Type:             EventSourceChanged,
		SourceID:         idOf(src),
		PreviousSourceID: idOf(prev),
		OutputIndex:      index,
		Status:           status,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	r.emit(ev)

	r.releaseBusy(index, token)

	ev.Type = EventSourceTargetChanged
	r.emit(ev)

	op.finish(status, err)
}

// releaseBusy clears the busy flag on index if token still owns it. A flag
// force-cleared by PowerOff may already belong to a newer selection.
func (r *Room) releaseBusy(index uint, token uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy[index] == token {
		delete(r.busy, index)
	}
}
