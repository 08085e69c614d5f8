package av

import (
	"errors"
	"fmt"
)

// Domain errors for the av package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, av.ErrBusy) {
//	    // the output is mid-selection, retry later
//	}
var (
	// ErrInvalidArgument is returned for nil rooms/sources, zero IDs and
	// objects that belong to a different environment.
	ErrInvalidArgument = errors.New("av: invalid argument")

	// ErrDuplicateID is returned when registering a room or source whose ID
	// is already taken. It wraps ErrInvalidArgument.
	ErrDuplicateID = fmt.Errorf("%w: duplicate id", ErrInvalidArgument)

	// ErrBusy is returned when a source selection is requested for an
	// output that already has a selection in flight.
	ErrBusy = errors.New("av: source selection in progress")

	// ErrInvalidOperation is returned when power is toggled while a source
	// selection is in flight.
	ErrInvalidOperation = errors.New("av: invalid operation")

	// ErrRoomNotFound is returned when a room ID does not exist.
	ErrRoomNotFound = errors.New("av: room not found")

	// ErrSourceNotFound is returned when a source ID does not exist.
	ErrSourceNotFound = errors.New("av: source not found")

	// ErrHookFailed wraps errors returned (or panics raised) by room hooks.
	// It is only ever reported through Operation.Err and Failed events.
	ErrHookFailed = errors.New("av: hook failed")
)
