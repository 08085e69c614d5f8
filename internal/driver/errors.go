package driver

import "errors"

var (
	// ErrCommandTimeout is returned when no ack arrives in time.
	ErrCommandTimeout = errors.New("driver: command timed out")

	// ErrCommandRejected is returned when a bridge acks with a failure.
	ErrCommandRejected = errors.New("driver: command rejected")

	// ErrNotStarted is returned when a hook runs before Start.
	ErrNotStarted = errors.New("driver: not started")
)
