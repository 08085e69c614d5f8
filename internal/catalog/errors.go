package catalog

import "errors"

var (
	// ErrRoomExists is returned when creating a room whose ID is taken.
	ErrRoomExists = errors.New("room already exists")

	// ErrSourceExists is returned when creating a source whose ID is taken.
	ErrSourceExists = errors.New("source already exists")

	// ErrNotFound is returned when a referenced room or source is missing.
	ErrNotFound = errors.New("catalog entry not found")

	// ErrInvalid is returned for entries that fail validation.
	ErrInvalid = errors.New("invalid catalog entry")
)
