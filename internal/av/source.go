package av

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// SourceOptions describes a source at construction time.
type SourceOptions struct {
	ID        uint
	Type      SourceType
	Name      string // defaults to "Source <id>"
	GroupName string
	IconName  string
	Priority  uint // lower sorts first

	// DisplayID binds the source to a single display controller. Such
	// sources are excluded from room-scoped source lists.
	DisplayID uint

	// Hook is told about active-use changes (optional).
	Hook ActiveUseHook
}

// Source is a selectable input. Sources are created once at start-up and
// live for the lifetime of their Environment.
//
// Thread Safety: all methods are safe for concurrent use.
type Source struct {
	env       *Environment
	id        uint
	typ       SourceType
	name      string
	groupName string
	iconName  string
	priority  uint
	displayID uint
	hook      ActiveUseHook

	activeUse atomic.Int64

	mu       sync.RWMutex
	rooms    []*Room
	hasVideo bool

	videoListeners listenerList[bool]
}

// NewSource creates a source and registers it with env.
// It fails with ErrDuplicateID if env already holds a source with the same ID.
func NewSource(env *Environment, opts SourceOptions) (*Source, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil environment", ErrInvalidArgument)
	}
	if opts.ID == 0 {
		return nil, fmt.Errorf("%w: source id must be non-zero", ErrInvalidArgument)
	}

	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("Source %d", opts.ID)
	}

	s := &Source{
		env:       env,
		id:        opts.ID,
		typ:       opts.Type,
		name:      name,
		groupName: opts.GroupName,
		iconName:  opts.IconName,
		priority:  opts.Priority,
		displayID: opts.DisplayID,
		hook:      opts.Hook,
	}

	if err := env.AddSource(s); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the source's unique ID.
func (s *Source) ID() uint { return s.id }

// Type returns the source's device category.
func (s *Source) Type() SourceType { return s.typ }

// Name returns the display name.
func (s *Source) Name() string { return s.name }

// GroupName returns the UI grouping name (may be empty).
func (s *Source) GroupName() string { return s.groupName }

// IconName returns the UI icon name (may be empty).
func (s *Source) IconName() string { return s.iconName }

// Priority returns the sort priority; lower values sort first.
func (s *Source) Priority() uint { return s.priority }

// DisplayID returns the owning display controller, or 0.
func (s *Source) DisplayID() uint { return s.displayID }

// IsLocalToDisplay reports whether the source is bound to a single display.
func (s *Source) IsLocalToDisplay() bool { return s.displayID != 0 }

// IsPresentationSource reports whether Type is a presentation input.
func (s *Source) IsPresentationSource() bool { return s.typ.IsPresentation() }

// IsMediaSource reports whether Type is a media source.
func (s *Source) IsMediaSource() bool { return s.typ.IsMedia() }

// IsConferenceSource reports whether Type is a conferencing endpoint.
func (s *Source) IsConferenceSource() bool { return s.typ.IsConference() }

// IsWirelessPresentationSource reports whether Type is a wireless presentation gateway.
func (s *Source) IsWirelessPresentationSource() bool { return s.typ.IsWirelessPresentation() }

// String implements fmt.Stringer.
func (s *Source) String() string {
	return fmt.Sprintf("Source[%d] %q", s.id, s.name)
}

// AssignRoom adds room to the source's assigned rooms. Assigning a room
// that is already assigned is a no-op.
func (s *Source) AssignRoom(room *Room) error {
	if room == nil {
		return fmt.Errorf("%w: nil room", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rooms {
		if r == room {
			return nil
		}
	}
	s.rooms = append(s.rooms, room)
	return nil
}

// UnassignRoom removes room from the source's assigned rooms. Removing a
// room that is not assigned is a no-op.
func (s *Source) UnassignRoom(room *Room) error {
	if room == nil {
		return fmt.Errorf("%w: nil room", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rooms {
		if r == room {
			s.rooms = append(s.rooms[:i:i], s.rooms[i+1:]...)
			return nil
		}
	}
	return nil
}

// AssignedRooms returns a snapshot of the rooms this source is assigned to.
func (s *Source) AssignedRooms() *RoomCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return NewRoomCollection(s.rooms...)
}

// IsAssignedTo reports whether room is in AssignedRooms.
func (s *Source) IsAssignedTo(room *Room) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if r == room {
			return true
		}
	}
	return false
}

// assignmentCount returns the number of assigned rooms.
func (s *Source) assignmentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// ActiveUseCount returns the number of room outputs currently presenting
// this source.
func (s *Source) ActiveUseCount() int {
	return int(s.activeUse.Load())
}

// adjustActiveUse atomically adds delta to the active-use count, clamping at
// zero. It reports the new count and whether it changed. The hook is not
// called here so callers can adjust while holding a room lock.
func (s *Source) adjustActiveUse(delta int64) (int, bool) {
	for {
		old := s.activeUse.Load()
		next := old + delta
		if next < 0 {
			next = 0
		}
		if next == old {
			return int(old), false
		}
		if s.activeUse.CompareAndSwap(old, next) {
			return int(next), true
		}
	}
}

// activeUseChanged runs the active-use hook, logging failures.
func (s *Source) activeUseChanged(count int) {
	if s.hook == nil {
		return
	}
	err := callHook(func() error {
		return s.hook.OnActiveUseCountChange(s, count)
	})
	if err != nil {
		s.env.logger.Error("active use hook failed",
			"source_id", s.id,
			"count", count,
			"error", err,
		)
	}
}

// HasActiveVideo reports the last video status set on the source.
func (s *Source) HasActiveVideo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasVideo
}

// SetVideoStatus updates HasActiveVideo. Listeners and the notifier are only
// told when the value actually changes.
func (s *Source) SetVideoStatus(active bool) {
	s.mu.Lock()
	if s.hasVideo == active {
		s.mu.Unlock()
		return
	}
	s.hasVideo = active
	s.mu.Unlock()

	s.env.logger.Debug("source video status changed", "source_id", s.id, "active", active)
	s.videoListeners.emit(s.env.logger, active)
	s.env.notify(Event{
		Type:     EventVideoChanged,
		SourceID: s.id,
		Active:   active,
		Time:     time.Now().UTC(),
	})
}

// OnVideoStatusChange registers fn to be called with the new status on each
// video transition. The returned func unregisters it.
func (s *Source) OnVideoStatusChange(fn func(active bool)) func() {
	return s.videoListeners.add(fn)
}

// idOf returns the ID of src, or 0 for nil.
func idOf(src *Source) uint {
	if src == nil {
		return 0
	}
	return src.id
}
