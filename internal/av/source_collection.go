package av

import (
	"fmt"
	"sort"
)

// SourceCollection is an immutable, ordered snapshot of sources.
//
// Iteration order is ascending Priority, then Name (byte-wise), then ID.
// UI lists rely on this order. Every filter returns a new collection and
// leaves the receiver untouched.
type SourceCollection struct {
	items []*Source
}

// NewSourceCollection builds a collection from sources, dropping nils and
// keeping the first of any sources sharing an ID.
func NewSourceCollection(sources ...*Source) *SourceCollection {
	items := make([]*Source, 0, len(sources))
	seen := make(map[uint]struct{}, len(sources))
	for _, s := range sources {
		if s == nil {
			continue
		}
		if _, dup := seen[s.id]; dup {
			continue
		}
		seen[s.id] = struct{}{}
		items = append(items, s)
	}
	sortSources(items)
	return &SourceCollection{items: items}
}

// sortSources applies the default priority/name/id order.
func sortSources(items []*Source) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		if a.name != b.name {
			return a.name < b.name
		}
		return a.id < b.id
	})
}

// Len returns the number of sources.
func (c *SourceCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// All returns the sources in default order. The slice is a copy.
func (c *SourceCollection) All() []*Source {
	if c == nil {
		return nil
	}
	out := make([]*Source, len(c.items))
	copy(out, c.items)
	return out
}

// At returns the i'th source in default order, or nil when i is out of
// range.
func (c *SourceCollection) At(i int) *Source {
	if c == nil || i < 0 || i >= len(c.items) {
		return nil
	}
	return c.items[i]
}

// Get returns the source with the given ID.
func (c *SourceCollection) Get(id uint) (*Source, bool) {
	if c == nil {
		return nil, false
	}
	for _, s := range c.items {
		if s.id == id {
			return s, true
		}
	}
	return nil, false
}

// Contains reports whether src is in the collection.
func (c *SourceCollection) Contains(src *Source) bool {
	if src == nil {
		return false
	}
	found, ok := c.Get(src.id)
	return ok && found == src
}

// IDs returns the source IDs in default order.
func (c *SourceCollection) IDs() []uint {
	ids := make([]uint, 0, c.Len())
	for _, s := range c.All() {
		ids = append(ids, s.id)
	}
	return ids
}

// Filter returns the sources for which keep returns true.
func (c *SourceCollection) Filter(keep func(*Source) bool) *SourceCollection {
	var items []*Source
	for _, s := range c.All() {
		if keep(s) {
			items = append(items, s)
		}
	}
	// Filtering preserves order, no need to re-sort.
	return &SourceCollection{items: items}
}

// ForRoom returns sources assigned to room that are not local to a display.
func (c *SourceCollection) ForRoom(room *Room) (*SourceCollection, error) {
	if room == nil {
		return nil, fmt.Errorf("%w: nil room", ErrInvalidArgument)
	}
	return c.Filter(func(s *Source) bool {
		return !s.IsLocalToDisplay() && s.IsAssignedTo(room)
	}), nil
}

// ForRoomOrGlobal returns the sources visible to room: those ForRoom would
// return plus global sources (sources with no room assignments).
func (c *SourceCollection) ForRoomOrGlobal(room *Room) (*SourceCollection, error) {
	if room == nil {
		return nil, fmt.Errorf("%w: nil room", ErrInvalidArgument)
	}
	return c.Filter(func(s *Source) bool {
		if s.IsLocalToDisplay() {
			return false
		}
		return s.IsAssignedTo(room) || s.assignmentCount() == 0
	}), nil
}

// Global returns sources with no room assignments.
func (c *SourceCollection) Global() *SourceCollection {
	return c.Filter(func(s *Source) bool {
		return !s.IsLocalToDisplay() && s.assignmentCount() == 0
	})
}

// ForDisplay returns the sources local to the given display controller.
func (c *SourceCollection) ForDisplay(displayID uint) *SourceCollection {
	return c.Filter(func(s *Source) bool {
		return displayID != 0 && s.displayID == displayID
	})
}

// OfType returns sources whose type is one of types.
func (c *SourceCollection) OfType(types ...SourceType) *SourceCollection {
	set := typeSet(types...)
	return c.Filter(func(s *Source) bool {
		_, ok := set[s.typ]
		return ok
	})
}

// InGroup returns sources whose GroupName equals group.
func (c *SourceCollection) InGroup(group string) *SourceCollection {
	return c.Filter(func(s *Source) bool {
		return s.groupName == group
	})
}

// Groups returns the distinct non-empty group names in order of first
// appearance.
func (c *SourceCollection) Groups() []string {
	var groups []string
	seen := make(map[string]struct{})
	for _, s := range c.All() {
		if s.groupName == "" {
			continue
		}
		if _, ok := seen[s.groupName]; ok {
			continue
		}
		seen[s.groupName] = struct{}{}
		groups = append(groups, s.groupName)
	}
	return groups
}

// Presentation returns the presentation sources.
func (c *SourceCollection) Presentation() *SourceCollection {
	return c.Filter((*Source).IsPresentationSource)
}

// WirelessPresentation returns the wireless presentation sources.
func (c *SourceCollection) WirelessPresentation() *SourceCollection {
	return c.Filter((*Source).IsWirelessPresentationSource)
}

// Media returns the media sources.
func (c *SourceCollection) Media() *SourceCollection {
	return c.Filter((*Source).IsMediaSource)
}

// Conference returns the conferencing sources.
func (c *SourceCollection) Conference() *SourceCollection {
	return c.Filter((*Source).IsConferenceSource)
}

// WithActiveVideo returns sources currently reporting video.
func (c *SourceCollection) WithActiveVideo() *SourceCollection {
	return c.Filter((*Source).HasActiveVideo)
}

// InUse returns sources with a non-zero active-use count.
func (c *SourceCollection) InUse() *SourceCollection {
	return c.Filter(func(s *Source) bool {
		return s.ActiveUseCount() > 0
	})
}

// Combine returns the union of c and other by ID. When both hold a source
// with the same ID, the one from c wins.
func (c *SourceCollection) Combine(other *SourceCollection) *SourceCollection {
	items := c.All()
	items = append(items, other.All()...)
	return NewSourceCollection(items...)
}

// OrderedByName returns the sources sorted by name, then ID.
func (c *SourceCollection) OrderedByName() []*Source {
	items := c.All()
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].name != items[j].name {
			return items[i].name < items[j].name
		}
		return items[i].id < items[j].id
	})
	return items
}

// OrderedByID returns the sources sorted by ID.
func (c *SourceCollection) OrderedByID() []*Source {
	items := c.All()
	sort.Slice(items, func(i, j int) bool {
		return items[i].id < items[j].id
	})
	return items
}
