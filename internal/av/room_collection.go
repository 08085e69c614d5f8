package av

import "sort"

// RoomCollection is an immutable snapshot of rooms ordered by ID.
type RoomCollection struct {
	items []*Room
}

// NewRoomCollection builds a collection from rooms, dropping nils and
// duplicate IDs.
func NewRoomCollection(rooms ...*Room) *RoomCollection {
	items := make([]*Room, 0, len(rooms))
	seen := make(map[uint]struct{}, len(rooms))
	for _, r := range rooms {
		if r == nil {
			continue
		}
		if _, dup := seen[r.id]; dup {
			continue
		}
		seen[r.id] = struct{}{}
		items = append(items, r)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].id < items[j].id
	})
	return &RoomCollection{items: items}
}

// Len returns the number of rooms.
func (c *RoomCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// All returns the rooms ordered by ID. The slice is a copy.
func (c *RoomCollection) All() []*Room {
	if c == nil {
		return nil
	}
	out := make([]*Room, len(c.items))
	copy(out, c.items)
	return out
}

// Get returns the room with the given ID.
func (c *RoomCollection) Get(id uint) (*Room, bool) {
	if c == nil {
		return nil, false
	}
	i := sort.Search(len(c.items), func(i int) bool { return c.items[i].id >= id })
	if i < len(c.items) && c.items[i].id == id {
		return c.items[i], true
	}
	return nil, false
}

// Contains reports whether room is in the collection.
func (c *RoomCollection) Contains(room *Room) bool {
	if room == nil {
		return false
	}
	found, ok := c.Get(room.id)
	return ok && found == room
}

// IDs returns the room IDs in ascending order.
func (c *RoomCollection) IDs() []uint {
	ids := make([]uint, 0, c.Len())
	for _, r := range c.All() {
		ids = append(ids, r.id)
	}
	return ids
}

// Filter returns the rooms for which keep returns true.
func (c *RoomCollection) Filter(keep func(*Room) bool) *RoomCollection {
	var items []*Room
	for _, r := range c.All() {
		if keep(r) {
			items = append(items, r)
		}
	}
	return &RoomCollection{items: items}
}

// TopLevel returns rooms without a parent.
func (c *RoomCollection) TopLevel() *RoomCollection {
	return c.Filter(func(r *Room) bool { return r.Parent() == nil })
}

// ChildrenOf returns the rooms whose parent is parent. It is a linear scan;
// no child list is stored anywhere.
func (c *RoomCollection) ChildrenOf(parent *Room) *RoomCollection {
	return c.Filter(func(r *Room) bool {
		return parent != nil && r.Parent() == parent
	})
}

// Powered returns the rooms that are currently on.
func (c *RoomCollection) Powered() *RoomCollection {
	return c.Filter((*Room).Power)
}

// Busy returns the rooms with at least one selection in flight.
func (c *RoomCollection) Busy() *RoomCollection {
	return c.Filter((*Room).AnyBusy)
}

// Combine returns the union of c and other by ID, keeping c's entry on
// conflicts.
func (c *RoomCollection) Combine(other *RoomCollection) *RoomCollection {
	items := c.All()
	items = append(items, other.All()...)
	return NewRoomCollection(items...)
}
