package catalog

import "github.com/uxav/AVnetCore-sub001/internal/av"

// Room is a stored room definition.
type Room struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	ScreenName      string `json:"screen_name,omitempty"`
	ParentID        uint   `json:"parent_id,omitempty"`
	DefaultSourceID uint   `json:"default_source_id,omitempty"`
}

// Source is a stored source definition.
type Source struct {
	ID        uint          `json:"id"`
	Type      av.SourceType `json:"type"`
	Name      string        `json:"name"`
	GroupName string        `json:"group_name,omitempty"`
	IconName  string        `json:"icon_name,omitempty"`
	Priority  uint          `json:"priority"`
	DisplayID uint          `json:"display_id,omitempty"`
}

// Assignment links a source to a room it may be selected in.
type Assignment struct {
	SourceID uint `json:"source_id"`
	RoomID   uint `json:"room_id"`
}
