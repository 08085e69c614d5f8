package auth

import (
	"errors"
	"time"
)

// Role represents an authorisation tier.
type Role string

const (
	// RolePanel is a wall or lectern panel. A panel bound to a room can only
	// control that room; an unbound panel can only read.
	RolePanel Role = "panel"

	// RoleAdmin can read and control every room.
	RoleAdmin Role = "admin"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RolePanel || r == RoleAdmin
}

// Panel is a device identity allowed to call the API.
type Panel struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	SecretHash string     `json:"-"` // never serialised
	Role       Role       `json:"role"`
	RoomID     uint       `json:"room_id,omitempty"`
	Active     bool       `json:"active"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CanControlRoom reports whether the panel may change power or sources in
// the given room.
func (p *Panel) CanControlRoom(roomID uint) bool {
	return canControl(p.Role, p.RoomID, roomID)
}

func canControl(role Role, boundRoom, roomID uint) bool {
	if role == RoleAdmin {
		return true
	}
	return boundRoom != 0 && boundRoom == roomID
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPanelNotFound      = errors.New("panel not found")
	ErrPanelExists        = errors.New("panel already exists")
	ErrPanelInactive      = errors.New("panel is inactive")
	ErrInvalidPanel       = errors.New("invalid panel")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrForbidden          = errors.New("insufficient permissions")
)
