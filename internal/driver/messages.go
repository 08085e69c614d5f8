package driver

import "time"

// Command actions.
const (
	ActionSource      = "source"
	ActionPowerOn     = "power_on"
	ActionPowerOff    = "power_off"
	ActionPrePowerOff = "pre_power_off"
	ActionSyncPower   = "sync_power"
)

// CommandMessage is sent from the core to a bridge.
// Topic: avnet/command/room/{room}/{action}
type CommandMessage struct {
	// ID correlates the command with its acknowledgement.
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	RoomID    uint           `json:"room_id"`
	Action    string         `json:"action"`
	Params    map[string]any `json:"params,omitempty"`
}

// AckStatus is the outcome a bridge reports for a command.
type AckStatus string

const (
	// AckAccepted means the bridge carried the command out.
	AckAccepted AckStatus = "accepted"

	// AckFailed means the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage is sent from a bridge to acknowledge a command.
// Topic: avnet/ack/room/{room}/{command_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	Status    AckStatus `json:"status"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError carries failure details.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// VideoStateMessage reports a source's video sync.
// Topic: avnet/state/source/{source}/video
type VideoStateMessage struct {
	Active bool `json:"active"`
}
