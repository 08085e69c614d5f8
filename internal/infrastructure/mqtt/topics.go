package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic prefixes for the AVnet bus.
//
// Bridges (the processes that talk to switchers, displays and codecs) use
// avnet/{category}/{kind}/{id}/...; the core publishes its own state under
// avnet/core.
const (
	// TopicPrefix is the base for bridge command, ack and state topics.
	TopicPrefix = "avnet"

	// TopicPrefixCore is the base for state published by the core.
	TopicPrefixCore = "avnet/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "avnet/system"
)

// Topics provides builders for AVnet MQTT topics.
//
//	topics := mqtt.Topics{}
//	cmd := topics.RoomCommand(12, "source")
//	// Returns: "avnet/command/room/12/source"
type Topics struct{}

// ─── Bridge topics ──────────────────────────────────────────────────

// RoomCommand returns the topic for a command to the bridge serving a room.
//
// Example: avnet/command/room/12/power_on
func (Topics) RoomCommand(roomID uint, action string) string {
	return fmt.Sprintf("%s/command/room/%d/%s", TopicPrefix, roomID, action)
}

// RoomAck returns the topic a bridge acknowledges a room command on.
//
// Example: avnet/ack/room/12/6f1c2a...
func (Topics) RoomAck(roomID uint, requestID string) string {
	return fmt.Sprintf("%s/ack/room/%d/%s", TopicPrefix, roomID, requestID)
}

// SourceVideoState returns the topic a bridge reports a source's video
// sync on.
//
// Example: avnet/state/source/4/video
func (Topics) SourceVideoState(sourceID uint) string {
	return fmt.Sprintf("%s/state/source/%d/video", TopicPrefix, sourceID)
}

// ─── Core topics ────────────────────────────────────────────────────

// CoreRoomPower returns the retained room power topic.
//
// Example: avnet/core/room/12/power
func (Topics) CoreRoomPower(roomID uint) string {
	return fmt.Sprintf("%s/room/%d/power", TopicPrefixCore, roomID)
}

// CoreRoomSource returns the room source topic.
//
// Example: avnet/core/room/12/source
func (Topics) CoreRoomSource(roomID uint) string {
	return fmt.Sprintf("%s/room/%d/source", TopicPrefixCore, roomID)
}

// CoreSourceVideo returns the retained source video topic.
//
// Example: avnet/core/source/4/video
func (Topics) CoreSourceVideo(sourceID uint) string {
	return fmt.Sprintf("%s/source/%d/video", TopicPrefixCore, sourceID)
}

// ─── System topics ──────────────────────────────────────────────────

// SystemStatus returns the system status topic.
//
// Example: avnet/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// ─── Wildcard patterns ──────────────────────────────────────────────

// AllRoomAcks matches every room command acknowledgement.
//
// Pattern: avnet/ack/room/+/+
func (Topics) AllRoomAcks() string {
	return TopicPrefix + "/ack/room/+/+"
}

// AllSourceVideoStates matches every source video report.
//
// Pattern: avnet/state/source/+/video
func (Topics) AllSourceVideoStates() string {
	return TopicPrefix + "/state/source/+/video"
}

// AllCoreTopics matches everything the core publishes.
//
// Pattern: avnet/core/#
func (Topics) AllCoreTopics() string {
	return TopicPrefixCore + "/#"
}

// ─── Parsing ────────────────────────────────────────────────────────

// ParseRoomAck extracts the room ID and request ID from a RoomAck topic.
func ParseRoomAck(topic string) (roomID uint, requestID string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != TopicPrefix || parts[1] != "ack" || parts[2] != "room" || parts[4] == "" {
		return 0, "", fmt.Errorf("%w: not a room ack topic: %q", ErrInvalidTopic, topic)
	}
	id, err := parseID(parts[3])
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q: %w", ErrInvalidTopic, topic, err)
	}
	return id, parts[4], nil
}

// ParseSourceVideoState extracts the source ID from a SourceVideoState topic.
func ParseSourceVideoState(topic string) (uint, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != TopicPrefix || parts[1] != "state" || parts[2] != "source" || parts[4] != "video" {
		return 0, fmt.Errorf("%w: not a source video topic: %q", ErrInvalidTopic, topic)
	}
	id, err := parseID(parts[3])
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidTopic, topic, err)
	}
	return id, nil
}

func parseID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("id must be non-zero")
	}
	return uint(n), nil
}

// MatchTopic reports whether topic matches an MQTT subscription filter,
// honouring the + and # wildcards.
func MatchTopic(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, f := range fp {
		if f == "#" {
			return i == len(fp)-1
		}
		if i >= len(tp) {
			return false
		}
		if f != "+" && f != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}
