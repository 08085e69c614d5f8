package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementRoomPower       = "room_power"
	MeasurementSourceSelection = "source_selection"
	MeasurementSourceActiveUse = "source_active_use"
	MeasurementSourceVideo     = "source_video"
)

// WriteRoomPower records a room power transition.
//
//	client.WriteRoomPower(12, false, "scheduled")
func (c *Client) WriteRoomPower(roomID uint, power bool, reason string) {
	c.writePoint(RoomPowerPoint(c.siteID, roomID, power, reason, time.Now()))
}

// WriteSourceSelection records a source selection phase for a room output.
func (c *Client) WriteSourceSelection(roomID, sourceID, index uint, status string) {
	c.writePoint(SourceSelectionPoint(c.siteID, roomID, sourceID, index, status, time.Now()))
}

// WriteSourceActiveUse records how many room outputs currently present a source.
func (c *Client) WriteSourceActiveUse(sourceID uint, count int) {
	c.writePoint(SourceActiveUsePoint(c.siteID, sourceID, count, time.Now()))
}

// WriteSourceVideo records a change in a source's video sync.
func (c *Client) WriteSourceVideo(sourceID uint, active bool) {
	c.writePoint(SourceVideoPoint(c.siteID, sourceID, active, time.Now()))
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.writePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

// ─── Point builders ─────────────────────────────────────────────────

// RoomPowerPoint builds a room_power point. Power is stored as 0/1 so it
// can be aggregated into on-time.
func RoomPowerPoint(siteID string, roomID uint, power bool, reason string, ts time.Time) *write.Point {
	tags := map[string]string{
		"site_id": siteID,
		"room_id": formatID(roomID),
	}
	if reason != "" {
		tags["reason"] = reason
	}
	return write.NewPoint(MeasurementRoomPower, tags,
		map[string]interface{}{"power": boolToInt(power)}, ts)
}

// SourceSelectionPoint builds a source_selection point. A sourceID of 0
// means the output was cleared.
func SourceSelectionPoint(siteID string, roomID, sourceID, index uint, status string, ts time.Time) *write.Point {
	return write.NewPoint(MeasurementSourceSelection,
		map[string]string{
			"site_id":      siteID,
			"room_id":      formatID(roomID),
			"output_index": formatID(index),
			"status":       status,
		},
		map[string]interface{}{"source_id": int64(sourceID)}, ts)
}

// SourceActiveUsePoint builds a source_active_use point.
func SourceActiveUsePoint(siteID string, sourceID uint, count int, ts time.Time) *write.Point {
	return write.NewPoint(MeasurementSourceActiveUse,
		map[string]string{
			"site_id":   siteID,
			"source_id": formatID(sourceID),
		},
		map[string]interface{}{"count": int64(count)}, ts)
}

// SourceVideoPoint builds a source_video point.
func SourceVideoPoint(siteID string, sourceID uint, active bool, ts time.Time) *write.Point {
	return write.NewPoint(MeasurementSourceVideo,
		map[string]string{
			"site_id":   siteID,
			"source_id": formatID(sourceID),
		},
		map[string]interface{}{"active": boolToInt(active)}, ts)
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
