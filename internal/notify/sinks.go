package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uxav/AVnetCore-sub001/internal/av"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/mqtt"
)

// ─── MQTT ───────────────────────────────────────────────────────────

// Publisher is the part of the MQTT client the sink needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink publishes events as JSON under avnet/core.
//
// Power and video state are retained so late subscribers see the current
// value; source lifecycle messages are retained only once the selection has
// settled (source_target_changed).
type MQTTSink struct {
	pub    Publisher
	qos    byte
	topics mqtt.Topics
}

// NewMQTTSink creates a sink publishing at qos.
func NewMQTTSink(pub Publisher, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, qos: qos}
}

// Notify implements Sink.
func (m *MQTTSink) Notify(_ context.Context, ev av.Event) error {
	var (
		topic    string
		retained bool
	)
	switch ev.Type {
	case av.EventPowerChanged:
		topic, retained = m.topics.CoreRoomPower(ev.RoomID), true
	case av.EventSourceChanged:
		topic = m.topics.CoreRoomSource(ev.RoomID)
	case av.EventSourceTargetChanged:
		topic, retained = m.topics.CoreRoomSource(ev.RoomID), true
	case av.EventVideoChanged:
		topic, retained = m.topics.CoreSourceVideo(ev.SourceID), true
	default:
		return nil
	}

	payload, err := marshalEvent(ev)
	if err != nil {
		return err
	}
	return m.pub.Publish(topic, payload, m.qos, retained)
}

// marshalEvent encodes the event payload plus its type and timestamp.
func marshalEvent(ev av.Event) ([]byte, error) {
	p := ev.Payload()
	p["type"] = string(ev.Type)
	p["timestamp"] = ev.Time.UTC().Format(time.RFC3339Nano)
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", ev.Type, err)
	}
	return b, nil
}

// ─── WebSocket ──────────────────────────────────────────────────────

// Broadcaster pushes a payload to every client subscribed to channel.
// The API WebSocket hub implements it.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// HubSink broadcasts events to panels. The channel is the event type, so
// panels subscribe to e.g. "room.power_changed".
type HubSink struct {
	hub Broadcaster
}

// NewHubSink creates a sink broadcasting on hub.
func NewHubSink(hub Broadcaster) *HubSink {
	return &HubSink{hub: hub}
}

// Notify implements Sink.
func (h *HubSink) Notify(_ context.Context, ev av.Event) error {
	p := ev.Payload()
	p["timestamp"] = ev.Time.UTC().Format(time.RFC3339Nano)
	h.hub.Broadcast(string(ev.Type), p)
	return nil
}

// ─── Metrics ────────────────────────────────────────────────────────

// MetricsWriter records telemetry. *influxdb.Client implements it.
type MetricsWriter interface {
	WriteRoomPower(roomID uint, power bool, reason string)
	WriteSourceSelection(roomID, sourceID, index uint, status string)
	WriteSourceVideo(sourceID uint, active bool)
}

// MetricsSink turns events into telemetry points. Pending phases are
// skipped; only outcomes are recorded.
type MetricsSink struct {
	w MetricsWriter
}

// NewMetricsSink creates a sink writing to w.
func NewMetricsSink(w MetricsWriter) *MetricsSink {
	return &MetricsSink{w: w}
}

// Notify implements Sink.
func (m *MetricsSink) Notify(_ context.Context, ev av.Event) error {
	switch ev.Type {
	case av.EventPowerChanged:
		m.w.WriteRoomPower(ev.RoomID, ev.Power, ev.Reason)
	case av.EventSourceChanged:
		if ev.Status != av.StatusPending {
			m.w.WriteSourceSelection(ev.RoomID, ev.SourceID, ev.OutputIndex, string(ev.Status))
		}
	case av.EventVideoChanged:
		m.w.WriteSourceVideo(ev.SourceID, ev.Active)
	}
	return nil
}
