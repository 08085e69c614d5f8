package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/uxav/AVnetCore-sub001/internal/av"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/config"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/logging"
)

var eventTime = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// ─── Service ────────────────────────────────────────────────────────

func TestServiceFansOutInOrder(t *testing.T) {
	svc := NewService(nil)
	var got []string
	for _, name := range []string{"a", "b", "c"} {
		svc.Register(name, SinkFunc(func(_ context.Context, ev av.Event) error {
			got = append(got, name+":"+string(ev.Type))
			return nil
		}))
	}

	if err := svc.Notify(context.Background(), av.Event{Type: av.EventPowerChanged}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	want := []string{"a:room.power_changed", "b:room.power_changed", "c:room.power_changed"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("delivery = %v, want %v", got, want)
	}
}

func TestServiceIsolatesFailingSinks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(config.LoggingConfig{Level: "debug", Format: "text"}, "test", &buf)
	svc := NewService(logger)

	boom := errors.New("broker down")
	delivered := false
	svc.Register("mqtt", SinkFunc(func(context.Context, av.Event) error { return boom }))
	svc.Register("buggy", SinkFunc(func(context.Context, av.Event) error { panic("nil map") }))
	svc.Register("log", SinkFunc(func(context.Context, av.Event) error {
		delivered = true
		return nil
	}))

	err := svc.Notify(context.Background(), av.Event{Type: av.EventVideoChanged})
	if !errors.Is(err, boom) {
		t.Errorf("Notify err = %v, want it to wrap %v", err, boom)
	}
	if err == nil || !strings.Contains(err.Error(), "sink buggy: panic: nil map") {
		t.Errorf("Notify err = %v, want the recovered panic", err)
	}
	if !delivered {
		t.Error("sink after the failures was skipped")
	}
	if !strings.Contains(buf.String(), "event sink panic recovered") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

func TestServiceRegisterReplacesByName(t *testing.T) {
	svc := NewService(nil)
	calls := ""
	svc.Register("x", SinkFunc(func(context.Context, av.Event) error { calls += "old"; return nil }))
	svc.Register("y", SinkFunc(func(context.Context, av.Event) error { calls += "y"; return nil }))
	svc.Register("x", SinkFunc(func(context.Context, av.Event) error { calls += "new"; return nil }))
	svc.Register("nil", nil)

	if got := svc.Sinks(); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("Sinks() = %v", got)
	}
	_ = svc.Notify(context.Background(), av.Event{}) //nolint:errcheck // Sinks never fail here
	if calls != "newy" {
		t.Errorf("calls = %q, want newy", calls)
	}
}

// TestServiceAsEnvironmentNotifier runs a real room through the service.
func TestServiceAsEnvironmentNotifier(t *testing.T) {
	svc := NewService(nil)
	var (
		mu    sync.Mutex
		types []string
	)
	svc.Register("rec", SinkFunc(func(_ context.Context, ev av.Event) error {
		mu.Lock()
		types = append(types, fmt.Sprintf("%s:%s", ev.Type, ev.Status))
		mu.Unlock()
		return nil
	}))

	timing := av.DefaultTiming()
	timing.SourceSettle, timing.PowerOnSettle = 0, 0
	env := av.NewEnvironment(av.WithNotifier(svc), av.WithTiming(timing))
	t.Cleanup(env.Wait)

	room, err := av.NewRoom(env, av.RoomOptions{ID: 1})
	if err != nil {
		t.Fatal(err)
	}
	src, err := av.NewSource(env, av.SourceOptions{ID: 1})
	if err != nil {
		t.Fatal(err)
	}

	op, err := room.SelectSourceAsync(src, av.MainOutput)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := op.Wait(ctx); err != nil {
		t.Fatalf("selection: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{
		"room.source_changed:pending",
		"room.power_changed:",
		"room.source_changed:complete",
		"room.source_target_changed:complete",
	}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("events = %v, want %v", types, want)
	}
}

// ─── Sinks ──────────────────────────────────────────────────────────

type publishCall struct {
	topic    string
	payload  map[string]any
	qos      byte
	retained bool
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	var p map[string]any
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	f.calls = append(f.calls, publishCall{topic, p, qos, retained})
	return f.err
}

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, 1)
	ctx := context.Background()

	events := []av.Event{
		{Type: av.EventPowerChanged, RoomID: 12, Power: false, Reason: "scheduled", Time: eventTime},
		{Type: av.EventSourceChanged, RoomID: 12, SourceID: 4, OutputIndex: 1, Status: av.StatusPending, Time: eventTime},
		{Type: av.EventSourceTargetChanged, RoomID: 12, SourceID: 4, OutputIndex: 1, Status: av.StatusComplete, Time: eventTime},
		{Type: av.EventVideoChanged, SourceID: 4, Active: true, Time: eventTime},
		{Type: "unknown.type"},
	}
	for _, ev := range events {
		if err := sink.Notify(ctx, ev); err != nil {
			t.Fatalf("Notify(%s): %v", ev.Type, err)
		}
	}

	wantTopics := []struct {
		topic    string
		retained bool
	}{
		{"avnet/core/room/12/power", true},
		{"avnet/core/room/12/source", false},
		{"avnet/core/room/12/source", true},
		{"avnet/core/source/4/video", true},
	}
	if len(pub.calls) != len(wantTopics) {
		t.Fatalf("publishes = %d, want %d", len(pub.calls), len(wantTopics))
	}
	for i, w := range wantTopics {
		c := pub.calls[i]
		if c.topic != w.topic || c.retained != w.retained || c.qos != 1 {
			t.Errorf("publish %d = %s retained=%t qos=%d, want %s retained=%t", i, c.topic, c.retained, c.qos, w.topic, w.retained)
		}
	}

	power := pub.calls[0].payload
	if power["power"] != false || power["reason"] != "scheduled" || power["type"] != "room.power_changed" {
		t.Errorf("power payload = %v", power)
	}
	if power["timestamp"] != "2026-03-02T09:30:00Z" {
		t.Errorf("timestamp = %v", power["timestamp"])
	}
	if src := pub.calls[1].payload; src["source_id"] != float64(4) || src["status"] != "pending" {
		t.Errorf("source payload = %v", src)
	}

	pub.err = errors.New("not connected")
	if err := sink.Notify(ctx, events[0]); err == nil {
		t.Error("publish error not returned")
	}
}

type fakeHub struct {
	channels []string
	payloads []any
}

func (h *fakeHub) Broadcast(channel string, payload any) {
	h.channels = append(h.channels, channel)
	h.payloads = append(h.payloads, payload)
}

func TestHubSink(t *testing.T) {
	hub := &fakeHub{}
	sink := NewHubSink(hub)

	err := sink.Notify(context.Background(), av.Event{Type: av.EventVideoChanged, SourceID: 9, Active: true, Time: eventTime})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !reflect.DeepEqual(hub.channels, []string{"source.video_changed"}) {
		t.Errorf("channels = %v", hub.channels)
	}
	p, ok := hub.payloads[0].(map[string]any)
	if !ok || p["source_id"] != uint(9) || p["active"] != true {
		t.Errorf("payload = %#v", hub.payloads[0])
	}
}

type fakeMetrics struct {
	lines []string
}

func (m *fakeMetrics) WriteRoomPower(roomID uint, power bool, reason string) {
	m.lines = append(m.lines, fmt.Sprintf("power %d %t %s", roomID, power, reason))
}

func (m *fakeMetrics) WriteSourceSelection(roomID, sourceID, index uint, status string) {
	m.lines = append(m.lines, fmt.Sprintf("select %d %d %d %s", roomID, sourceID, index, status))
}

func (m *fakeMetrics) WriteSourceVideo(sourceID uint, active bool) {
	m.lines = append(m.lines, fmt.Sprintf("video %d %t", sourceID, active))
}

func TestMetricsSink(t *testing.T) {
	m := &fakeMetrics{}
	sink := NewMetricsSink(m)
	ctx := context.Background()

	for _, ev := range []av.Event{
		{Type: av.EventPowerChanged, RoomID: 1, Power: true},
		{Type: av.EventSourceChanged, RoomID: 1, SourceID: 2, OutputIndex: 1, Status: av.StatusPending},
		{Type: av.EventSourceChanged, RoomID: 1, SourceID: 2, OutputIndex: 1, Status: av.StatusFailed},
		{Type: av.EventSourceTargetChanged, RoomID: 1, SourceID: 2, OutputIndex: 1, Status: av.StatusFailed},
		{Type: av.EventVideoChanged, SourceID: 2},
	} {
		if err := sink.Notify(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	want := []string{"power 1 true ", "select 1 2 1 failed", "video 2 false"}
	if !reflect.DeepEqual(m.lines, want) {
		t.Errorf("writes = %v, want %v", m.lines, want)
	}
}
