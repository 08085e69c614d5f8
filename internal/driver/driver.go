package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uxav/AVnetCore-sub001/internal/av"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/logging"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/mqtt"
)

const defaultCommandTimeout = 10 * time.Second

// Options configures an MQTTDriver.
type Options struct {
	// QoS for commands and subscriptions.
	QoS byte

	// CommandTimeout bounds the wait for each ack. Defaults to 10s.
	CommandTimeout time.Duration

	Logger *logging.Logger
}

// MQTTDriver drives rooms through bridges on the MQTT bus. One driver
// serves every room.
//
// Thread Safety: all methods are safe for concurrent use.
type MQTTDriver struct {
	bus     mqtt.Bus
	qos     byte
	timeout time.Duration
	logger  *logging.Logger
	topics  mqtt.Topics
	now     func() time.Time

	mu      sync.Mutex
	started bool
	pending map[string]chan AckMessage
}

var (
	_ av.RoomHooks            = (*MQTTDriver)(nil)
	_ av.ThirdPartySyncer     = (*MQTTDriver)(nil)
	_ av.PrePowerOffProcessor = (*MQTTDriver)(nil)
)

// New creates a driver on bus. Call Start before using it as room hooks.
func New(bus mqtt.Bus, opts Options) *MQTTDriver {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &MQTTDriver{
		bus:     bus,
		qos:     opts.QoS,
		timeout: opts.CommandTimeout,
		logger:  opts.Logger,
		now:     time.Now,
		pending: make(map[string]chan AckMessage),
	}
}

// Start subscribes to command acknowledgements.
func (d *MQTTDriver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}
	if err := d.bus.Subscribe(d.topics.AllRoomAcks(), d.qos, d.handleAck); err != nil {
		return fmt.Errorf("subscribing to room acks: %w", err)
	}
	d.started = true
	return nil
}

// Stop unsubscribes from acknowledgements. Commands still waiting time out.
func (d *MQTTDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil
	}
	d.started = false
	if err := d.bus.Unsubscribe(d.topics.AllRoomAcks()); err != nil {
		return fmt.Errorf("unsubscribing from room acks: %w", err)
	}
	return nil
}

// SourceShouldLoad implements av.RoomHooks. A nil next clears the output.
func (d *MQTTDriver) SourceShouldLoad(ctx context.Context, room *av.Room, previous, next *av.Source, index uint) error {
	params := map[string]any{
		"output_index":       index,
		"source_id":          sourceID(next),
		"previous_source_id": sourceID(previous),
	}
	if next != nil {
		params["source_type"] = next.Type().String()
	}
	return d.command(ctx, room.ID(), ActionSource, params)
}

// RoomPowerOnProcess implements av.RoomHooks.
func (d *MQTTDriver) RoomPowerOnProcess(ctx context.Context, room *av.Room) error {
	return d.command(ctx, room.ID(), ActionPowerOn, nil)
}

// RoomPowerOffProcess implements av.RoomHooks.
func (d *MQTTDriver) RoomPowerOffProcess(ctx context.Context, room *av.Room, reason av.PowerOffReason) error {
	return d.command(ctx, room.ID(), ActionPowerOff, map[string]any{"reason": string(reason)})
}

// PrePowerOffProcess implements av.PrePowerOffProcessor.
func (d *MQTTDriver) PrePowerOffProcess(ctx context.Context, room *av.Room, reason av.PowerOffReason) error {
	return d.command(ctx, room.ID(), ActionPrePowerOff, map[string]any{"reason": string(reason)})
}

// SyncThirdPartyPower implements av.ThirdPartySyncer.
func (d *MQTTDriver) SyncThirdPartyPower(ctx context.Context, room *av.Room, power bool) error {
	return d.command(ctx, room.ID(), ActionSyncPower, map[string]any{"power": power})
}

// command publishes one command and waits for its ack.
func (d *MQTTDriver) command(ctx context.Context, roomID uint, action string, params map[string]any) error {
	msg := CommandMessage{
		ID:        uuid.NewString(),
		Timestamp: d.now().UTC(),
		RoomID:    roomID,
		Action:    action,
		Params:    params,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s command: %w", action, err)
	}

	ackCh := make(chan AckMessage, 1)
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return ErrNotStarted
	}
	d.pending[msg.ID] = ackCh
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.pending, msg.ID)
		d.mu.Unlock()
	}()

	if err := d.bus.Publish(d.topics.RoomCommand(roomID, action), payload, d.qos, false); err != nil {
		return fmt.Errorf("publishing %s for room %d: %w", action, roomID, err)
	}
	d.logger.Debug("room command sent", "room_id", roomID, "action", action, "command_id", msg.ID)

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case ack := <-ackCh:
		if ack.Status == AckAccepted {
			return nil
		}
		detail := string(ack.Status)
		if ack.Error != nil {
			detail = fmt.Sprintf("%s: %s", ack.Error.Code, ack.Error.Message)
		}
		return fmt.Errorf("%w: %s for room %d: %s", ErrCommandRejected, action, roomID, detail)
	case <-timer.C:
		return fmt.Errorf("%w: %s for room %d after %v", ErrCommandTimeout, action, roomID, d.timeout)
	case <-ctx.Done():
		return fmt.Errorf("%s for room %d: %w", action, roomID, ctx.Err())
	}
}

// handleAck routes an ack to the command waiting for it. Acks nobody is
// waiting for (late or duplicate) are dropped.
func (d *MQTTDriver) handleAck(topic string, payload []byte) error {
	_, commandID, err := mqtt.ParseRoomAck(topic)
	if err != nil {
		return err
	}
	var ack AckMessage
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("decoding ack %s: %w", commandID, err)
	}
	if ack.CommandID == "" {
		ack.CommandID = commandID
	}

	d.mu.Lock()
	ch, ok := d.pending[ack.CommandID]
	d.mu.Unlock()
	if !ok {
		d.logger.Debug("dropping unmatched room ack", "command_id", ack.CommandID)
		return nil
	}
	select {
	case ch <- ack:
	default:
	}
	return nil
}

func sourceID(src *av.Source) uint {
	if src == nil {
		return 0
	}
	return src.ID()
}
