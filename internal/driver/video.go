package driver

import (
	"encoding/json"
	"fmt"

	"github.com/uxav/AVnetCore-sub001/internal/av"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/mqtt"
)

// SubscribeVideoStatus applies bridge video-sync reports to the matching
// sources in env. Reports for unknown sources are rejected.
func SubscribeVideoStatus(bus mqtt.Bus, qos byte, env *av.Environment) error {
	handler := func(topic string, payload []byte) error {
		id, err := mqtt.ParseSourceVideoState(topic)
		if err != nil {
			return err
		}
		var msg VideoStateMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decoding video state for source %d: %w", id, err)
		}
		src, err := env.Source(id)
		if err != nil {
			return err
		}
		src.SetVideoStatus(msg.Active)
		return nil
	}
	if err := bus.Subscribe(mqtt.Topics{}.AllSourceVideoStates(), qos, handler); err != nil {
		return fmt.Errorf("subscribing to source video state: %w", err)
	}
	return nil
}
