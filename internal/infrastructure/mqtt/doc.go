// Package mqtt provides the MQTT bus between the AVnet core and the
// hardware bridges that drive switchers, displays and codecs.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
//	avnet/command/room/{room}/{action}     core -> bridge
//	avnet/ack/room/{room}/{request_id}     bridge -> core
//	avnet/state/source/{source}/video      bridge -> core
//	avnet/core/room/{room}/power|source    core -> panels, integrations
//	avnet/core/source/{source}/video       core -> panels, integrations
//	avnet/system/status                    LWT and online status
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish(mqtt.Topics{}.RoomCommand(12, "power_on"), payload, 1, false)
//
// Consumers depend on the Bus interface so tests can run without a broker.
package mqtt
