// Package driver connects rooms to the hardware bridges over MQTT.
//
// MQTTDriver implements av.RoomHooks, av.ThirdPartySyncer and
// av.PrePowerOffProcessor. Each hook publishes a CommandMessage to
// avnet/command/room/{room}/{action} and blocks until the bridge answers on
// avnet/ack/room/{room}/{command_id}, the command timeout passes, or the
// hook context ends. Anything but an accepted ack fails the hook.
//
// SubscribeVideoStatus feeds bridge video-sync reports into the sources,
// and MetricsHook records active-use counts as telemetry.
package driver
