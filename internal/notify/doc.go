// Package notify delivers room and source events to the outside world.
//
// Service implements av.Notifier and fans every event out to its sinks:
// the MQTT bus (retained state for integrations), WebSocket panels,
// InfluxDB telemetry and the SQLite event log. A failing or panicking sink
// never stops the others.
//
//	svc := notify.NewService(logger)
//	svc.Register("mqtt", notify.NewMQTTSink(client, 1))
//	svc.Register("ws", notify.NewHubSink(hub))
//	env := av.NewEnvironment(av.WithNotifier(svc))
package notify
