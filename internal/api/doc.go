// Package api provides the HTTP REST API and WebSocket server for AVnet Core.
//
// Touch panels and admin tools use it to read room and source state, switch
// room power, route sources and page through the event history. Room events
// are pushed to WebSocket clients by the Hub, which the notify service feeds
// as a sink.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
