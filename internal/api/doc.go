// Package api provides the HTTP API and WebSocket server for Doorkeeper Core.
//
// Clients log in with an email and password, toggle the door, poll its
// state, register a push device and manage their password. Live door
// changes are pushed over a WebSocket to clients holding a ticket.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
