// Package session runs one authenticated Home Assistant websocket connection.
//
// Ownership boundary:
// - correlation ids and the pending-request, untagged-reply and subscription tables
// - the dispatcher goroutine that classifies inbound frames and owns those tables
// - the outbound writer that serializes frames onto the transport
// - the Client facade: Authenticate, Command, Untagged, Subscribe, Unsubscribe
//
// Tables are touched only by the dispatcher. Facade calls reach them through
// ops sent over a channel, so no lock guards the dispatch path.
package session
