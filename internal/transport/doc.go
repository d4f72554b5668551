// Package transport owns the duplex frame channel a session runs over.
//
// Ownership boundary:
// - frame kinds (text, ping, pong)
// - the websocket adapter and its dial/TLS/backoff policy
// - the in-memory pipe used by tests and local wiring
package transport
