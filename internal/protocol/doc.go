// Package protocol owns the gateway wire contract.
//
// Ownership boundary:
// - outbound command envelopes ({id?, type, ...fields})
// - inbound frame decode and Reply/Event classification
// - per-type required field validation
package protocol
