// Package protocol owns the websocket wire contract.
//
// Ownership boundary:
// - inbound intent decoding and validation
// - outbound event envelopes
// - error classification into stable wire codes
//
// Frames are JSON text messages shaped {"type", "seq"?, "payload"?}.
package protocol
