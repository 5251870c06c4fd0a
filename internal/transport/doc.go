// Package transport owns websocket connections for the race server.
//
// Ownership boundary:
// - connection ids and the live connection table (Hub)
// - broadcast groups keyed by session code
// - ordered bounded per-connection outboxes
// - read/write pumps, deadlines and keepalive
// - dial retry backoff used by clients
//
// Transport never mutates session state. Inbound frames become intents
// handed to a Submitter; outbound frames arrive through the Publisher
// methods and are only enqueued, never written inline.
package transport
