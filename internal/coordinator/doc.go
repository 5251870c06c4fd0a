// Package coordinator serializes every session mutation through one loop.
//
// Ownership boundary:
// - the intent queue and the goroutine that drains it
// - the game engine and its session table
// - routing engine events to broadcast groups or single connections
// - error replies for rejected intents
//
// Coordinator does not own sockets. Delivery is delegated to a Publisher,
// which must never block the loop.
package coordinator
