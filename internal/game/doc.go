// Package game owns authoritative race state.
//
// Ownership boundary:
// - session table (Store)
// - turn order, dice application, win detection (Engine)
// - event production for broadcast
//
// Engine and Store are single-owner: exactly one goroutine (the coordinator
// loop) may call into them. Neither type locks.
//
// Session lifecycle:
// - waiting -> active -> finished
//
// - any phase may drop back to waiting or be destroyed on disconnect.
//
// Game does not own transport, group membership, or encoding.
package game
