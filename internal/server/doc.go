// Package server assembles the race service process.
//
// Ownership boundary:
// - gin router, middleware and HTTP routes
// - websocket upgrade and origin policy
// - wiring of session store, coordinator and transport hub
// - process lifecycle: serve, graceful shutdown
//
// Server holds no game rules. Session reads go through the coordinator so
// handlers never touch the session table directly.
package server
