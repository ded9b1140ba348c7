// Package broadcast implements the WebSocket status stream using the actor pattern.
//
// The Hub fans instance status updates out to all clients subscribed to that
// instance. Uses single goroutine + command channel (no mutexes). Per-connection
// write goroutines handle slow clients gracefully.
package broadcast
