// Package client is the outward-facing SDK for the scheduler service: a
// bearer-authenticated HTTP client with retry, backoff and a circuit
// breaker, and a websocket event-stream client with automatic
// reconnection.
package client
