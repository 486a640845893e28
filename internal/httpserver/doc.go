// Package httpserver wraps the standard HTTP server with address
// validation and graceful shutdown.
package httpserver
