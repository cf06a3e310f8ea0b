// Package server wires configuration, the session manager, the file service
// and the HTTP API into a runnable server.
//
// Middleware order: recovery, request ID, tracing, metrics, CORS, rate limit,
// API key.
package server
