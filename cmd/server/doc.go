// Package main is the entry point of the runtime server.
//
// The server keeps one interactive shell session alive and exposes it over
// HTTP:
//
//	client → POST /execute_action → session → bash (PTY) or gosh
//
// The server provides:
//   - command execution with soft timeouts and interactive input
//   - file read, write, edit, listing, download and preview
//   - background job tracking with WebSocket streaming
//   - Prometheus metrics and system stats
//
// Configuration:
//   - CONFIG_FILE (YAML or TOML)
//   - Environment variables (12-factor)
//   - CLI flags (override both)
//
// Usage:
//
//	./server -port 8000 -workdir /workspace
//
//	# Development mode (colored logs)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
