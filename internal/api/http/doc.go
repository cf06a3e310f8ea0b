// Package http provides the HTTP handlers of the runtime API.
//
// Routes:
//   - GET  /, /alive, /server_info, /system/stats: status
//   - POST /reset: replace the shell session
//   - POST /execute_action: run, read, write and edit actions
//   - GET  /jobs, /jobs/:id: async and background jobs
//   - POST /list_files, GET /download_files, GET /view-file: file access
//
// Action failures caused by the session protocol are reported as error
// observations; file failures are reported inside the file observation.
//
// Example Usage:
//
//	handlers := http.NewHandlers(sessions, files, stats, metrics, tracer, logger)
//	handlers.Register(router)
package http
