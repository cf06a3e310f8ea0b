// Package ws streams job progress over WebSockets.
//
// A client connects to /jobs/:id/stream and receives a snapshot of the job
// whenever its state or output changes, until the job reaches a terminal
// state or the connection closes.
//
// Message Types (Server → Client):
//   - job: current job snapshot
//   - complete: the job finished; the server closes the connection
//   - error: the job or session is gone
//
// Message Types (Client → Server):
//   - ping: keep-alive, answered with pong
//
// Example Usage:
//
//	handler := ws.NewHandler(sessions, metrics, logger)
//	router.GET("/jobs/:id/stream", handler.StreamJob)
package ws
