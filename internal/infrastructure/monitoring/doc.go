/*
Package monitoring provides Prometheus metrics for the runtime server.

# Overview

Metrics live in their own registry so tests can build as many collectors as
they need. The Metrics type also satisfies the session recorder contract and
receives one event per finished command, timeout and reset.

# Metrics

  - runtime_http_requests_total, runtime_http_request_duration_seconds
  - runtime_commands_total{mode,outcome}, runtime_command_duration_seconds
  - runtime_command_timeouts_total{kind}
  - runtime_session_resets_total
  - runtime_jobs_active
  - runtime_file_actions_total{action,status}
  - runtime_ws_connections

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "filesystem", "list")
	// ... perform operation ...
	timer.Stop("success")
*/
package monitoring
