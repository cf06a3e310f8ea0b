// Package system reports host and process statistics for /system/stats
// and /server_info.
//
// Process figures come from procfs and are only available on Linux.
// Command latency is summarized over a fixed window of recent commands.
package system
