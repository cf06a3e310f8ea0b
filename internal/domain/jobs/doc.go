// Package jobs tracks asynchronous and background commands of a session.
//
// Every job gets a monotonically increasing integer id that is unique for
// the lifetime of its Table. Async jobs mirror the command that holds the
// foreground slot and are fed by the session as output arrives. Background
// jobs run detached from the shell; their state is probed on demand from an
// exit-status file, a log file and a liveness check on the pid.
//
// Terminal states (Completed, Failed, Stopped) are retained until the Table
// is discarded, which happens when the session resets.
package jobs
