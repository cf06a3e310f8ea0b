// Package types provides the wire types shared by the HTTP API and its client.
//
// Request Types:
//   - ActionRequest: body of /execute_action
//   - ListFilesRequest: body of /list_files
//
// Response Types:
//   - Observation: result of an action, with per-kind extras
//   - AliveResponse, ServerInfo, StatsResponse: status routes
//
// Example Usage:
//
//	req := types.ActionRequest{Action: types.Action{
//	    Action: types.ActionRun,
//	    Args:   types.ActionArgs{Command: "ls -la"},
//	}}
package types
