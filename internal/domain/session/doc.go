// Package session implements the persistent command-session engine.
//
// A Runtime owns one interactive shell and runs requests against it one at a
// time. Two backends satisfy the same contract and are chosen once at startup:
//   - Bash: a PTY-backed interactive bash with a sentinel prompt
//   - Gosh: a shell hosted by viant/gosh, limited to synchronous commands
//
// Execution model (Bash):
//   - A request is parsed into a poll, a control key or a command.
//   - Commands are classified as sync, async or background.
//   - Sync and async commands occupy the single foreground slot until the
//     prompt marker reports their exit status.
//   - Background commands are launched detached and tracked in the job table.
//   - The detector waits on three conditions: new output, the hard deadline
//     and the no-output deadline. Neither deadline kills anything; the
//     command keeps the slot and the caller may poll, send input or send a
//     control key.
//
// The Manager holds the current Runtime and replaces it on reset. Closing a
// Runtime does not wait for an in-flight Execute; that call returns ErrClosed.
//
// Example Usage:
//
//	rt := session.NewBash(cfg, session.WithLogger(logger))
//	if err := rt.Initialize(ctx); err != nil { ... }
//	obs, err := rt.Execute(ctx, command.Command{Text: "ls -la"})
//	fmt.Println(obs.Text(), obs.ExitCode, obs.Cwd)
package session
