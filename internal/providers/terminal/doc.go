// Package terminal owns the interactive shell process behind a session.
//
// A PTY transport starts the shell on a pseudo-terminal (creack/pty), copies
// everything the terminal prints into an offset-addressed Buffer and watches
// the process so that callers learn immediately when the shell dies.
//
// Architecture:
//   - readOutput goroutine: PTY master → Buffer, signalling Notify on each chunk
//   - monitorProcess goroutine: cmd.Wait → Done closed, Err set
//   - Write: raw bytes to the PTY master (commands, input, control bytes)
//
// Buffer offsets are absolute: a reader remembers the offset it has consumed
// up to and asks for everything Since that point. Old bytes beyond the
// retention window are dropped; a reader that falls behind resumes at the
// oldest retained byte.
//
// Example Usage:
//
//	t := terminal.NewPTY(terminal.Options{WorkDir: "/workspace"})
//	if err := t.Start(); err != nil { ... }
//	defer t.Close()
//
//	t.Write([]byte("ls -la\n"))
//	<-t.Output().Notify()
//	out, next := t.Output().Since(0)
package terminal
