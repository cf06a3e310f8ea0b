package terminal

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
)

// PTY runs a shell on a pseudo-terminal
type PTY struct {
	opts Options

	// Process management
	cmd  *exec.Cmd
	ptmx *os.File

	// Output buffering
	buf *Buffer

	// Lifecycle
	done    chan struct{}
	exitErr error
	started bool
	closed  bool
	mu      sync.RWMutex
	writeMu sync.Mutex
}

// NewPTY creates an unstarted PTY transport
func NewPTY(opts Options) *PTY {
	if opts.Shell == "" {
		opts.Shell = os.Getenv("SHELL")
		if opts.Shell == "" {
			opts.Shell = "/bin/bash"
		}
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.Getenv("HOME")
		if opts.WorkDir == "" {
			opts.WorkDir = "/tmp"
		}
	}
	if opts.Term == "" {
		opts.Term = "xterm-256color"
	}
	if opts.Cols <= 0 {
		opts.Cols = 1024
	}
	if opts.Rows <= 0 {
		opts.Rows = 24
	}

	return &PTY{
		opts: opts,
		buf:  NewBuffer(opts.MaxBytes),
		done: make(chan struct{}),
	}
}

// Start launches the shell
func (p *PTY) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.started {
		return nil
	}

	cmd := exec.Command(p.opts.Shell, p.opts.Args...)
	cmd.Dir = p.opts.WorkDir
	cmd.Env = append(os.Environ(), "TERM="+p.opts.Term)
	for key, value := range p.opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(p.opts.Rows),
		Cols: uint16(p.opts.Cols),
	})
	if err != nil {
		return fmt.Errorf("failed to start PTY: %w", err)
	}

	p.cmd = cmd
	p.ptmx = ptmx
	p.started = true

	go p.readOutput()
	go p.monitorProcess()

	return nil
}

// readOutput continuously reads from PTY and buffers output
func (p *PTY) readOutput() {
	buf := make([]byte, 4096)
	for {
		n, err := p.ptmx.Read(buf)
		if n > 0 {
			p.buf.Write(buf[:n])
		}
		if err != nil {
			// EOF or EIO once the shell side is gone
			return
		}
	}
}

// monitorProcess waits for process to exit and cleans up
func (p *PTY) monitorProcess() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.closed = true
	p.mu.Unlock()

	p.ptmx.Close()
	close(p.done)
}

// Write sends raw bytes to the terminal
func (p *PTY) Write(b []byte) (int, error) {
	p.mu.RLock()
	started, closed := p.started, p.closed
	p.mu.RUnlock()

	if !started {
		return 0, ErrNotStarted
	}
	if closed {
		return 0, ErrClosed
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.ptmx.Write(b)
}

// Output returns the output buffer
func (p *PTY) Output() *Buffer {
	return p.buf
}

// Done is closed when the shell process has exited
func (p *PTY) Done() <-chan struct{} {
	return p.done
}

// Err returns the shell's exit error once Done is closed
func (p *PTY) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Pid returns the shell's process id, 0 before Start
func (p *PTY) Pid() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Resize changes terminal dimensions
func (p *PTY) Resize(cols, rows int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.closed {
		return ErrClosed
	}
	p.opts.Cols = cols
	p.opts.Rows = rows

	return pty.Setsize(p.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

// Close kills the shell and releases the terminal. It is safe to call more
// than once and from any goroutine.
func (p *PTY) Close() error {
	p.mu.Lock()
	if !p.started {
		p.closed = true
		p.mu.Unlock()
		return nil
	}
	alreadyExited := p.closed
	p.closed = true
	p.mu.Unlock()

	if !alreadyExited {
		killGroup(p.cmd)
	}

	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		p.ptmx.Close()
		return fmt.Errorf("shell did not exit after kill")
	}
	return nil
}
