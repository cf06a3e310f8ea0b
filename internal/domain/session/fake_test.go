package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/shx815/simple-openhands/internal/providers/terminal"
)

var tokenPattern = regexp.MustCompile(`###RT_([0-9a-f]+)_BEGIN###`)

// fakeShell is a scripted transport. The first write installs the prompt;
// every later write is passed to handle, which emits output and prompts.
type fakeShell struct {
	buf  *terminal.Buffer
	done chan struct{}
	cwd  string

	mu       sync.Mutex
	token    string
	writes   []string
	handle   func(f *fakeShell, line string)
	closed   bool
	exitErr  error
	startErr error
}

func newFakeShell(cwd string) *fakeShell {
	return &fakeShell{
		buf:  terminal.NewBuffer(0),
		done: make(chan struct{}),
		cwd:  cwd,
	}
}

func (f *fakeShell) Start() error { return f.startErr }

func (f *fakeShell) Write(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, terminal.ErrClosed
	}
	line := string(p)
	f.writes = append(f.writes, line)
	if f.token == "" {
		if m := tokenPattern.FindStringSubmatch(line); m != nil {
			f.token = m[1]
		}
		f.mu.Unlock()
		f.prompt(0, 0)
		return len(p), nil
	}
	h := f.handle
	f.mu.Unlock()

	if h != nil {
		h(f, line)
	}
	return len(p), nil
}

func (f *fakeShell) Output() *terminal.Buffer { return f.buf }
func (f *fakeShell) Done() <-chan struct{}    { return f.done }
func (f *fakeShell) Pid() int                 { return 4321 }

func (f *fakeShell) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exitErr
}

func (f *fakeShell) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

// exit simulates the shell dying on its own
func (f *fakeShell) exit(err error) {
	f.mu.Lock()
	f.exitErr = err
	f.mu.Unlock()
	f.Close()
}

func (f *fakeShell) emit(s string) {
	f.buf.Write([]byte(s))
}

func (f *fakeShell) prompt(exitCode, pid int) {
	f.mu.Lock()
	token, cwd := f.token, f.cwd
	f.mu.Unlock()

	p := ""
	if pid > 0 {
		p = fmt.Sprint(pid)
	}
	f.emit(fmt.Sprintf("\r\n###RT_%s_BEGIN###%d;%s;%s###RT_%s_END###\r\n", token, exitCode, p, cwd, token))
}

func (f *fakeShell) setHandler(h func(f *fakeShell, line string)) {
	f.mu.Lock()
	f.handle = h
	f.mu.Unlock()
}

func (f *fakeShell) lastWrite() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return ""
	}
	return f.writes[len(f.writes)-1]
}

// echoHandler answers "echo x" with x and everything else with no output
func echoHandler(f *fakeShell, line string) {
	line = strings.TrimSuffix(line, "\n")
	if rest, ok := strings.CutPrefix(line, "echo "); ok {
		f.emit(rest + "\r\n")
	}
	f.prompt(0, 0)
}

// scanWatcher collects detector scan events
type scanWatcher chan int64

func (w scanWatcher) hook(end int64) {
	select {
	case w <- end:
	default:
	}
}

// await blocks until the detector has scanned at least n bytes
func (w scanWatcher) await(t *testing.T, n int64) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case end := <-w:
			if end >= n {
				return
			}
		case <-deadline:
			t.Fatalf("detector never scanned %d bytes", n)
		}
	}
}

var errShellGone = errors.New("exit status 1")

type fakeEnv struct {
	bash  *Bash
	shell *fakeShell
	clock *clocktesting.FakeClock
	scans scanWatcher
}

func newFakeEnv(t *testing.T, cfg Config, opts ...Option) *fakeEnv {
	t.Helper()
	if cfg.WorkDir == "" {
		cfg.WorkDir = t.TempDir()
	}
	if cfg.JobDir == "" {
		cfg.JobDir = t.TempDir()
	}

	clk := clocktesting.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	shell := newFakeShell(cfg.WorkDir)
	shell.setHandler(echoHandler)

	b := NewBash(cfg, append([]Option{WithClock(clk)}, opts...)...).
		WithTransportFactory(func(terminal.Options) terminal.Transport { return shell })
	scans := make(scanWatcher, 64)
	b.detector.scanned = scans.hook

	t.Cleanup(func() { b.Close() })
	return &fakeEnv{bash: b, shell: shell, clock: clk, scans: scans}
}

func (e *fakeEnv) init(t *testing.T) {
	t.Helper()
	require.NoError(t, e.bash.Initialize(t.Context()))
}
