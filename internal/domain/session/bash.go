package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/shx815/simple-openhands/internal/domain/command"
	"github.com/shx815/simple-openhands/internal/domain/jobs"
	"github.com/shx815/simple-openhands/internal/domain/sentinel"
	"github.com/shx815/simple-openhands/internal/providers/terminal"
)

// setupLine prepares an interactive bash for unattended use before the
// prompt marker is installed
const setupLine = "set +H 2>/dev/null; set -o ignoreeof; export PAGER=cat GIT_PAGER=cat SYSTEMD_PAGER= TERM=xterm-256color; "

// TransportFactory builds the transport for a session
type TransportFactory func(opts terminal.Options) terminal.Transport

// foreground is the command holding the foreground slot
type foreground struct {
	text    string
	mode    command.Mode
	jobID   int
	started time.Time
	key     command.Key
}

// Bash is the PTY-backed runtime
type Bash struct {
	cfg          Config
	opts         options
	newTransport TransportFactory
	proto        *sentinel.Protocol
	detector     *detector
	sem          semaphore
	closeCh      chan struct{}
	hostname     string

	mu          sync.RWMutex
	transport   terminal.Transport
	initialized bool
	closed      bool
	dead        bool
	cwd         string
	offset      int64
	fg          *foreground
	jobs        *jobs.Table
	prober      *jobs.FileProber
}

// NewBash creates an uninitialized bash runtime
func NewBash(cfg Config, opts ...Option) *Bash {
	o := buildOptions(opts)
	proto := sentinel.New()
	return &Bash{
		cfg:          cfg.withDefaults(),
		opts:         o,
		newTransport: func(to terminal.Options) terminal.Transport { return terminal.NewPTY(to) },
		proto:        proto,
		detector:     &detector{proto: proto, clock: o.clock},
		sem:          make(semaphore, 1),
		closeCh:      make(chan struct{}),
	}
}

// WithTransportFactory replaces the PTY transport, mainly for tests
func (b *Bash) WithTransportFactory(f TransportFactory) *Bash {
	b.newTransport = f
	return b
}

// Initialize starts the shell, installs the prompt marker and moves to the
// work dir. The session is unusable if it fails.
func (b *Bash) Initialize(ctx context.Context) error {
	if err := b.sem.acquire(ctx, b.closeCh); err != nil {
		return err
	}
	defer b.sem.release()

	b.mu.RLock()
	initialized, closed := b.initialized, b.closed
	b.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if initialized {
		return nil
	}

	if err := os.MkdirAll(b.cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrInitialize, err)
	}

	jobDir := b.cfg.JobDir
	if jobDir == "" {
		jobDir = filepath.Join(os.TempDir(), "rt-jobs-"+b.proto.Token()[:12])
	}
	prober, err := jobs.NewFileProber(jobDir, b.cfg.Shell)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitialize, err)
	}

	t := b.newTransport(terminal.Options{
		Shell:    b.cfg.Shell,
		Args:     b.cfg.ShellArgs,
		WorkDir:  b.cfg.WorkDir,
		Env:      b.cfg.Env,
		Cols:     b.cfg.Cols,
		Rows:     b.cfg.Rows,
		MaxBytes: b.cfg.MaxOutputBytes,
	})
	if err := t.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrInitialize, err)
	}

	line := setupLine + b.proto.PromptCommand() + "; cd " + shellQuote(b.cfg.WorkDir) + "\n"
	if _, err := t.Write([]byte(line)); err != nil {
		t.Close()
		return fmt.Errorf("%w: %v", ErrInitialize, err)
	}

	res := b.detector.wait(ctx, t, b.closeCh, 0, b.cfg.InitTimeout, 0)
	if res.outcome != completed {
		t.Close()
		return fmt.Errorf("%w: shell did not report a prompt (%s)", ErrInitialize, res.outcome)
	}

	b.hostname, _ = os.Hostname()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		t.Close()
		return ErrClosed
	}
	b.transport = t
	b.offset = res.next
	b.cwd = res.marker.Cwd
	b.prober = prober
	b.jobs = jobs.NewTable(b.opts.clock, prober)
	b.initialized = true

	b.opts.logger.Info("Shell session initialized",
		zap.String("shell", b.cfg.Shell),
		zap.String("cwd", b.cwd),
		zap.Int("pid", t.Pid()),
	)
	return nil
}

// Execute runs one request against the shell
func (b *Bash) Execute(ctx context.Context, cmd command.Command) (*Observation, error) {
	in, err := command.Parse(cmd.Text)
	if err != nil {
		return nil, err
	}

	if err := b.sem.acquire(ctx, b.closeCh); err != nil {
		return nil, err
	}
	defer b.sem.release()

	if err := b.usable(); err != nil {
		return nil, err
	}

	switch {
	case in.Kind == command.KindPoll:
		return b.poll(ctx, cmd)
	case in.Kind == command.KindControl:
		return b.sendKey(ctx, cmd, in.Key)
	case cmd.IsInput:
		return b.sendInput(ctx, cmd)
	}

	if b.foreground() != nil {
		return nil, ErrCommandRunning
	}
	if err := command.Validate(cmd.Text); err != nil {
		return nil, err
	}

	b.logCommand(cmd)

	switch command.Classify(cmd) {
	case command.Background:
		return b.launchBackground(ctx, cmd)
	case command.Async:
		return b.startAsync(cmd)
	default:
		return b.runSync(ctx, cmd)
	}
}

func (b *Bash) runSync(ctx context.Context, cmd command.Command) (*Observation, error) {
	fg := &foreground{text: cmd.Text, mode: command.Sync, started: b.opts.clock.Now()}
	if err := b.begin(fg, b.withWorkDir(cmd)); err != nil {
		return b.transportFailure(cmd, fg, err), nil
	}
	return b.await(ctx, cmd, fg, false)
}

func (b *Bash) startAsync(cmd command.Command) (*Observation, error) {
	job := b.jobs.Add(cmd.Text, jobs.KindAsync)
	fg := &foreground{text: cmd.Text, mode: command.Async, jobID: job.ID, started: b.opts.clock.Now()}
	if err := b.begin(fg, b.withWorkDir(cmd)); err != nil {
		return b.transportFailure(cmd, fg, err), nil
	}
	b.jobs.Start(job.ID)

	return &Observation{
		Command:  cmd.Text,
		ExitCode: ExitRunning,
		Running:  true,
		Cwd:      b.currentCwd(),
		JobID:    job.ID,
		Suffix:   asyncSuffix(job.ID),
		Username: b.cfg.Username,
		Hostname: b.hostname,
		Hidden:   cmd.Hidden,
		IsStatic: cmd.IsStatic,
	}, nil
}

func (b *Bash) launchBackground(ctx context.Context, cmd command.Command) (*Observation, error) {
	job := b.jobs.Add(cmd.Text, jobs.KindBackground)
	script := command.StripBackground(cmd.Text)
	if cmd.WorkDir != "" {
		script = "cd " + shellQuote(cmd.WorkDir) + " && " + script
	}

	fg := &foreground{text: cmd.Text, mode: command.Background, jobID: job.ID, started: b.opts.clock.Now()}
	if err := b.begin(fg, b.prober.LaunchLine(job.ID, script)); err != nil {
		return b.transportFailure(cmd, fg, err), nil
	}
	return b.await(ctx, cmd, fg, false)
}

func (b *Bash) poll(ctx context.Context, cmd command.Command) (*Observation, error) {
	fg := b.foreground()
	if fg == nil {
		return nil, ErrNoRunningCommand
	}
	return b.await(ctx, cmd, fg, true)
}

func (b *Bash) sendKey(ctx context.Context, cmd command.Command, key command.Key) (*Observation, error) {
	fg := b.foreground()
	if fg == nil {
		return nil, ErrNoCommandToInteract
	}

	b.opts.logger.Info("Sending control key", zap.String("key", string(key)), zap.Int("job_id", fg.jobID))
	b.mu.Lock()
	fg.key = key
	b.mu.Unlock()
	if _, err := b.transport.Write(key.Bytes()); err != nil {
		return b.transportFailure(cmd, fg, err), nil
	}
	return b.await(ctx, cmd, fg, true)
}

func (b *Bash) sendInput(ctx context.Context, cmd command.Command) (*Observation, error) {
	fg := b.foreground()
	if fg == nil {
		return nil, ErrNoCommandToInteract
	}
	if _, err := b.transport.Write([]byte(cmd.Text + "\n")); err != nil {
		return b.transportFailure(cmd, fg, err), nil
	}
	return b.await(ctx, cmd, fg, true)
}

// begin claims the foreground slot and writes the command line
func (b *Bash) begin(fg *foreground, line string) error {
	b.mu.Lock()
	b.fg = fg
	b.mu.Unlock()

	_, err := b.transport.Write([]byte(line + "\n"))
	return err
}

// await runs the detector and turns its verdict into an observation
func (b *Bash) await(ctx context.Context, cmd command.Command, fg *foreground, polled bool) (*Observation, error) {
	hard := b.cfg.CommandTimeout
	if cmd.Timeout > 0 {
		hard = cmd.Timeout
	}
	soft := b.cfg.NoChangeTimeout
	if cmd.Blocking != nil && *cmd.Blocking {
		soft = 0
	}

	b.mu.RLock()
	from := b.offset
	b.mu.RUnlock()

	res := b.detector.wait(ctx, b.transport, b.closeCh, from, hard, soft)

	switch res.outcome {
	case interrupted:
		return nil, ctx.Err()
	case abandoned:
		return nil, ErrClosed
	}

	b.mu.Lock()
	b.offset = res.next
	b.mu.Unlock()

	obs := &Observation{
		Command:  fg.text,
		Content:  res.content,
		JobID:    fg.jobID,
		Username: b.cfg.Username,
		Hostname: b.hostname,
		Hidden:   cmd.Hidden,
		IsStatic: cmd.IsStatic,
	}
	if polled {
		obs.Prefix = previousOutputPrefix
	}

	switch res.outcome {
	case completed:
		b.complete(fg, res, obs)
	case timedOutHard, timedOutSoft:
		obs.Content = strings.TrimRight(res.content, "\n")
		obs.ExitCode = ExitRunning
		obs.Running = true
		obs.Cwd = b.currentCwd()
		if res.outcome == timedOutHard {
			obs.Suffix = hardTimeoutSuffix(hard)
		} else {
			obs.Suffix = softTimeoutSuffix(soft)
		}
		if fg.jobID > 0 && fg.mode == command.Async {
			b.jobs.Append(fg.jobID, res.content)
		}
		b.opts.recorder.RecordTimeout(res.outcome.String())
		b.opts.logger.Debug("Command still running",
			zap.String("reason", res.outcome.String()),
			zap.Duration("elapsed", b.opts.clock.Since(fg.started)),
		)
	case exited:
		return b.transportFailure(cmd, fg, b.transport.Err(), res.content), nil
	}
	return obs, nil
}

// complete frees the foreground slot after the marker arrived
func (b *Bash) complete(fg *foreground, res waitResult, obs *Observation) {
	b.mu.Lock()
	b.fg = nil
	if res.marker.Cwd != "" {
		b.cwd = res.marker.Cwd
	}
	obs.Cwd = b.cwd
	b.mu.Unlock()

	duration := b.opts.clock.Since(fg.started)
	obs.ExitCode = res.marker.ExitCode
	obs.PID = res.marker.PID

	switch fg.mode {
	case command.Background:
		b.jobs.SetPID(fg.jobID, res.marker.PID)
		obs.Content = backgroundMessage(fg.jobID)
		obs.Prefix = ""
	case command.Async:
		b.jobs.Append(fg.jobID, res.content)
		if fg.key == command.KeySuspend {
			b.jobs.Stop(fg.jobID)
		} else {
			b.jobs.Finish(fg.jobID, res.marker.ExitCode)
		}
		obs.Suffix = completedSuffix(res.marker.ExitCode)
	default:
		obs.Suffix = completedSuffix(res.marker.ExitCode)
	}

	b.opts.recorder.RecordCommand(fg.mode.String(), res.outcome.String(), duration)
	b.opts.logger.Debug("Command completed",
		zap.Int("exit_code", res.marker.ExitCode),
		zap.String("cwd", obs.Cwd),
		zap.Duration("duration", duration),
	)
}

// transportFailure marks the session dead and reports the in-flight command as failed
func (b *Bash) transportFailure(cmd command.Command, fg *foreground, cause error, content ...string) *Observation {
	b.mu.Lock()
	b.dead = true
	b.fg = nil
	cwd := b.cwd
	b.mu.Unlock()

	if fg.jobID > 0 {
		b.jobs.Finish(fg.jobID, ExitRunning)
	}
	b.opts.recorder.RecordCommand(fg.mode.String(), exited.String(), b.opts.clock.Since(fg.started))
	b.opts.logger.Error("Shell transport failed", zap.Error(cause))

	reason := "shell exited"
	if cause != nil {
		reason = cause.Error()
	}
	return &Observation{
		Command:  fg.text,
		Content:  strings.Join(content, ""),
		ExitCode: ExitRunning,
		Failed:   true,
		Cwd:      cwd,
		JobID:    fg.jobID,
		Suffix:   fmt.Sprintf("\n[The shell session failed: %s. Reset the session to continue.]", reason),
		Username: b.cfg.Username,
		Hostname: b.hostname,
		Hidden:   cmd.Hidden,
		IsStatic: cmd.IsStatic,
	}
}

// Close kills the shell. An Execute in flight returns ErrClosed.
func (b *Bash) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	t, tbl, prober := b.transport, b.jobs, b.prober
	b.mu.Unlock()

	var err error
	if b.cfg.KillJobsOnClose && tbl != nil {
		for _, j := range tbl.Active(jobs.KindBackground) {
			err = multierr.Append(err, prober.Terminate(j))
		}
	}
	if t != nil {
		err = multierr.Append(err, t.Close())
	}
	b.opts.logger.Info("Shell session closed")
	return err
}

// Cwd returns the working directory reported by the last prompt marker
func (b *Bash) Cwd() (string, error) {
	if err := b.usable(); err != nil {
		return "", err
	}
	return b.currentCwd(), nil
}

// Job returns one job. A running async job includes output not yet polled.
func (b *Bash) Job(id int) (jobs.Job, error) {
	if err := b.initializedOpen(); err != nil {
		return jobs.Job{}, err
	}
	j, err := b.jobs.Get(id)
	if err != nil {
		return j, err
	}

	b.mu.RLock()
	fg, from, t := b.fg, b.offset, b.transport
	b.mu.RUnlock()
	if j.Kind == jobs.KindAsync && j.State == jobs.Running && fg != nil && fg.jobID == id {
		raw, _ := t.Output().Since(from)
		if res := b.proto.Scan(raw); res.Marker != nil {
			j.Output += res.Content
		} else {
			j.Output += sentinel.Clean(raw[:b.proto.Pending(raw)])
		}
	}
	return j, nil
}

// Jobs lists all jobs of the session
func (b *Bash) Jobs() ([]jobs.Job, error) {
	if err := b.initializedOpen(); err != nil {
		return nil, err
	}
	return b.jobs.List(), nil
}

func (b *Bash) usable() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch {
	case b.closed:
		return ErrClosed
	case !b.initialized:
		return ErrNotInitialized
	case b.dead:
		return ErrSessionDead
	}
	return nil
}

// initializedOpen allows job queries on a dead shell
func (b *Bash) initializedOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch {
	case b.closed:
		return ErrClosed
	case !b.initialized:
		return ErrNotInitialized
	}
	return nil
}

func (b *Bash) foreground() *foreground {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fg
}

func (b *Bash) currentCwd() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cwd
}

func (b *Bash) withWorkDir(cmd command.Command) string {
	if cmd.WorkDir == "" || cmd.WorkDir == b.currentCwd() {
		return cmd.Text
	}
	return "cd " + shellQuote(cmd.WorkDir) + " && " + cmd.Text
}

func (b *Bash) logCommand(cmd command.Command) {
	if cmd.Hidden {
		b.opts.logger.Debug("Running hidden command")
		return
	}
	b.opts.logger.Info("Running command",
		zap.String("command", cmd.Text),
		zap.Bool("static", cmd.IsStatic),
	)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
