package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/shx815/simple-openhands/internal/domain/command"
	"github.com/shx815/simple-openhands/internal/domain/jobs"
)

// Gosh runs each command to completion through a gosh service. It has no
// foreground slot: async commands and control keys are unsupported, and a
// command that outlives its timeout keeps running detached from any call.
type Gosh struct {
	cfg     Config
	opts    options
	sem     semaphore
	closeCh chan struct{}
	doneTag string
	seq     int // guarded by sem

	mu       sync.RWMutex
	svc      *gosh.Service
	closed   bool
	cwd      string
	hostname string
	jobs     *jobs.Table
	prober   *jobs.FileProber
}

// NewGosh creates an uninitialized gosh runtime
func NewGosh(cfg Config, opts ...Option) *Gosh {
	return &Gosh{
		cfg:     cfg.withDefaults(),
		opts:    buildOptions(opts),
		sem:     make(semaphore, 1),
		closeCh: make(chan struct{}),
		doneTag: "__RT_DONE_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12] + "_",
	}
}

// Initialize starts the gosh shell in the work dir
func (g *Gosh) Initialize(ctx context.Context) error {
	if err := g.sem.acquire(ctx, g.closeCh); err != nil {
		return err
	}
	defer g.sem.release()

	g.mu.RLock()
	ready, closed := g.svc != nil, g.closed
	g.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if ready {
		return nil
	}

	if err := os.MkdirAll(g.cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrInitialize, err)
	}
	jobDir := g.cfg.JobDir
	if jobDir == "" {
		jobDir = filepath.Join(os.TempDir(), "rt-jobs-"+strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	}
	prober, err := jobs.NewFileProber(jobDir, g.cfg.Shell)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitialize, err)
	}

	var runnerOpts []runner.Option
	if len(g.cfg.Env) > 0 {
		runnerOpts = append(runnerOpts, runner.WithEnvironment(g.cfg.Env))
	}
	svc, err := gosh.New(ctx, local.New(runnerOpts...))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitialize, err)
	}

	cwd := g.cfg.WorkDir
	if _, code, err := svc.Run(ctx, "cd "+shellQuote(cwd), runner.WithTimeout(int(g.cfg.InitTimeout.Milliseconds()))); err != nil || code != 0 {
		svc.Close()
		return fmt.Errorf("%w: cannot enter %s", ErrInitialize, cwd)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.svc = svc
	g.cwd = cwd
	g.hostname, _ = os.Hostname()
	g.prober = prober
	g.jobs = jobs.NewTable(g.opts.clock, prober)
	g.opts.logger.Info("Gosh session initialized", zap.String("cwd", cwd))
	return nil
}

// Execute runs a command to completion
func (g *Gosh) Execute(ctx context.Context, cmd command.Command) (*Observation, error) {
	in, err := command.Parse(cmd.Text)
	if err != nil {
		return nil, err
	}
	if err := g.sem.acquire(ctx, g.closeCh); err != nil {
		return nil, err
	}
	defer g.sem.release()

	svc, err := g.service()
	if err != nil {
		return nil, err
	}

	switch {
	case in.Kind == command.KindPoll:
		return nil, ErrNoRunningCommand
	case in.Kind == command.KindControl, cmd.IsInput:
		return nil, ErrUnsupported
	}
	if err := command.Validate(cmd.Text); err != nil {
		return nil, err
	}

	mode := command.Classify(cmd)
	if mode == command.Async {
		return nil, ErrUnsupported
	}

	timeout := g.cfg.CommandTimeout
	if cmd.Timeout > 0 {
		timeout = cmd.Timeout
	}
	started := g.opts.clock.Now()

	text := cmd.Text
	if cmd.WorkDir != "" {
		text = "cd " + shellQuote(cmd.WorkDir) + " && " + text
	}

	var job jobs.Job
	if mode == command.Background {
		job = g.jobs.Add(cmd.Text, jobs.KindBackground)
		script := command.StripBackground(cmd.Text)
		if cmd.WorkDir != "" {
			script = "cd " + shellQuote(cmd.WorkDir) + " && " + script
		}
		text = g.prober.LaunchLine(job.ID, script) + "; echo $!"
	}

	// gosh stops reading after timeout of silence and reports exit 0, so
	// completion is told apart by a per-command tag printed after it
	g.seq++
	tag := g.doneTag + strconv.Itoa(g.seq) + "__"
	text += "\n__rt_rc=$?; echo " + tag + "; (exit $__rt_rc)"
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	out, code, err := svc.Run(runCtx, text, runner.WithTimeout(int(timeout.Milliseconds())))
	cancel()
	duration := g.opts.clock.Since(started)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	out, finished := cutDoneTag(out, tag)

	obs := &Observation{
		Command:  cmd.Text,
		Content:  strings.TrimRight(out, "\n"),
		ExitCode: code,
		JobID:    job.ID,
		Username: g.cfg.Username,
		Hostname: g.hostname,
		Hidden:   cmd.Hidden,
		IsStatic: cmd.IsStatic,
	}

	if !finished {
		obs.ExitCode = ExitRunning
		obs.Running = true
		obs.Cwd = g.currentCwd()
		obs.Suffix = detachedTimeoutSuffix(timeout)
		if mode == command.Background {
			g.jobs.Finish(job.ID, ExitRunning)
		}
		g.opts.recorder.RecordTimeout(timedOutHard.String())
		g.opts.logger.Warn("Command outlived its timeout",
			zap.Duration("timeout", timeout), zap.Duration("elapsed", duration))
		return obs, nil
	}
	if err != nil && obs.Content == "" {
		obs.Content = err.Error()
	}
	obs.Suffix = completedSuffix(code)

	if mode == command.Background {
		pid, _ := strconv.Atoi(strings.TrimSpace(lastLine(out)))
		g.jobs.SetPID(job.ID, pid)
		obs.PID = pid
		obs.Content = backgroundMessage(job.ID)
		obs.Suffix = ""
	}

	obs.Cwd = g.refreshCwd(ctx, svc)
	g.opts.recorder.RecordCommand(mode.String(), completed.String(), duration)
	g.opts.logger.Debug("Command completed", zap.Int("exit_code", code), zap.Duration("duration", duration))
	return obs, nil
}

func (g *Gosh) currentCwd() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cwd
}

// cutDoneTag strips the completion tag and what follows it, and reports
// whether the tag was seen
func cutDoneTag(out, tag string) (string, bool) {
	i := strings.LastIndex(out, tag)
	if i < 0 {
		return out, false
	}
	return out[:i], true
}

func (g *Gosh) refreshCwd(ctx context.Context, svc *gosh.Service) string {
	out, code, err := svc.Run(ctx, "pwd", runner.WithTimeout(int((5 * time.Second).Milliseconds())))
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil && code == 0 {
		if cwd := strings.TrimSpace(lastLine(out)); cwd != "" {
			g.cwd = cwd
		}
	}
	return g.cwd
}

// Close stops the gosh shell
func (g *Gosh) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	close(g.closeCh)
	svc, tbl, prober := g.svc, g.jobs, g.prober
	g.mu.Unlock()

	var err error
	if g.cfg.KillJobsOnClose && tbl != nil {
		for _, j := range tbl.Active(jobs.KindBackground) {
			err = multierr.Append(err, prober.Terminate(j))
		}
	}
	if svc != nil {
		err = multierr.Append(err, svc.Close())
	}
	return err
}

func (g *Gosh) Cwd() (string, error) {
	if _, err := g.service(); err != nil {
		return "", err
	}
	return g.currentCwd(), nil
}

func (g *Gosh) Job(id int) (jobs.Job, error) {
	if _, err := g.service(); err != nil {
		return jobs.Job{}, err
	}
	return g.jobs.Get(id)
}

func (g *Gosh) Jobs() ([]jobs.Job, error) {
	if _, err := g.service(); err != nil {
		return nil, err
	}
	return g.jobs.List(), nil
}

func (g *Gosh) service() (*gosh.Service, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return nil, ErrClosed
	}
	if g.svc == nil {
		return nil, ErrNotInitialized
	}
	return g.svc, nil
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
