package session

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/shx815/simple-openhands/internal/domain/command"
	"github.com/shx815/simple-openhands/internal/domain/jobs"
)

// Session is the command contract shared by all backends
type Session interface {
	Initialize(ctx context.Context) error
	Execute(ctx context.Context, cmd command.Command) (*Observation, error)
	Close() error
	Cwd() (string, error)
}

// JobTracker exposes the job table of a session
type JobTracker interface {
	Job(id int) (jobs.Job, error)
	Jobs() ([]jobs.Job, error)
}

// Runtime is a session with job tracking
type Runtime interface {
	Session
	JobTracker
}

// Config holds the settings a runtime is created with
type Config struct {
	WorkDir         string
	Username        string
	Shell           string
	ShellArgs       []string
	Env             map[string]string
	CommandTimeout  time.Duration
	NoChangeTimeout time.Duration
	InitTimeout     time.Duration
	JobDir          string
	KillJobsOnClose bool
	MaxOutputBytes  int
	Cols            int
	Rows            int
}

func (c Config) withDefaults() Config {
	if c.Shell == "" {
		c.Shell = "/bin/bash"
	}
	if c.ShellArgs == nil {
		c.ShellArgs = []string{"--noprofile", "--norc", "--noediting", "-i"}
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 60 * time.Second
	}
	if c.NoChangeTimeout <= 0 {
		c.NoChangeTimeout = 30 * time.Second
	}
	if c.InitTimeout <= 0 {
		c.InitTimeout = 10 * time.Second
	}
	if c.WorkDir == "" {
		c.WorkDir, _ = os.Getwd()
	}
	return c
}

// Recorder receives execution events, usually for metrics
type Recorder interface {
	RecordCommand(mode, outcome string, duration time.Duration)
	RecordTimeout(kind string)
	RecordReset()
}

// Recorders fans events out to several recorders
type Recorders []Recorder

func (rs Recorders) RecordCommand(mode, outcome string, duration time.Duration) {
	for _, r := range rs {
		r.RecordCommand(mode, outcome, duration)
	}
}

func (rs Recorders) RecordTimeout(kind string) {
	for _, r := range rs {
		r.RecordTimeout(kind)
	}
}

func (rs Recorders) RecordReset() {
	for _, r := range rs {
		r.RecordReset()
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordCommand(string, string, time.Duration) {}
func (nopRecorder) RecordTimeout(string)                        {}
func (nopRecorder) RecordReset()                                {}

// options shared by the backends
type options struct {
	logger   *zap.Logger
	clock    clock.Clock
	recorder Recorder
}

// Option configures a runtime
type Option func(*options)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the clock used for deadlines and timestamps
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithRecorder sets the execution event recorder
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   zap.NewNop(),
		clock:    clock.RealClock{},
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// semaphore is the foreground lock; acquiring it honours ctx
type semaphore chan struct{}

func (s semaphore) acquire(ctx context.Context, closed <-chan struct{}) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-closed:
		return ErrClosed
	}
}

func (s semaphore) release() {
	<-s
}
