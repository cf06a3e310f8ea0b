package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	_ Runtime = (*Bash)(nil)
	_ Runtime = (*Gosh)(nil)
)

// Factory builds a fresh, uninitialized runtime
type Factory func() Runtime

// Manager owns the active runtime and replaces it on reset. At most one
// runtime is open at a time.
type Manager struct {
	factory  Factory
	logger   *zap.Logger
	recorder Recorder

	resets    singleflight.Group
	lifecycle sync.Mutex // serializes Start and reset

	mu      sync.RWMutex
	current Runtime
	closed  bool
}

// NewManager creates a manager with no active runtime
func NewManager(factory Factory, logger *zap.Logger, recorder Recorder) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Manager{factory: factory, logger: logger, recorder: recorder}
}

// Start initializes the first runtime
func (m *Manager) Start(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	rt, err := m.build(ctx)
	if err != nil {
		return err
	}
	return m.install(rt)
}

// Current returns the active runtime
func (m *Manager) Current() (Runtime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, ErrNoSession
	}
	return m.current, nil
}

// Active reports whether the current runtime can take commands
func (m *Manager) Active() bool {
	rt, err := m.Current()
	if err != nil {
		return false
	}
	_, err = rt.Cwd()
	return err == nil
}

// Reset closes the current runtime and starts a new one. The old runtime is
// closed first so a command stuck in it returns ErrClosed. Resets that
// overlap share one replacement and its result.
func (m *Manager) Reset(ctx context.Context) error {
	_, err, shared := m.resets.Do("reset", func() (interface{}, error) {
		return nil, m.reset(context.WithoutCancel(ctx))
	})
	if shared {
		m.logger.Debug("Joined a reset already in progress")
	}
	return err
}

func (m *Manager) reset(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	old := m.current
	m.current = nil
	m.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			m.logger.Warn("Closing previous session failed", zap.Error(err))
		}
	}

	rt, err := m.build(ctx)
	if err != nil {
		m.logger.Error("Session reset failed", zap.Error(err))
		return err
	}
	if err := m.install(rt); err != nil {
		return err
	}

	m.recorder.RecordReset()
	m.logger.Info("Session reset")
	return nil
}

func (m *Manager) build(ctx context.Context) (Runtime, error) {
	rt := m.factory()
	if err := rt.Initialize(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// install makes rt current and closes what it replaces. A runtime finished
// after Close is shut down instead.
func (m *Manager) install(rt Runtime) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		rt.Close()
		return ErrClosed
	}
	old := m.current
	m.current = rt
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// Close shuts down the active runtime. Later resets fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	rt := m.current
	m.current = nil
	m.mu.Unlock()
	if rt == nil {
		return nil
	}
	return rt.Close()
}
