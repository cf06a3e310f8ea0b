package session

import "errors"

// ErrInitialize is returned when the shell cannot be started or never prints a prompt.
var ErrInitialize = errors.New("failed to initialize session")

// ErrNotInitialized is returned by operations called before Initialize.
var ErrNotInitialized = errors.New("session is not initialized")

// ErrClosed is returned by operations called after Close, and by an Execute
// that was in flight when the session closed.
var ErrClosed = errors.New("session is closed")

// ErrSessionDead is returned after the shell process exited unexpectedly.
var ErrSessionDead = errors.New("shell process exited; reset the session")

// ErrCommandRunning is returned when a new command arrives while another holds the foreground slot.
var ErrCommandRunning = errors.New("a command is already running")

// ErrNoRunningCommand is returned when polling with nothing in the foreground slot.
var ErrNoRunningCommand = errors.New("no previous running command to retrieve logs from")

// ErrNoCommandToInteract is returned when sending keys or input with nothing in the foreground slot.
var ErrNoCommandToInteract = errors.New("no previous running command to interact with")

// ErrUnsupported is returned when a backend cannot serve a request kind.
var ErrUnsupported = errors.New("not supported by this session backend")

// ErrNoSession is returned by the Manager when no runtime is active.
var ErrNoSession = errors.New("no active session")
