package resilience

import (
	"errors"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

var stateNames = map[State]string{
	StateClosed:   "closed",
	StateHalfOpen: "half-open",
	StateOpen:     "open",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Settings configures a Breaker. Zero values select the defaults.
type Settings struct {
	// MaxRequests is how many probes pass in half-open state, and how many
	// must succeed to close again. Default 1.
	MaxRequests uint32
	// Interval clears the closed state's counts periodically. Default 60s.
	Interval time.Duration
	// Timeout is how long the circuit stays open. Default 60s.
	Timeout time.Duration
	// ReadyToTrip is asked after each failure in closed state. Default: more
	// than 5 consecutive failures.
	ReadyToTrip func(counts Counts) bool
	// IsSuccessful decides whether an error counts against the breaker.
	IsSuccessful func(err error) bool
	// OnStateChange is called outside the breaker's lock.
	OnStateChange func(name string, from State, to State)
	Clock         clock.PassiveClock
}

func (s *Settings) applyDefaults() {
	if s.MaxRequests == 0 {
		s.MaxRequests = 1
	}
	if s.Interval == 0 {
		s.Interval = 60 * time.Second
	}
	if s.Timeout == 0 {
		s.Timeout = 60 * time.Second
	}
	if s.ReadyToTrip == nil {
		s.ReadyToTrip = func(counts Counts) bool { return counts.ConsecutiveFailures > 5 }
	}
	if s.IsSuccessful == nil {
		s.IsSuccessful = func(err error) bool { return err == nil }
	}
	if s.Clock == nil {
		s.Clock = clock.RealClock{}
	}
}

// Counts holds the statistics of the current window
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) success() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) failure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// window is one period of counting. Results of requests admitted in an
// earlier window are dropped.
type window struct {
	id      uint64
	counts  Counts
	expires time.Time // zero in half-open state
}

type transition struct {
	from, to State
}

// Breaker implements the circuit breaker pattern
type Breaker struct {
	name     string
	settings Settings

	mu    sync.Mutex
	state State
	win   window
}

// New creates a circuit breaker
func New(name string, settings Settings) *Breaker {
	settings.applyDefaults()
	return &Breaker{
		name:     name,
		settings: settings,
		win:      window{expires: settings.Clock.Now().Add(settings.Interval)},
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	changes := b.advance(b.settings.Clock.Now())
	state := b.state
	b.mu.Unlock()

	b.notify(changes)
	return state
}

// Counts returns a copy of the current window's counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.win.counts
}

// Do runs req if the breaker admits it. A panic in req counts as a failure.
func (b *Breaker) Do(req func() error) error {
	id, err := b.admit()
	if err != nil {
		return err
	}

	ok := false
	defer func() { b.settle(id, ok) }()

	err = req()
	ok = b.settings.IsSuccessful(err)
	return err
}

// Call runs req through b and returns its value
func Call[T any](b *Breaker, req func() (T, error)) (T, error) {
	var out T
	err := b.Do(func() error {
		var err error
		out, err = req()
		return err
	})
	return out, err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	changes := b.advance(b.settings.Clock.Now())

	var err error
	switch {
	case b.state == StateOpen:
		err = ErrCircuitOpen
	case b.state == StateHalfOpen && b.win.counts.Requests >= b.settings.MaxRequests:
		err = ErrTooManyRequests
	default:
		b.win.counts.Requests++
	}
	id := b.win.id
	b.mu.Unlock()

	b.notify(changes)
	return id, err
}

func (b *Breaker) settle(id uint64, ok bool) {
	b.mu.Lock()
	now := b.settings.Clock.Now()
	changes := b.advance(now)
	if id == b.win.id {
		changes = append(changes, b.record(ok, now)...)
	}
	b.mu.Unlock()

	b.notify(changes)
}

// record must be called with mu held
func (b *Breaker) record(ok bool, now time.Time) []transition {
	switch {
	case ok:
		b.win.counts.success()
		if b.state == StateHalfOpen && b.win.counts.ConsecutiveSuccesses >= b.settings.MaxRequests {
			return b.moveTo(StateClosed, now)
		}
	case b.state == StateClosed:
		b.win.counts.failure()
		if b.settings.ReadyToTrip(b.win.counts) {
			return b.moveTo(StateOpen, now)
		}
	case b.state == StateHalfOpen:
		return b.moveTo(StateOpen, now)
	}
	return nil
}

// advance applies the transitions that only depend on time. mu must be held.
func (b *Breaker) advance(now time.Time) []transition {
	switch b.state {
	case StateClosed:
		if !b.win.expires.IsZero() && now.After(b.win.expires) {
			b.reset(now)
		}
	case StateOpen:
		if !now.Before(b.win.expires) {
			return b.moveTo(StateHalfOpen, now)
		}
	}
	return nil
}

func (b *Breaker) moveTo(state State, now time.Time) []transition {
	if b.state == state {
		return nil
	}
	from := b.state
	b.state = state
	b.reset(now)
	return []transition{{from: from, to: state}}
}

// reset opens a new window for the current state
func (b *Breaker) reset(now time.Time) {
	b.win = window{id: b.win.id + 1}
	switch b.state {
	case StateClosed:
		b.win.expires = now.Add(b.settings.Interval)
	case StateOpen:
		b.win.expires = now.Add(b.settings.Timeout)
	}
}

func (b *Breaker) notify(changes []transition) {
	if b.settings.OnStateChange == nil {
		return
	}
	for _, c := range changes {
		b.settings.OnStateChange(b.name, c.from, c.to)
	}
}
