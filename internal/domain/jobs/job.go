package jobs

import (
	"errors"
	"time"
)

// ErrJobNotFound is returned when no job has the requested id.
var ErrJobNotFound = errors.New("job not found")

// State is the lifecycle state of a job
type State string

const (
	NotStarted State = "NotStarted"
	Running    State = "Running"
	Completed  State = "Completed"
	Failed     State = "Failed"
	Stopped    State = "Stopped"
)

// Terminal reports whether the state is final
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Stopped
}

// Kind tells how a job executes
type Kind string

const (
	KindAsync      Kind = "async"
	KindBackground Kind = "background"
)

// Job is a snapshot of one tracked command
type Job struct {
	ID           int       `json:"id"`
	Kind         Kind      `json:"kind"`
	Command      string    `json:"command"`
	State        State     `json:"state"`
	Output       string    `json:"output"`
	ExitCode     *int      `json:"exit_code,omitempty"`
	PID          int       `json:"pid,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	LastOutputAt time.Time `json:"last_output_at,omitempty"`
}

// Status is what a Prober learned about a background job
type Status struct {
	State    State
	ExitCode *int
	Output   string
}

// Prober inspects a background job's process
type Prober interface {
	Probe(j Job) Status
}
