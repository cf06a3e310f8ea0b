package jobs

import (
	"sort"
	"sync"

	"k8s.io/utils/clock"
)

// Table is the job registry of one session
type Table struct {
	mu     sync.RWMutex
	next   int
	jobs   map[int]*Job
	clock  clock.PassiveClock
	prober Prober
}

// NewTable creates an empty table. prober may be nil when no background
// jobs are launched.
func NewTable(clk clock.PassiveClock, prober Prober) *Table {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Table{
		jobs:   make(map[int]*Job),
		clock:  clk,
		prober: prober,
	}
}

// Add registers a new job in NotStarted state
func (t *Table) Add(command string, kind Kind) Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	j := &Job{
		ID:        t.next,
		Kind:      kind,
		Command:   command,
		State:     NotStarted,
		StartedAt: t.clock.Now(),
	}
	t.jobs[j.ID] = j
	return *j
}

// Start marks a job as running
func (t *Table) Start(id int) error {
	return t.update(id, func(j *Job) {
		if j.State == NotStarted {
			j.State = Running
		}
	})
}

// SetPID records the pid of a background job and marks it running
func (t *Table) SetPID(id, pid int) error {
	return t.update(id, func(j *Job) {
		j.PID = pid
		if j.State == NotStarted {
			j.State = Running
		}
	})
}

// Append adds output to a job that has not finished
func (t *Table) Append(id int, out string) error {
	if out == "" {
		return nil
	}
	now := t.clock.Now()
	return t.update(id, func(j *Job) {
		if j.State.Terminal() {
			return
		}
		j.Output += out
		j.LastOutputAt = now
	})
}

// Finish records the exit code; zero completes the job, anything else fails it
func (t *Table) Finish(id, exitCode int) error {
	return t.update(id, func(j *Job) {
		if j.State.Terminal() {
			return
		}
		code := exitCode
		j.ExitCode = &code
		if exitCode == 0 {
			j.State = Completed
		} else {
			j.State = Failed
		}
	})
}

// Stop marks a job as stopped
func (t *Table) Stop(id int) error {
	return t.update(id, func(j *Job) {
		if !j.State.Terminal() {
			j.State = Stopped
		}
	})
}

// Get returns a snapshot of one job. Running background jobs are probed
// first so the snapshot reflects the process as it is now.
func (t *Table) Get(id int) (Job, error) {
	t.mu.RLock()
	j, ok := t.jobs[id]
	var snap Job
	if ok {
		snap = *j
	}
	t.mu.RUnlock()

	if !ok {
		return Job{}, ErrJobNotFound
	}
	return t.refresh(snap), nil
}

// List returns snapshots of all jobs ordered by id
func (t *Table) List() []Job {
	t.mu.RLock()
	snaps := make([]Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		snaps = append(snaps, *j)
	}
	t.mu.RUnlock()

	sort.Slice(snaps, func(a, b int) bool { return snaps[a].ID < snaps[b].ID })
	for i := range snaps {
		snaps[i] = t.refresh(snaps[i])
	}
	return snaps
}

// Active returns running jobs of the given kind
func (t *Table) Active(kind Kind) []Job {
	var out []Job
	for _, j := range t.List() {
		if j.Kind == kind && j.State == Running {
			out = append(out, j)
		}
	}
	return out
}

func (t *Table) refresh(snap Job) Job {
	if t.prober == nil || snap.Kind != KindBackground || snap.State != Running {
		return snap
	}

	st := t.prober.Probe(snap)

	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[snap.ID]
	if !ok {
		return snap
	}
	if st.Output != j.Output {
		j.Output = st.Output
		j.LastOutputAt = t.clock.Now()
	}
	if st.State.Terminal() && !j.State.Terminal() {
		j.State = st.State
		j.ExitCode = st.ExitCode
	}
	return *j
}

func (t *Table) update(id int, fn func(j *Job)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	fn(j)
	return nil
}
