package jobs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

type stubProber struct {
	mu     sync.Mutex
	status Status
	calls  int
}

func (s *stubProber) Probe(Job) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.status
}

func TestTableAssignsMonotonicIDs(t *testing.T) {
	tbl := NewTable(nil, nil)

	a := tbl.Add("sleep 1", KindAsync)
	b := tbl.Add("sleep 2", KindBackground)

	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID)
	assert.Equal(t, NotStarted, a.State)
}

func TestTableLifecycle(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clocktesting.NewFakeClock(start)
	tbl := NewTable(clk, nil)

	j := tbl.Add("make", KindAsync)
	require.NoError(t, tbl.Start(j.ID))

	clk.Step(time.Second)
	require.NoError(t, tbl.Append(j.ID, "building\n"))
	require.NoError(t, tbl.Append(j.ID, "done\n"))
	require.NoError(t, tbl.Finish(j.ID, 2))

	got, err := tbl.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, Failed, got.State)
	require.NotNil(t, got.ExitCode)
	assert.Equal(t, 2, *got.ExitCode)
	assert.Equal(t, "building\ndone\n", got.Output)
	assert.Equal(t, start, got.StartedAt)
	assert.Equal(t, start.Add(time.Second), got.LastOutputAt)

	// terminal states are frozen
	require.NoError(t, tbl.Append(j.ID, "late"))
	require.NoError(t, tbl.Finish(j.ID, 0))
	require.NoError(t, tbl.Stop(j.ID))
	got, _ = tbl.Get(j.ID)
	assert.Equal(t, Failed, got.State)
	assert.Equal(t, "building\ndone\n", got.Output)
}

func TestTableCompletedAndStopped(t *testing.T) {
	tbl := NewTable(nil, nil)

	ok := tbl.Add("true", KindAsync)
	require.NoError(t, tbl.Start(ok.ID))
	require.NoError(t, tbl.Finish(ok.ID, 0))

	stopped := tbl.Add("vim", KindAsync)
	require.NoError(t, tbl.Start(stopped.ID))
	require.NoError(t, tbl.Stop(stopped.ID))

	list := tbl.List()
	require.Len(t, list, 2)
	assert.Equal(t, Completed, list[0].State)
	assert.Equal(t, Stopped, list[1].State)
	assert.Nil(t, list[1].ExitCode)
}

func TestTableUnknownJob(t *testing.T) {
	tbl := NewTable(nil, nil)

	_, err := tbl.Get(42)
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, tbl.Start(42), ErrJobNotFound)
	assert.ErrorIs(t, tbl.Append(42, "x"), ErrJobNotFound)
	assert.ErrorIs(t, tbl.Finish(42, 0), ErrJobNotFound)
	assert.ErrorIs(t, tbl.Stop(42), ErrJobNotFound)
}

func TestTableProbesRunningBackgroundJobs(t *testing.T) {
	prober := &stubProber{status: Status{State: Running, Output: "tick\n"}}
	tbl := NewTable(nil, prober)

	j := tbl.Add("server", KindBackground)
	require.NoError(t, tbl.SetPID(j.ID, 1234))

	got, err := tbl.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, Running, got.State)
	assert.Equal(t, 1234, got.PID)
	assert.Equal(t, "tick\n", got.Output)

	code := 0
	prober.status = Status{State: Completed, ExitCode: &code, Output: "tick\nbye\n"}
	got, err = tbl.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, Completed, got.State)
	assert.Equal(t, "tick\nbye\n", got.Output)

	// finished jobs are no longer probed
	calls := prober.calls
	_, _ = tbl.Get(j.ID)
	assert.Equal(t, calls, prober.calls)
}

func TestTableAsyncJobsAreNotProbed(t *testing.T) {
	prober := &stubProber{status: Status{State: Stopped}}
	tbl := NewTable(nil, prober)

	j := tbl.Add("tail -f log", KindAsync)
	require.NoError(t, tbl.Start(j.ID))

	got, err := tbl.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, Running, got.State)
	assert.Zero(t, prober.calls)
}

func TestTableActive(t *testing.T) {
	prober := &stubProber{status: Status{State: Running}}
	tbl := NewTable(nil, prober)

	a := tbl.Add("a", KindBackground)
	require.NoError(t, tbl.SetPID(a.ID, 10))
	b := tbl.Add("b", KindAsync)
	require.NoError(t, tbl.Start(b.ID))

	active := tbl.Active(KindBackground)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)
}

func TestTableConcurrentAccess(t *testing.T) {
	tbl := NewTable(nil, nil)
	j := tbl.Add("cat", KindAsync)
	require.NoError(t, tbl.Start(j.ID))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = tbl.Append(j.ID, "x")
		}()
		go func() {
			defer wg.Done()
			_, _ = tbl.Get(j.ID)
			_ = tbl.List()
		}()
	}
	wg.Wait()

	got, err := tbl.Get(j.ID)
	require.NoError(t, err)
	assert.Len(t, got.Output, 20)
}
