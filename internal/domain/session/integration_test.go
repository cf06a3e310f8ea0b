package session

import (
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shx815/simple-openhands/internal/domain/command"
	"github.com/shx815/simple-openhands/internal/domain/jobs"
)

func newRealBash(t *testing.T, cfg Config) *Bash {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping shell integration test in short mode")
	}
	shell, err := exec.LookPath("bash")
	if err != nil {
		t.Skip("bash not available")
	}
	cfg.Shell = shell
	if cfg.WorkDir == "" {
		cfg.WorkDir = t.TempDir()
	}
	cfg.JobDir = t.TempDir()

	b := NewBash(cfg)
	require.NoError(t, b.Initialize(t.Context()))
	t.Cleanup(func() { b.Close() })
	return b
}

func TestRealBashSessionState(t *testing.T) {
	dir := t.TempDir()
	b := newRealBash(t, Config{WorkDir: dir})

	obs, err := b.Execute(t.Context(), command.Command{Text: "echo hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", obs.Content)
	assert.Equal(t, 0, obs.ExitCode)

	sub := filepath.Join(dir, "sub")
	_, err = b.Execute(t.Context(), command.Command{Text: "mkdir -p sub && cd sub && export GREETING=hi"})
	require.NoError(t, err)

	obs, err = b.Execute(t.Context(), command.Command{Text: "echo $GREETING; pwd"})
	require.NoError(t, err)
	assert.Equal(t, "hi\n"+sub, obs.Content)
	assert.Equal(t, sub, obs.Cwd)

	obs, err = b.Execute(t.Context(), command.Command{Text: "false"})
	require.NoError(t, err)
	assert.Equal(t, 1, obs.ExitCode)
}

func TestRealBashExitInsideSubshellKeepsSession(t *testing.T) {
	b := newRealBash(t, Config{})

	obs, err := b.Execute(t.Context(), command.Command{Text: "(exit 3)"})
	require.NoError(t, err)
	assert.Equal(t, 3, obs.ExitCode)

	obs, err = b.Execute(t.Context(), command.Command{Text: "echo still here"})
	require.NoError(t, err)
	assert.Equal(t, "still here", obs.Content)
}

func TestRealBashNoOutputTimeoutAndInterrupt(t *testing.T) {
	b := newRealBash(t, Config{NoChangeTimeout: time.Second})

	obs, err := b.Execute(t.Context(), command.Command{Text: "echo start; sleep 30"})
	require.NoError(t, err)
	assert.True(t, obs.Running)
	assert.Equal(t, "start", obs.Content)

	obs, err = b.Execute(t.Context(), command.Command{Text: "C-c"})
	require.NoError(t, err)
	assert.False(t, obs.Running)
	assert.Equal(t, 130, obs.ExitCode)

	obs, err = b.Execute(t.Context(), command.Command{Text: "echo after"})
	require.NoError(t, err)
	assert.Equal(t, "after", obs.Content)
}

func TestRealBashBackgroundJob(t *testing.T) {
	b := newRealBash(t, Config{})

	obs, err := b.Execute(t.Context(), command.Command{Text: "echo bg-out; exit 4 &"})
	require.NoError(t, err)
	require.Equal(t, 1, obs.JobID)
	assert.Positive(t, obs.PID)

	require.Eventually(t, func() bool {
		j, err := b.Job(1)
		return err == nil && j.State.Terminal()
	}, 5*time.Second, 50*time.Millisecond)

	j, err := b.Job(1)
	require.NoError(t, err)
	assert.Equal(t, jobs.Failed, j.State)
	require.NotNil(t, j.ExitCode)
	assert.Equal(t, 4, *j.ExitCode)
	assert.True(t, strings.Contains(j.Output, "bg-out"))
}
