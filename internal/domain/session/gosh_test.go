package session

import (
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shx815/simple-openhands/internal/domain/command"
)

func newRealGosh(t *testing.T) (*Gosh, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping shell integration test in short mode")
	}
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	dir := t.TempDir()
	g := NewGosh(Config{WorkDir: dir, JobDir: t.TempDir()})
	require.NoError(t, g.Initialize(t.Context()))
	t.Cleanup(func() { g.Close() })
	return g, dir
}

func TestGoshNotInitialized(t *testing.T) {
	g := NewGosh(Config{WorkDir: t.TempDir()})

	_, err := g.Execute(t.Context(), command.Command{Text: "ls"})
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, g.Close())
	_, err = g.Cwd()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestGoshRunsCommands(t *testing.T) {
	g, dir := newRealGosh(t)

	obs, err := g.Execute(t.Context(), command.Command{Text: "mkdir -p sub && echo hi"})
	require.NoError(t, err)
	assert.Contains(t, obs.Content, "hi")
	assert.Equal(t, 0, obs.ExitCode)
	assert.DirExists(t, filepath.Join(dir, "sub"))

	obs, err = g.Execute(t.Context(), command.Command{Text: "false"})
	require.NoError(t, err)
	assert.NotEqual(t, 0, obs.ExitCode)
}

func TestGoshUnsupportedRequests(t *testing.T) {
	g, _ := newRealGosh(t)

	_, err := g.Execute(t.Context(), command.Command{Text: ""})
	assert.ErrorIs(t, err, ErrNoRunningCommand)

	_, err = g.Execute(t.Context(), command.Command{Text: "C-c"})
	assert.ErrorIs(t, err, ErrUnsupported)

	nonBlocking := false
	_, err = g.Execute(t.Context(), command.Command{Text: "sleep 1", Blocking: &nonBlocking})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestGoshTimeoutLeavesCommandRunning(t *testing.T) {
	g, _ := newRealGosh(t)

	obs, err := g.Execute(t.Context(), command.Command{Text: "sleep 5", Timeout: 300 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, obs.Running)
	assert.False(t, obs.Failed)
	assert.Equal(t, ExitRunning, obs.ExitCode)
	assert.Contains(t, obs.Suffix, "timed out after 0.3 seconds and is still running")
}

func TestCutDoneTag(t *testing.T) {
	out, ok := cutDoneTag("hi\n__RT_DONE_ab_1__", "__RT_DONE_ab_1__")
	assert.True(t, ok)
	assert.Equal(t, "hi\n", out)

	out, ok = cutDoneTag("late\n__RT_DONE_ab_12__\n", "__RT_DONE_ab_1__")
	assert.False(t, ok)
	assert.Equal(t, "late\n__RT_DONE_ab_12__\n", out)
}
