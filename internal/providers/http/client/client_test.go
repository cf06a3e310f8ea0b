package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shx815/simple-openhands/internal/infrastructure/resilience"
	"github.com/shx815/simple-openhands/internal/infrastructure/tracing"
	"github.com/shx815/simple-openhands/internal/shared/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, APIKey: "secret"})
}

func TestClientRun(t *testing.T) {
	var gotKey, gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/execute_action", r.URL.Path)
		gotKey = r.Header.Get(HeaderAPIKey)
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"observation":"run","content":"hi\n","extras":{"command":"echo hi","exit_code":0,"metadata":{"exit_code":0,"pid":-1,"working_dir":"/tmp"}}}`))
	})

	obs, err := c.Run(context.Background(), types.ActionArgs{Command: "echo hi"})
	require.NoError(t, err)
	assert.Equal(t, "secret", gotKey)
	assert.Contains(t, gotBody, `"command":"echo hi"`)
	assert.Contains(t, gotBody, `"action":"run"`)
	assert.Equal(t, "hi\n", obs.Content)
	assert.Equal(t, 0, obs.Extras.ExitCode)
	assert.Equal(t, "/tmp", obs.Extras.Metadata.WorkingDir)
}

func TestClientAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"observation":"error","content":"previous command still running"}`))
	})

	_, err := c.Run(context.Background(), types.ActionArgs{Command: "ls"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "previous command still running", apiErr.Detail)

	// client errors do not count against the breaker
	for i := 0; i < 10; i++ {
		_, _ = c.Run(context.Background(), types.ActionArgs{Command: "ls"})
	}
	assert.Equal(t, resilience.StateClosed, c.BreakerState())
}

func TestClientBreakerOpens(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"boom"}`))
	})

	for i := 0; i < 5; i++ {
		err := c.Reset(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, resilience.StateOpen, c.BreakerState())

	err := c.Reset(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 5, calls)
}

func TestClientAliveAndJob(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/alive":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case "/jobs/3":
			_, _ = w.Write([]byte(`{"id":3,"command":"sleep 1","state":"running"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Job not found"}`))
		}
	})

	alive, err := c.Alive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", alive.Status)

	job, err := c.Job(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, job.ID)
	assert.Equal(t, "sleep 1", job.Command)

	_, err = c.Job(context.Background(), 9)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Job not found", apiErr.Detail)
}

func TestClientPropagatesTrace(t *testing.T) {
	var gotTrace string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotTrace = r.Header.Get(tracing.HeaderTraceID)
		_, _ = w.Write([]byte(`{"status":"alive"}`))
	})

	ctx := tracing.ContextWith(context.Background(), "trace_abc", "")
	_, err := c.Alive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "trace_abc", gotTrace)
}

func TestClientRequestHonorsContext(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:1", RateLimit: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Request(ctx)
	assert.Error(t, err)
}

func TestClientSendKeepsErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Unsupported action type: browse"}`))
	})

	resp, err := c.Send(context.Background(), http.MethodPost, "/execute_action", map[string]string{"x": "y"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.Contains(t, resp.String(), "Unsupported action type")
}

func TestClientServerInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/server_info", r.URL.Path)
		_, _ = w.Write([]byte(`{"working_dir":"/workspace","username":"root"}`))
	})

	info, err := c.ServerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/workspace", info["working_dir"])
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "session.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"api_url":"http://file:1","api_key":"filekey"}`), 0o644))

	env := map[string]string{EnvSessionFile: file}
	getenv := func(k string) string { return env[k] }

	ep := Resolver{Getenv: getenv}.Resolve()
	assert.Equal(t, Endpoint{URL: "http://file:1", Key: "filekey"}, ep)

	// a URL from the environment skips the session file
	env[EnvURL] = "http://env:2"
	ep = Resolver{Getenv: getenv}.Resolve()
	assert.Equal(t, Endpoint{URL: "http://env:2"}, ep)

	ep = Resolver{URL: "http://flag:3", Key: "flagkey", Getenv: getenv}.Resolve()
	assert.Equal(t, Endpoint{URL: "http://flag:3", Key: "flagkey"}, ep)

	env = map[string]string{EnvSessionFile: filepath.Join(dir, "missing")}
	ep = Resolver{Getenv: getenv}.Resolve()
	assert.Equal(t, Endpoint{URL: DefaultURL}, ep)
}

func TestResolveFindsSessionFileUpwards(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, SessionFileName), []byte(`{"api_url":"http://up:4","api_key":"k"}`), 0o644))

	assert.Equal(t, filepath.Join(root, SessionFileName), FindSessionFile(nested))

	getenv := func(string) string { return "" }
	ep := Resolver{Getenv: getenv, Dir: nested}.Resolve()
	assert.Equal(t, Endpoint{URL: "http://up:4", Key: "k"}, ep)

	ep = Resolver{Getenv: getenv, Key: "flag", Dir: nested}.Resolve()
	assert.Equal(t, "flag", ep.Key)
}

func TestLoadSessionFileInvalid(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad")
	require.NoError(t, os.WriteFile(file, []byte("not json"), 0o644))
	_, err := LoadSessionFile(file)
	assert.Error(t, err)
}
