package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shx815/simple-openhands/internal/domain/session"
	"github.com/shx815/simple-openhands/internal/infrastructure/config"
	"github.com/shx815/simple-openhands/internal/infrastructure/logging"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Runtime.WorkDir = t.TempDir()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Logging.Development = true
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := NewServer(cfg, &logging.Logger{Logger: zap.NewNop()})
	require.NoError(t, err)
	return srv
}

func get(srv *Server, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestNewServerRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Runtime.Backend = "docker"

	_, err := NewServer(cfg, nil)
	assert.ErrorContains(t, err, "RUNTIME_BACKEND")
}

func TestRoutesWithoutSession(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	defer srv.Close()

	w := get(srv, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	w = get(srv, "/alive")
	assert.JSONEq(t, `{"status":"alive","bash_session_active":false}`, w.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/execute_action",
		strings.NewReader(`{"action":{"action":"run","args":{"command":"ls"}}}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	w = get(srv, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestAPIKeyGuardsRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.APIKey = "k"
	srv := newTestServer(t, cfg)
	defer srv.Close()

	assert.Equal(t, http.StatusOK, get(srv, "/alive").Code)
	assert.Equal(t, http.StatusOK, get(srv, "/").Code)
	assert.Equal(t, http.StatusUnauthorized, get(srv, "/server_info").Code)
	assert.Equal(t, http.StatusOK, get(srv, "/server_info", "X-Session-API-Key", "k").Code)
	assert.Equal(t, http.StatusUnauthorized, get(srv, "/log/level").Code)
}

func TestLogLevelRoute(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	defer srv.Close()

	w := get(srv, "/log/level")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"level":"info"}`, w.Body.String())
}

func TestNewFactory(t *testing.T) {
	cfg := testConfig(t)

	rt := NewFactory(cfg.Runtime, zap.NewNop(), nil)()
	assert.IsType(t, &session.Bash{}, rt)

	cfg.Runtime.Backend = config.BackendGosh
	rt = NewFactory(cfg.Runtime, zap.NewNop(), nil)()
	assert.IsType(t, &session.Gosh{}, rt)
}

func TestSessionConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Runtime.CommandTimeout = config.Duration{Duration: 90 * time.Second}
	cfg.Runtime.KillJobsOnClose = true

	sc := SessionConfig(cfg.Runtime)
	assert.Equal(t, cfg.Runtime.WorkDir, sc.WorkDir)
	assert.Equal(t, 90*time.Second, sc.CommandTimeout)
	assert.Equal(t, 30*time.Second, sc.NoChangeTimeout)
	assert.True(t, sc.KillJobsOnClose)
	assert.Equal(t, 1024, sc.Cols)
}

func TestServeAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxConnections = 4
	srv := newTestServer(t, cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/alive")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-errCh)
}
