package logging

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Config{Level: "info", OutputPaths: []string{path}})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Named("session").Info("Shell session initialized", zap.String("cwd", "/workspace"))
	logger.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"Shell session initialized"`)
	assert.Contains(t, out, `"logger":"session"`)
	assert.Contains(t, out, `"cwd":"/workspace"`)
	assert.Contains(t, out, `"timestamp":`)
}

func TestLevelCanChangeAtRuntime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Config{Level: "warn", OutputPaths: []string{path}})
	require.NoError(t, err)

	logger.Info("before")
	req := httptest.NewRequest(http.MethodPut, "/log/level", strings.NewReader(`{"level":"debug"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	logger.Level().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, zapcore.DebugLevel, logger.Level().Level())

	logger.Debug("after")
	logger.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "before")
	assert.Contains(t, string(data), "after")
}

func TestEmptyLevelMeansInfo(t *testing.T) {
	logger, err := New(Config{OutputPaths: []string{filepath.Join(t.TempDir(), "out.log")}})
	require.NoError(t, err)
	defer logger.Close()
	assert.Equal(t, zapcore.InfoLevel, logger.Level().Level())
}

func TestNewDefault(t *testing.T) {
	assert.NotNil(t, NewDefault().Logger)
}
