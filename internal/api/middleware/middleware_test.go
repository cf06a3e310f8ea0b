package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/shx815/simple-openhands/internal/shared/id"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		wantOrigin string
	}{
		{"any origin by default", nil, "http://localhost:3000", "*"},
		{"wildcard", []string{"*"}, "http://localhost:3000", "*"},
		{"listed origin", []string{"https://ide.example"}, "https://ide.example", "https://ide.example"},
		{"no origin header", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.Use(CORS(tt.origins...))
			router.GET("/alive", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/alive", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSRejectsUnlistedOrigin(t *testing.T) {
	router := setupTestRouter()
	router.Use(CORS("https://ide.example"))
	router.GET("/alive", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/alive", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSPreflightAllowsAPIKey(t *testing.T) {
	router := setupTestRouter()
	router.Use(CORS())
	router.POST("/execute_action", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/execute_action", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", HeaderAPIKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	allowed := strings.ToLower(w.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, allowed, strings.ToLower(HeaderAPIKey))
}

func newRateLimitedRouter(cfg RateLimitConfig) *gin.Engine {
	router := setupTestRouter()
	router.Use(RateLimit(cfg))
	router.GET("/alive", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func hit(router *gin.Engine, ip, key string) int {
	req := httptest.NewRequest(http.MethodGet, "/alive", nil)
	req.RemoteAddr = ip + ":1234"
	if key != "" {
		req.Header.Set(HeaderAPIKey, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit(t *testing.T) {
	clk := clocktesting.NewFakePassiveClock(time.Now())
	router := newRateLimitedRouter(RateLimitConfig{RequestsPerSecond: 1, Burst: 2, Clock: clk})

	assert.Equal(t, http.StatusOK, hit(router, "10.0.0.1", ""))
	assert.Equal(t, http.StatusOK, hit(router, "10.0.0.1", ""))
	assert.Equal(t, http.StatusTooManyRequests, hit(router, "10.0.0.1", ""))

	// another caller has its own bucket
	assert.Equal(t, http.StatusOK, hit(router, "10.0.0.2", ""))

	// tokens refill with time
	clk.SetTime(clk.Now().Add(time.Second))
	assert.Equal(t, http.StatusOK, hit(router, "10.0.0.1", ""))
}

func TestRateLimitKeysByAPIKey(t *testing.T) {
	clk := clocktesting.NewFakePassiveClock(time.Now())
	router := newRateLimitedRouter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, Clock: clk})

	// two sandboxes behind one proxy
	assert.Equal(t, http.StatusOK, hit(router, "10.0.0.1", "sandbox-a"))
	assert.Equal(t, http.StatusOK, hit(router, "10.0.0.1", "sandbox-b"))
	assert.Equal(t, http.StatusTooManyRequests, hit(router, "10.0.0.1", "sandbox-a"))
}

func TestRateLimitSweepsIdleCallers(t *testing.T) {
	clk := clocktesting.NewFakePassiveClock(time.Now())
	l := newLimiters(RateLimitConfig{RequestsPerSecond: 100, Burst: 100, IdleTTL: time.Minute, Clock: clk})

	l.allow("old")
	clk.SetTime(clk.Now().Add(2 * time.Minute))
	for i := 1; i < sweepEvery; i++ {
		l.allow("fresh")
	}
	assert.Equal(t, 1, l.size())
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()

	assert.Equal(t, 100, cfg.RequestsPerSecond)
	assert.Equal(t, 200, cfg.Burst)
	assert.Equal(t, 3*time.Minute, cfg.IdleTTL)
}

func TestAPIKey(t *testing.T) {
	router := setupTestRouter()
	router.Use(APIKey("s3cret", "/", "/alive"))
	for _, path := range []string{"/", "/alive", "/reset"} {
		router.GET(path, func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
	}

	tests := []struct {
		name       string
		path       string
		key        string
		wantStatus int
	}{
		{"public root", "/", "", http.StatusOK},
		{"public alive", "/alive", "", http.StatusOK},
		{"missing key", "/reset", "", http.StatusUnauthorized},
		{"wrong key", "/reset", "s3cre", http.StatusUnauthorized},
		{"right key", "/reset", "s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set(HeaderAPIKey, tt.key)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAPIKeyDisabled(t *testing.T) {
	router := setupTestRouter()
	router.Use(APIKey(""))
	router.GET("/reset", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reset", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID(t *testing.T) {
	router := setupTestRouter()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	generated := w.Header().Get(HeaderRequestID)
	assert.True(t, id.IsValid(generated), "got %q", generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "client-chosen")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "client-chosen", w.Header().Get(HeaderRequestID))
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	router := setupTestRouter()
	router.Use(RequestID(), Recovery(zap.New(core)))
	router.GET("/boom", func(c *gin.Context) {
		panic("kaboom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Panic recovered", logs.All()[0].Message)
}

func BenchmarkRateLimit(b *testing.B) {
	router := newRateLimitedRouter(DefaultRateLimitConfig())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hit(router, "10.0.0.1", "")
	}
}
