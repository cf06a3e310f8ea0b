package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	apihttp "github.com/shx815/simple-openhands/internal/api/http"
	"github.com/shx815/simple-openhands/internal/api/middleware"
	"github.com/shx815/simple-openhands/internal/api/ws"
	"github.com/shx815/simple-openhands/internal/domain/session"
	"github.com/shx815/simple-openhands/internal/infrastructure/config"
	"github.com/shx815/simple-openhands/internal/infrastructure/logging"
	"github.com/shx815/simple-openhands/internal/infrastructure/monitoring"
	"github.com/shx815/simple-openhands/internal/infrastructure/tracing"
	"github.com/shx815/simple-openhands/internal/providers/filesystem"
	"github.com/shx815/simple-openhands/internal/providers/system"
)

// ShutdownTimeout bounds graceful shutdown
const ShutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	sessions *session.Manager
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance. The shell session is started by Start.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing runtime server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("backend", cfg.Runtime.Backend),
		zap.String("work_dir", cfg.Runtime.WorkDir),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("runtime", logger.Named("trace"))

	stats := system.NewProvider(cfg.Runtime.WorkDir, nil)
	recorder := session.Recorders{metrics, stats.Window()}
	sessions := session.NewManager(NewFactory(cfg.Runtime, logger.Named("session"), recorder),
		logger.Named("session"), recorder)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.Recovery(logger.Named("http")))
	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics, "/metrics"))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}
	if cfg.Auth.APIKey != "" {
		logger.Info("API key required")
	}
	router.Use(middleware.APIKey(cfg.Auth.APIKey, "/", "/alive"))

	handlers := apihttp.NewHandlers(sessions, filesystem.New(logger.Named("files")), stats, metrics, tracer, logger.Named("http")).
		WithUsername(cfg.Runtime.Username)
	handlers.Register(router)

	wsHandler := ws.NewHandler(sessions, metrics, logger.Named("ws"))
	router.GET("/jobs/:id/stream", wsHandler.StreamJob)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	level := gin.WrapH(logger.Level())
	router.GET("/log/level", level)
	router.PUT("/log/level", level)

	return &Server{
		router:   router,
		http:     &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second},
		sessions: sessions,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// NewFactory builds runtimes for the configured backend
func NewFactory(cfg config.RuntimeConfig, logger *zap.Logger, recorder session.Recorder) session.Factory {
	scfg := SessionConfig(cfg)
	opts := []session.Option{session.WithLogger(logger), session.WithRecorder(recorder)}

	if cfg.Backend == config.BackendGosh {
		return func() session.Runtime { return session.NewGosh(scfg, opts...) }
	}
	return func() session.Runtime { return session.NewBash(scfg, opts...) }
}

// SessionConfig maps runtime settings onto a session configuration
func SessionConfig(cfg config.RuntimeConfig) session.Config {
	return session.Config{
		WorkDir:         cfg.WorkDir,
		Username:        cfg.Username,
		Shell:           cfg.Shell,
		CommandTimeout:  cfg.CommandTimeout.Duration,
		NoChangeTimeout: cfg.NoChangeTimeout.Duration,
		InitTimeout:     cfg.InitTimeout.Duration,
		JobDir:          cfg.JobDir,
		KillJobsOnClose: cfg.KillJobsOnClose,
		MaxOutputBytes:  cfg.MaxOutputBytes,
		Cols:            cfg.Cols,
		Rows:            cfg.Rows,
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the session manager
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Start initializes the shell session. A failure is logged and leaves the
// server running without a session until /reset succeeds.
func (s *Server) Start(ctx context.Context) {
	if err := s.sessions.Start(ctx); err != nil {
		s.logger.Error("Failed to start shell session", zap.Error(err))
		return
	}
	s.logger.Info("Shell session started")
}

// Serve accepts connections on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	if n := s.config.Server.MaxConnections; n > 0 {
		ln = netutil.LimitListener(ln, n)
	}
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run listens on the configured address and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	err = s.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil {
		err = multierr.Append(err, serveErr)
	}
	return err
}

// Shutdown stops accepting requests, then closes the session
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	err := s.http.Shutdown(ctx)
	return multierr.Append(err, s.Close())
}

// Close releases the session and the tracer
func (s *Server) Close() error {
	err := s.sessions.Close()
	if err != nil {
		s.logger.Error("Failed to close session", zap.Error(err))
	}
	s.tracer.Close()
	s.logger.Close()
	return err
}
