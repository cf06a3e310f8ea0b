package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shx815/simple-openhands/internal/domain/jobs"
	"github.com/shx815/simple-openhands/internal/domain/session"
	"github.com/shx815/simple-openhands/internal/infrastructure/monitoring"
	"github.com/shx815/simple-openhands/internal/infrastructure/tracing"
	"github.com/shx815/simple-openhands/internal/providers/filesystem"
	"github.com/shx815/simple-openhands/internal/providers/system"
	"github.com/shx815/simple-openhands/internal/shared/types"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	sessions *session.Manager
	files    *filesystem.FS
	system   *system.Provider
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	logger   *zap.Logger
	username string
}

// NewHandlers creates a new handler set
func NewHandlers(
	sessions *session.Manager,
	files *filesystem.FS,
	sys *system.Provider,
	metrics *monitoring.Metrics,
	tracer *tracing.Tracer,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		sessions: sessions,
		files:    files,
		system:   sys,
		metrics:  metrics,
		tracer:   tracer,
		logger:   logger,
	}
}

// WithUsername sets the user reported by /server_info
func (h *Handlers) WithUsername(username string) *Handlers {
	h.username = username
	return h
}

// Register adds the routes to r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/alive", h.Alive)
	r.GET("/server_info", h.ServerInfo)
	r.GET("/system/stats", h.SystemStats)
	r.POST("/reset", h.Reset)

	r.POST("/execute_action", h.ExecuteAction)

	r.GET("/jobs", h.ListJobs)
	r.GET("/jobs/:id", h.GetJob)

	r.POST("/list_files", h.ListFiles)
	r.GET("/download_files", h.DownloadFiles)
	r.GET("/view-file", h.ViewFile)
}

// Root identifies the API
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, types.MessageResponse{
		Message: "Simple Docker Runtime API",
		Version: types.Version,
	})
}

// Alive reports whether the shell session is usable
func (h *Handlers) Alive(c *gin.Context) {
	c.JSON(http.StatusOK, types.AliveResponse{
		Status:            "alive",
		BashSessionActive: h.sessions.Active(),
	})
}

// ServerInfo describes the server and its resources
func (h *Handlers) ServerInfo(c *gin.Context) {
	cwd := ""
	if rt, err := h.sessions.Current(); err == nil {
		cwd, _ = rt.Cwd()
	}

	info := h.system.Info(h.username)
	c.JSON(http.StatusOK, types.ServerInfo{
		Status:    "running",
		Version:   types.Version,
		Cwd:       cwd,
		Username:  info.Username,
		Resources: gin.H{"info": info, "stats": h.system.Stats()},
	})
}

// SystemStats reports process, disk and latency statistics, plus request
// counters when metrics are enabled
func (h *Handlers) SystemStats(c *gin.Context) {
	resp := types.StatsResponse{
		Status:      "success",
		SystemStats: h.system.Stats(),
		Timestamp:   float64(time.Now().UnixNano()) / 1e9,
	}
	if h.metrics != nil {
		resp.Counters = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}

// Reset replaces the shell session
func (h *Handlers) Reset(c *gin.Context) {
	timer := monitoring.NewTimer(h.metrics, "session", "reset")
	if err := h.sessions.Reset(c.Request.Context()); err != nil {
		timer.Stop("error")
		h.logger.Error("Session reset failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Detail: "Failed to reset bash session: " + err.Error(),
		})
		return
	}
	timer.Stop("success")
	c.JSON(http.StatusOK, types.MessageResponse{Message: "Bash session reset successfully"})
}

// ListJobs lists async and background jobs
func (h *Handlers) ListJobs(c *gin.Context) {
	rt, ok := h.runtime(c)
	if !ok {
		return
	}
	list, err := rt.Jobs()
	if err != nil {
		h.fail(c, err)
		return
	}
	h.updateActiveJobs(list)
	c.JSON(http.StatusOK, gin.H{"jobs": list})
}

// GetJob returns one job
func (h *Handlers) GetJob(c *gin.Context) {
	jobID, err := strconv.Atoi(c.Param("id"))
	if err != nil || jobID <= 0 {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Detail: "Invalid job id"})
		return
	}
	rt, ok := h.runtime(c)
	if !ok {
		return
	}
	job, err := rt.Job(jobID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// runtime returns the active session, answering 503 when there is none
func (h *Handlers) runtime(c *gin.Context) (session.Runtime, bool) {
	rt, err := h.sessions.Current()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Detail: "Bash session not available. Please check server status.",
		})
		return nil, false
	}
	return rt, true
}

func (h *Handlers) updateActiveJobs(list []jobs.Job) {
	if h.metrics == nil {
		return
	}
	active := 0
	for _, j := range list {
		if !j.State.Terminal() {
			active++
		}
	}
	h.metrics.SetJobsActive(active)
}

// fail writes err as an error observation
func (h *Handlers) fail(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, session.ErrSessionDead) {
		h.logger.Error("Action failed", zap.Error(err), zap.String("path", c.FullPath()))
	}
	c.JSON(status, errorObservation(c, err))
}
