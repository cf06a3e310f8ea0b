package ws

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shx815/simple-openhands/internal/domain/jobs"
	"github.com/shx815/simple-openhands/internal/domain/session"
	"github.com/shx815/simple-openhands/internal/infrastructure/monitoring"
)

// DefaultPollInterval is how often a streamed job is re-read
const DefaultPollInterval = 250 * time.Millisecond

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // access is guarded by the API key
	},
}

// Message is one frame sent to the client
type Message struct {
	Type      string    `json:"type"`
	Job       *jobs.Job `json:"job,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// Handler manages job stream connections
type Handler struct {
	sessions *session.Manager
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	interval time.Duration
}

// NewHandler creates a new WebSocket handler
func NewHandler(sessions *session.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
		interval: DefaultPollInterval,
	}
}

// WithInterval overrides the poll interval
func (h *Handler) WithInterval(d time.Duration) *Handler {
	if d > 0 {
		h.interval = d
	}
	return h
}

// StreamJob upgrades the connection and pushes job snapshots
func (h *Handler) StreamJob(c *gin.Context) {
	jobID, err := strconv.Atoi(c.Param("id"))
	if err != nil || jobID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid job id"})
		return
	}

	rt, err := h.sessions.Current()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Bash session not available. Please check server status."})
		return
	}
	if _, err := rt.Job(jobID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var writeMu sync.Mutex
	send := func(msg Message) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		msg.Timestamp = time.Now().Unix()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}

	go h.readLoop(conn, cancel, send)
	h.pushJob(ctx, jobID, send)

	writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	writeMu.Unlock()
}

// readLoop answers pings and cancels the stream when the client goes away
func (h *Handler) readLoop(conn *websocket.Conn, cancel context.CancelFunc, send func(Message) error) {
	defer cancel()
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == "ping" {
			if err := send(Message{Type: "pong"}); err != nil {
				return
			}
		}
	}
}

func (h *Handler) pushJob(ctx context.Context, jobID int, send func(Message) error) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last *jobs.Job
	for {
		rt, err := h.sessions.Current()
		if err != nil {
			send(Message{Type: "error", Message: err.Error()})
			return
		}
		job, err := rt.Job(jobID)
		if err != nil {
			send(Message{Type: "error", Message: err.Error()})
			return
		}

		if last == nil || changed(*last, job) {
			if err := send(Message{Type: "job", Job: &job}); err != nil {
				h.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
			last = &job
		}
		if job.State.Terminal() {
			send(Message{Type: "complete", Job: &job})
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func changed(a, b jobs.Job) bool {
	return a.State != b.State || a.Output != b.Output || a.PID != b.PID
}
