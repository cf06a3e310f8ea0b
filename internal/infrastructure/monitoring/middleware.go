package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records per-route HTTP metrics. Requests to skip paths, such as
// the scrape endpoint itself, are not recorded.
func Middleware(metrics *Metrics, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		upgrade := c.IsWebsocket()
		c.Next()

		// route templates keep label cardinality bounded
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		status := c.Writer.Status()
		if upgrade && c.Writer.Written() && status == 200 {
			// hijacked connections never report 101 to gin
			status = 101
		}

		metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status),
			time.Since(start), max(c.Request.ContentLength, 0), int64(max(c.Writer.Size(), 0)))
	}
}

// Timer measures one provider call
type Timer struct {
	start   time.Time
	metrics *Metrics
	service string
	action  string
}

// NewTimer starts a timer for service/action. A nil metrics is allowed.
func NewTimer(metrics *Metrics, service, action string) *Timer {
	return &Timer{start: time.Now(), metrics: metrics, service: service, action: action}
}

// Stop records the elapsed time under status
func (t *Timer) Stop(status string) {
	if t.metrics == nil {
		return
	}
	t.metrics.RecordServiceCall(t.service, t.action, status, time.Since(t.start))
}
