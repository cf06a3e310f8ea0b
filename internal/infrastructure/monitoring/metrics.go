package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Session metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	TimeoutsTotal   *prometheus.CounterVec
	SessionResets   prometheus.Counter
	JobsActive      prometheus.Gauge

	// Service metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge

	startTime time.Time

	// Snapshot for the JSON stats endpoint
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current counter values for the JSON API
type Snapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	TotalCommands   int64   `json:"total_commands"`
	TotalTimeouts   int64   `json:"total_timeouts"`
	SessionResets   int64   `json:"session_resets"`
	AvgRequestSecs  float64 `json:"avg_request_seconds"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	totalDuration   float64
	durationSamples int64
}

// NewMetrics creates a collector backed by a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runtime_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runtime_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runtime_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runtime_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runtime_commands_total",
				Help: "Commands that left the foreground slot, by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runtime_command_duration_seconds",
				Help:    "Time from command start until its prompt marker",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300, 900},
			},
			[]string{"mode"},
		),
		TimeoutsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runtime_command_timeouts_total",
				Help: "Waits that returned before the command finished",
			},
			[]string{"kind"},
		),
		SessionResets: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "runtime_session_resets_total",
				Help: "Number of session resets",
			},
		),
		JobsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "runtime_jobs_active",
				Help: "Number of running async and background jobs",
			},
		),

		ServiceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runtime_file_actions_total",
				Help: "Total number of file actions",
			},
			[]string{"service", "action", "status"},
		),
		ServiceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runtime_file_action_duration_seconds",
				Help:    "File action duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "action"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "runtime_ws_connections",
				Help: "Number of active job stream connections",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "runtime_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	m.snapshot.durationSamples++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordCommand records a command that released the foreground slot
func (m *Metrics) RecordCommand(mode, outcome string, duration time.Duration) {
	m.CommandsTotal.WithLabelValues(mode, outcome).Inc()
	m.CommandDuration.WithLabelValues(mode).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalCommands++
	m.mu.Unlock()
}

// RecordTimeout records a hard or no-output deadline
func (m *Metrics) RecordTimeout(kind string) {
	m.TimeoutsTotal.WithLabelValues(kind).Inc()

	m.mu.Lock()
	m.snapshot.TotalTimeouts++
	m.mu.Unlock()
}

// RecordReset records a session reset
func (m *Metrics) RecordReset() {
	m.SessionResets.Inc()

	m.mu.Lock()
	m.snapshot.SessionResets++
	m.mu.Unlock()
}

// RecordServiceCall records a file action
func (m *Metrics) RecordServiceCall(service, action, status string, duration time.Duration) {
	m.ServiceCalls.WithLabelValues(service, action, status).Inc()
	m.ServiceDuration.WithLabelValues(service, action).Observe(duration.Seconds())
}

// SetJobsActive sets the number of running jobs
func (m *Metrics) SetJobsActive(count int) {
	m.JobsActive.Set(float64(count))
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// Snapshot returns the current counter values
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	if s.durationSamples > 0 {
		s.AvgRequestSecs = s.totalDuration / float64(s.durationSamples)
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
