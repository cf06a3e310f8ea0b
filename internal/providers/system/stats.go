package system

import (
	"os"
	"os/user"
	"runtime"
	"time"

	"k8s.io/utils/clock"
)

// ProcessStats are figures for the server process and its host
type ProcessStats struct {
	CPUSeconds  float64 `json:"cpu_seconds"`
	RSSBytes    int64   `json:"rss_bytes"`
	VMSBytes    uint64  `json:"vms_bytes"`
	ReadBytes   uint64  `json:"io_read_bytes"`
	WriteBytes  uint64  `json:"io_write_bytes"`
	MemoryTotal uint64  `json:"memory_total_bytes"`
	Load1       float64 `json:"load1"`
	Error       string  `json:"error,omitempty"`
}

// DiskStats is the usage of the filesystem holding the work dir
type DiskStats struct {
	Path  string `json:"path"`
	Total uint64 `json:"total_bytes"`
	Free  uint64 `json:"free_bytes"`
	Used  uint64 `json:"used_bytes"`
	Error string `json:"error,omitempty"`
}

// Stats is the body of /system/stats
type Stats struct {
	Process       ProcessStats   `json:"process"`
	Disk          DiskStats      `json:"disk"`
	NumCPU        int            `json:"num_cpu"`
	Goroutines    int            `json:"goroutines"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Latency       LatencySummary `json:"command_latency"`
}

// Info identifies the server for /server_info
type Info struct {
	Username      string  `json:"username"`
	Hostname      string  `json:"hostname"`
	OS            string  `json:"os"`
	Arch          string  `json:"arch"`
	GoVersion     string  `json:"go_version"`
	PID           int     `json:"pid"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Provider gathers statistics
type Provider struct {
	clock   clock.PassiveClock
	start   time.Time
	workDir string
	window  *Window
}

// NewProvider creates a provider measuring disk usage at workDir
func NewProvider(workDir string, window *Window) *Provider {
	return NewProviderWithClock(workDir, window, clock.RealClock{})
}

// NewProviderWithClock is NewProvider with an injected clock
func NewProviderWithClock(workDir string, window *Window, clk clock.PassiveClock) *Provider {
	if window == nil {
		window = NewWindow(DefaultWindowSize)
	}
	return &Provider{clock: clk, start: clk.Now(), workDir: workDir, window: window}
}

// Window returns the latency window fed by the session
func (p *Provider) Window() *Window {
	return p.window
}

// Uptime is the time since the provider was created
func (p *Provider) Uptime() time.Duration {
	return p.clock.Since(p.start)
}

// Stats collects a snapshot
func (p *Provider) Stats() Stats {
	return Stats{
		Process:       processStats(),
		Disk:          diskStats(p.workDir),
		NumCPU:        runtime.NumCPU(),
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: p.Uptime().Seconds(),
		Latency:       p.window.Summary(),
	}
}

// Info describes the running server
func (p *Provider) Info(username string) Info {
	if username == "" {
		if u, err := user.Current(); err == nil {
			username = u.Username
		}
	}
	host, _ := os.Hostname()
	return Info{
		Username:      username,
		Hostname:      host,
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		GoVersion:     runtime.Version(),
		PID:           os.Getpid(),
		UptimeSeconds: p.Uptime().Seconds(),
	}
}
