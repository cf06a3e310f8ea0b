package system

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultWindowSize is the number of recent commands kept
const DefaultWindowSize = 512

// LatencySummary describes the recent command durations in seconds
type LatencySummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	Max   float64 `json:"max"`
}

// Window is a thread-safe circular buffer of command durations.
// It satisfies the session recorder interface.
type Window struct {
	samples []float64
	head    int
	size    int
	mu      sync.RWMutex
}

// NewWindow creates a window holding at most size samples
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{samples: make([]float64, size)}
}

// Add inserts a sample, overwriting the oldest when full
func (w *Window) Add(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples[w.head] = d.Seconds()
	w.head = (w.head + 1) % len(w.samples)
	if w.size < len(w.samples) {
		w.size++
	}
}

// RecordCommand keeps the duration of every finished command
func (w *Window) RecordCommand(_, outcome string, duration time.Duration) {
	if outcome == "completed" {
		w.Add(duration)
	}
}

func (w *Window) RecordTimeout(string) {}

func (w *Window) RecordReset() {}

// Summary computes count, mean, quantiles and max
func (w *Window) Summary() LatencySummary {
	w.mu.RLock()
	x := make([]float64, w.size)
	start := (w.head - w.size + len(w.samples)) % len(w.samples)
	for i := 0; i < w.size; i++ {
		x[i] = w.samples[(start+i)%len(w.samples)]
	}
	w.mu.RUnlock()

	if len(x) == 0 {
		return LatencySummary{}
	}

	sort.Float64s(x)
	return LatencySummary{
		Count: len(x),
		Mean:  stat.Mean(x, nil),
		P50:   stat.Quantile(0.5, stat.Empirical, x, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, x, nil),
		Max:   floats.Max(x),
	}
}
