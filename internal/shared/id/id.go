// Package id issues ULID based identifiers.
//
// IDs sort by creation time and carry a short prefix naming what they
// identify, so logs stay readable:
//   - req_*: one HTTP request, also used as error_id in error observations
//   - trace_*: one trace, started by the CLI or by the first server span
//   - span_*: one traced operation
package id

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"k8s.io/utils/clock"
)

// Prefix names the kind of thing an ID identifies
type Prefix string

const (
	Request Prefix = "req"
	Trace   Prefix = "trace"
	Span    Prefix = "span"
)

// Generator issues IDs that increase strictly, even within one millisecond
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	clock   clock.PassiveClock
}

// NewGenerator creates a generator. Nil arguments select crypto/rand and the
// wall clock.
func NewGenerator(clk clock.PassiveClock, entropy io.Reader) *Generator {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if entropy == nil {
		entropy = ulid.Monotonic(rand.Reader, 0)
	}
	return &Generator{entropy: entropy, clock: clk}
}

// ULID returns a bare ULID
func (g *Generator) ULID() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.clock.Now()), g.entropy)
}

// New returns a prefixed ID such as "req_01J..."
func (g *Generator) New(p Prefix) string {
	return string(p) + "_" + g.ULID().String()
}

var std = NewGenerator(nil, nil)

// NewRequestID issues a request ID
func NewRequestID() string { return std.New(Request) }

// NewTraceID issues a trace ID
func NewTraceID() string { return std.New(Trace) }

// NewSpanID issues a span ID
func NewSpanID() string { return std.New(Span) }

// Parse returns the ULID of an ID, with or without a prefix
func Parse(s string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	return ulid.Parse(s)
}

// IsValid reports whether s parses as an ID
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Time returns when an ID was issued
func Time(s string) (time.Time, error) {
	u, err := Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
