package terminal

import (
	"errors"
	"sync"
)

// ErrClosed is returned when writing to a transport that has shut down.
var ErrClosed = errors.New("terminal is closed")

// ErrNotStarted is returned when using a transport before Start.
var ErrNotStarted = errors.New("terminal is not started")

// Transport is the byte-level contract of a shell process
type Transport interface {
	Start() error
	Write(p []byte) (int, error)
	Output() *Buffer
	Done() <-chan struct{}
	Err() error
	Pid() int
	Close() error
}

// Options configures a PTY transport
type Options struct {
	Shell    string
	Args     []string
	WorkDir  string
	Env      map[string]string
	Term     string
	Cols     int
	Rows     int
	MaxBytes int
}

// Buffer is a thread-safe, offset-addressed log of terminal output
type Buffer struct {
	data   []byte
	start  int64 // absolute offset of data[0]
	max    int
	notify chan struct{}
	mu     sync.RWMutex
}

// NewBuffer creates a buffer retaining at most max bytes
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = 10 * 1024 * 1024
	}
	return &Buffer{
		max:    max,
		notify: make(chan struct{}, 1),
	}
}

// Write appends p and wakes a waiting reader
func (b *Buffer) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}

	b.mu.Lock()
	b.data = append(b.data, p...)
	if len(b.data) > b.max+b.max/4 {
		drop := len(b.data) - b.max
		kept := copy(b.data, b.data[drop:])
		b.data = b.data[:kept]
		b.start += int64(drop)
	}
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return len(p), nil
}

// Since returns a copy of everything written from offset on, and the
// offset of the end of the buffer
func (b *Buffer) Since(offset int64) ([]byte, int64) {
	out, _, end := b.Read(offset)
	return out, end
}

// Read is Since that also reports the absolute offset of the first returned
// byte. It is greater than offset when the bytes in between were evicted.
func (b *Buffer) Read(offset int64) (out []byte, start, end int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	end = b.start + int64(len(b.data))
	if offset < b.start {
		offset = b.start
	}
	if offset >= end {
		return nil, end, end
	}

	out = make([]byte, end-offset)
	copy(out, b.data[offset-b.start:])
	return out, offset, end
}

// End returns the absolute offset one past the last written byte
func (b *Buffer) End() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.start + int64(len(b.data))
}

// Notify is signalled after every write. It has capacity one, so a burst of
// writes collapses into a single wake-up.
func (b *Buffer) Notify() <-chan struct{} {
	return b.notify
}
