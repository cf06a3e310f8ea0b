package session

import (
	"context"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/shx815/simple-openhands/internal/domain/sentinel"
	"github.com/shx815/simple-openhands/internal/providers/terminal"
)

// outcome is the terminal state of one wait
type outcome int

const (
	completed outcome = iota
	timedOutHard
	timedOutSoft
	interrupted
	exited
	abandoned
)

func (o outcome) String() string {
	switch o {
	case completed:
		return "completed"
	case timedOutHard:
		return "timeout_hard"
	case timedOutSoft:
		return "timeout_soft"
	case interrupted:
		return "interrupted"
	case exited:
		return "exited"
	default:
		return "abandoned"
	}
}

// waitResult is what the detector saw
type waitResult struct {
	outcome outcome
	marker  *sentinel.Marker
	content string
	next    int64 // buffer offset consumed up to
}

// detector scans transport output for the prompt marker while enforcing the
// hard and no-output deadlines
type detector struct {
	proto *sentinel.Protocol
	clock clock.Clock

	// scanned is called after every scan with the buffer end offset; tests
	// use it to know the new bytes were seen before moving the clock
	scanned func(end int64)
}

// wait blocks until the marker shows up after offset from, a deadline
// passes, the shell exits, stop is closed or ctx ends. A zero soft duration
// disables the no-output deadline.
func (d *detector) wait(ctx context.Context, t terminal.Transport, stop <-chan struct{}, from int64, hard, soft time.Duration) waitResult {
	buf := t.Output()

	hardTimer := d.clock.NewTimer(hard)
	defer hardTimer.Stop()

	var softTimer clock.Timer
	var softC <-chan time.Time
	if soft > 0 {
		softTimer = d.clock.NewTimer(soft)
		defer softTimer.Stop()
		softC = softTimer.C()
	}

	lastEnd := int64(-1)
	for {
		raw, start, end := buf.Read(from)
		if res, ok := d.scan(raw, from, start); ok {
			return res
		}

		if lastEnd >= 0 && end > lastEnd && softTimer != nil {
			resetTimer(softTimer, soft)
		}
		lastEnd = end
		if d.scanned != nil {
			d.scanned(end)
		}

		select {
		case <-buf.Notify():
		case <-hardTimer.C():
			return d.partial(timedOutHard, buf, from)
		case <-softC:
			return d.partial(timedOutSoft, buf, from)
		case <-t.Done():
			select {
			case <-stop:
				return waitResult{outcome: abandoned, next: from}
			default:
			}
			raw, start, end := buf.Read(from)
			if res, ok := d.scan(raw, from, start); ok {
				return res
			}
			return waitResult{outcome: exited, content: dropNotice(from, start) + sentinel.Clean(raw), next: end}
		case <-stop:
			return waitResult{outcome: abandoned, next: from}
		case <-ctx.Done():
			return waitResult{outcome: interrupted, next: from}
		}
	}
}

// scan reports a completed wait when raw, read from start, holds a marker
func (d *detector) scan(raw []byte, from, start int64) (waitResult, bool) {
	res := d.proto.Scan(raw)
	if res.Marker == nil {
		return waitResult{}, false
	}
	return waitResult{
		outcome: completed,
		marker:  res.Marker,
		content: dropNotice(from, start) + res.Content,
		next:    start + int64(res.Consumed),
	}, true
}

// partial releases everything read so far except a marker that may still be arriving
func (d *detector) partial(o outcome, buf *terminal.Buffer, from int64) waitResult {
	raw, start, _ := buf.Read(from)
	// the marker may have landed together with the deadline
	if res, ok := d.scan(raw, from, start); ok {
		return res
	}
	n := d.proto.Pending(raw)
	return waitResult{outcome: o, content: dropNotice(from, start) + sentinel.Clean(raw[:n]), next: start + int64(n)}
}

// dropNotice flags output evicted from the terminal buffer before it was read
func dropNotice(from, start int64) string {
	if start <= from {
		return ""
	}
	return fmt.Sprintf("[Output truncated: %d earlier bytes exceeded the terminal buffer.]\n", start-from)
}

func resetTimer(t clock.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C():
		default:
		}
	}
	t.Reset(d)
}
