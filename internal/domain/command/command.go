package command

import (
	"regexp"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"
)

// Mode is how a command occupies the session
type Mode int

const (
	// Sync blocks the caller until completion or timeout
	Sync Mode = iota
	// Async starts in the foreground slot and returns immediately
	Async
	// Background detaches from the foreground slot
	Background
)

func (m Mode) String() string {
	switch m {
	case Async:
		return "async"
	case Background:
		return "background"
	default:
		return "sync"
	}
}

// Key is a control key accepted by the session
type Key string

const (
	KeyInterrupt Key = "C-c"
	KeySuspend   Key = "C-z"
	KeyEOF       Key = "C-d"
)

// Bytes returns the raw terminal byte for the key
func (k Key) Bytes() []byte {
	switch k {
	case KeyInterrupt:
		return []byte{0x03}
	case KeySuspend:
		return []byte{0x1a}
	case KeyEOF:
		return []byte{0x04}
	}
	return nil
}

// Kind tells what a request's text asks for
type Kind int

const (
	KindCommand Kind = iota
	KindPoll
	KindControl
)

// Command is a single run request
type Command struct {
	Text     string
	Timeout  time.Duration // hard timeout override, zero uses the session default
	Blocking *bool
	WorkDir  string
	IsStatic bool
	Hidden   bool
	IsInput  bool
	Thought  string
}

// Input is the parsed form of a request's text
type Input struct {
	Kind Kind
	Key  Key
	Text string
}

var controlStyle = regexp.MustCompile(`^C-.$`)

// Parse splits text into poll, control key or command
func Parse(text string) (Input, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Input{Kind: KindPoll}, nil
	}

	switch k := Key(trimmed); k {
	case KeyInterrupt, KeySuspend, KeyEOF:
		return Input{Kind: KindControl, Key: k}, nil
	}

	if controlStyle.MatchString(trimmed) || isControlByte(trimmed) {
		return Input{}, ErrInvalidControl
	}
	return Input{Kind: KindCommand, Text: text}, nil
}

func isControlByte(s string) bool {
	return len(s) == 1 && (s[0] < 0x20 || s[0] == 0x7f)
}

// Classify decides the execution mode
func Classify(cmd Command) Mode {
	if IsBackground(cmd.Text) {
		return Background
	}
	if cmd.Blocking != nil && !*cmd.Blocking {
		return Async
	}
	return Sync
}

// IsBackground reports whether the last statement ends in a lone '&'
func IsBackground(text string) bool {
	f, err := parse(text)
	if err != nil {
		t := strings.TrimSpace(text)
		return strings.HasSuffix(t, "&") && !strings.HasSuffix(t, "&&") && !strings.HasSuffix(t, `\&`)
	}
	if len(f.Stmts) == 0 {
		return false
	}
	return f.Stmts[len(f.Stmts)-1].Background
}

// StripBackground removes the trailing '&' from a background command
func StripBackground(text string) string {
	f, err := parse(text)
	if err == nil && len(f.Stmts) > 0 {
		last := f.Stmts[len(f.Stmts)-1]
		if last.Background && last.Semicolon.IsValid() {
			return strings.TrimSpace(text[:last.Semicolon.Offset()])
		}
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "&"))
}

// Validate rejects text holding top-level statements on separate lines.
// Statements chained on one line and multi-line compound commands are fine.
func Validate(text string) error {
	f, err := parse(text)
	if err != nil {
		// let the shell report syntax errors
		return nil
	}
	for i := 1; i < len(f.Stmts); i++ {
		if f.Stmts[i].Pos().Line() > f.Stmts[i-1].End().Line() {
			return ErrMultipleCommands
		}
	}
	return nil
}

func parse(text string) (*syntax.File, error) {
	return syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(text), "")
}
