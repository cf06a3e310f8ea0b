package sentinel

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ansiPattern matches CSI, OSC and charset-selection escape sequences
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\x07]*\x07|\x1b[()][0-9A-Za-z]`)

// Marker is the payload carried by one prompt marker
type Marker struct {
	ExitCode int
	PID      int // pid of the most recent background job, 0 when none
	Cwd      string
}

// Result is the outcome of scanning a chunk of raw shell output
type Result struct {
	Marker   *Marker // nil when no complete marker was found
	Content  string  // cleaned output preceding the marker
	Rest     string  // cleaned output following the marker
	Consumed int     // raw bytes up to and including the marker
}

// Protocol owns the token for one session lifetime
type Protocol struct {
	token string
	begin string
	end   string
	re    *regexp.Regexp
}

// New creates a protocol with a fresh random token
func New() *Protocol {
	return WithToken(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// WithToken creates a protocol with a fixed token
func WithToken(token string) *Protocol {
	begin := fmt.Sprintf("###RT_%s_BEGIN###", token)
	end := fmt.Sprintf("###RT_%s_END###", token)
	re := regexp.MustCompile(`(?:\r?\n)?` + regexp.QuoteMeta(begin) +
		`(-?[0-9]+);([0-9]*);([^\r\n]*?)` + regexp.QuoteMeta(end) + `(?:\r?\n)?`)
	return &Protocol{token: token, begin: begin, end: end, re: re}
}

// Token returns the session token
func (p *Protocol) Token() string {
	return p.token
}

// PromptCommand returns the shell line that installs the marker prompt.
// Echo is disabled and the continuation prompt is cleared so that only
// command output and markers reach the transport.
func (p *Protocol) PromptCommand() string {
	return fmt.Sprintf(`stty -echo 2>/dev/null; PS2=''; unset PROMPT_COMMAND; PS1='\n%s$?;$!;$PWD%s\n'`,
		p.begin, p.end)
}

// Scan looks for the first complete marker in raw
func (p *Protocol) Scan(raw []byte) Result {
	loc := p.re.FindSubmatchIndex(raw)
	if loc == nil {
		return Result{Content: Clean(raw)}
	}

	exit, err := strconv.Atoi(string(raw[loc[2]:loc[3]]))
	if err != nil {
		return Result{Content: Clean(raw)}
	}
	pid := 0
	if loc[5] > loc[4] {
		pid, _ = strconv.Atoi(string(raw[loc[4]:loc[5]]))
	}

	return Result{
		Marker: &Marker{
			ExitCode: exit,
			PID:      pid,
			Cwd:      string(raw[loc[6]:loc[7]]),
		},
		Content:  strings.TrimRight(Clean(raw[:loc[0]]), "\n"),
		Rest:     Clean(raw[loc[1]:]),
		Consumed: loc[1],
	}
}

// Pending returns how many leading bytes of raw can be released as output
// while no complete marker is present. A marker that is still arriving is
// held back so the next scan sees it whole.
func (p *Protocol) Pending(raw []byte) int {
	safe := len(raw)
	if i := bytes.LastIndex(raw, []byte(p.begin)); i >= 0 {
		safe = i
	}

	tag := []byte(p.begin)
	for k := min(len(tag)-1, len(raw)); k > 0; k-- {
		if bytes.HasSuffix(raw, tag[:k]) {
			safe = min(safe, len(raw)-k)
			break
		}
	}

	// keep a dangling CR/LF with the marker it may belong to
	for safe > 0 && (raw[safe-1] == '\n' || raw[safe-1] == '\r') && safe < len(raw) {
		safe--
	}
	return safe
}

// Clean normalizes line endings and strips terminal escape sequences
func Clean(raw []byte) string {
	s := ansiPattern.ReplaceAllString(string(raw), "")
	return strings.ReplaceAll(s, "\r\n", "\n")
}
