package jobs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const maxLogBytes = 1 << 20

// FileProber launches background jobs through the shell and reads their
// state back from files under Dir.
type FileProber struct {
	Dir   string
	Shell string
}

// NewFileProber creates a prober rooted at dir
func NewFileProber(dir, shell string) (*FileProber, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create job dir: %w", err)
	}
	if shell == "" {
		shell = "sh"
	}
	return &FileProber{Dir: dir, Shell: shell}, nil
}

// LogPath is where a job's combined output goes
func (p *FileProber) LogPath(id int) string {
	return filepath.Join(p.Dir, fmt.Sprintf("%d.log", id))
}

// ExitPath is where a job's exit status goes
func (p *FileProber) ExitPath(id int) string {
	return filepath.Join(p.Dir, fmt.Sprintf("%d.exit", id))
}

// LaunchLine returns the shell line that starts cmd detached from the
// foreground slot. The job is disowned so the shell never prints a
// completion notice into later output; its pid is read back from $! in the
// next prompt marker.
func (p *FileProber) LaunchLine(id int, cmd string) string {
	return fmt.Sprintf("nohup %s -c %s > %s 2>&1 < /dev/null & disown",
		p.Shell, quote(p.Script(id, cmd)), quote(p.LogPath(id)))
}

// Script wraps cmd so its exit status lands in the exit file. INT and TERM
// are recorded as 128+signal the way shells report them; nohup leaves HUP
// ignored.
func (p *FileProber) Script(id int, cmd string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "__rt_exit=%s\n", quote(p.ExitPath(id)))
	for _, sig := range []struct {
		name string
		code int
	}{{"INT", 130}, {"TERM", 143}} {
		fmt.Fprintf(&b, "trap 'echo %d > \"$__rt_exit\"; exit %d' %s\n", sig.code, sig.code, sig.name)
	}
	fmt.Fprintf(&b, "(\n%s\n)\necho $? > \"$__rt_exit\"", cmd)
	return b.String()
}

// Probe reads the exit file, then the process liveness. A job that is gone
// without an exit file was killed by a signal the wrapper cannot trap, and
// is reported as Failed with no exit code.
func (p *FileProber) Probe(j Job) Status {
	st := Status{Output: readTail(p.LogPath(j.ID), maxLogBytes)}

	if data, err := os.ReadFile(p.ExitPath(j.ID)); err == nil {
		if code, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
			st.ExitCode = &code
			if code == 0 {
				st.State = Completed
			} else {
				st.State = Failed
			}
			return st
		}
	}

	if j.PID > 0 && alive(j.PID) {
		st.State = Running
		return st
	}
	if j.PID > 0 {
		st.State = Failed
		return st
	}
	st.State = j.State
	return st
}

// Terminate signals a running background job's process group
func (p *FileProber) Terminate(j Job) error {
	if j.PID <= 0 {
		return nil
	}
	return terminate(j.PID)
}

func readTail(path string, limit int64) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() > limit {
		if _, err := f.Seek(-limit, io.SeekEnd); err != nil {
			return ""
		}
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return ""
	}
	return string(data)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
