// Package sentinel implements the prompt marker used to detect command completion.
//
// On initialization the shell prompt is replaced by a line that carries a
// session-random token, the exit status of the last command, the pid of the
// last background job and the working directory:
//
//	###RT_<token>_BEGIN###<exit>;<pid>;<cwd>###RT_<token>_END###
//
// The marker is the only completion signal. Command output is never inspected
// for "looks done" cues. Scan is the single parsing entry point: it takes the
// raw bytes read since the last scan and returns the optional marker payload,
// the cleaned content that preceded it and whatever followed it.
//
// Example Usage:
//
//	p := sentinel.New()
//	transport.Write([]byte(p.PromptCommand() + "\n"))
//
//	res := p.Scan(raw)
//	if res.Marker != nil {
//	    fmt.Println(res.Content, res.Marker.ExitCode, res.Marker.Cwd)
//	}
package sentinel
