package session

import (
	"fmt"
	"strconv"
	"time"
)

// ExitRunning is the exit code reported while a command is still running
const ExitRunning = -1

// TimeoutMessage tells the caller how to continue with a command that is still running
const TimeoutMessage = "You may wait longer to see additional output by sending empty command '', " +
	"send other commands to interact with the current process, " +
	`send keys ("C-c", "C-z", "C-d") to interrupt/kill the previous command before sending your new command, ` +
	"or use the timeout parameter in execute_bash for future commands."

const previousOutputPrefix = "[Below is the output of the previous command.]\n"

// Observation is the result of one Execute call
type Observation struct {
	Content  string
	Command  string
	ExitCode int
	Running  bool
	Failed   bool
	Cwd      string
	PID      int
	JobID    int
	Prefix   string
	Suffix   string
	Username string
	Hostname string
	Hidden   bool
	IsStatic bool
}

// Text renders the content with its annotations. Static observations carry
// the bare content.
func (o *Observation) Text() string {
	if o.IsStatic {
		return o.Content
	}
	return o.Prefix + o.Content + o.Suffix
}

func completedSuffix(exitCode int) string {
	return fmt.Sprintf("\n[The command completed with exit code %d.]", exitCode)
}

func hardTimeoutSuffix(d time.Duration) string {
	return fmt.Sprintf("\n[The command timed out after %s seconds. %s]", seconds(d), TimeoutMessage)
}

func softTimeoutSuffix(d time.Duration) string {
	return fmt.Sprintf("\n[The command has no new output after %s seconds. %s]", seconds(d), TimeoutMessage)
}

// detachedTimeoutSuffix is used by backends that cannot poll or interrupt
// a command once its deadline passed
func detachedTimeoutSuffix(d time.Duration) string {
	return fmt.Sprintf("\n[The command timed out after %s seconds and is still running. "+
		"This session cannot poll or interrupt it; reset the session to stop it.]", seconds(d))
}

// seconds renders d in seconds without dropping a fractional part
func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func backgroundMessage(jobID int) string {
	return fmt.Sprintf("Command started as background job %d.", jobID)
}

func asyncSuffix(jobID int) string {
	return fmt.Sprintf("[Command started as job %d. Send an empty command to retrieve its output.]", jobID)
}
