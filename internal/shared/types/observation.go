package types

// Observation kinds
const (
	ObservationRun   = "run"
	ObservationRead  = "read"
	ObservationWrite = "write"
	ObservationEdit  = "edit"
	ObservationError = "error"
)

// Observation is the response of /execute_action
type Observation struct {
	Observation string      `json:"observation"`
	Content     string      `json:"content"`
	Extras      interface{} `json:"extras"`
}

// RunExtras accompany a run observation
type RunExtras struct {
	Command  string      `json:"command"`
	ExitCode int         `json:"exit_code"`
	Cwd      string      `json:"cwd"`
	Running  bool        `json:"running"`
	JobID    *int        `json:"job_id,omitempty"`
	Hidden   bool        `json:"hidden"`
	Metadata RunMetadata `json:"metadata"`
}

// RunMetadata mirrors the shell state after a command
type RunMetadata struct {
	ExitCode   int    `json:"exit_code"`
	PID        int    `json:"pid"`
	Username   string `json:"username"`
	Hostname   string `json:"hostname"`
	WorkingDir string `json:"working_dir"`
	Prefix     string `json:"prefix"`
	Suffix     string `json:"suffix"`
}

// FileExtras accompany read, write and edit observations
type FileExtras struct {
	Path       string `json:"path"`
	OldContent string `json:"old_content,omitempty"`
	NewContent string `json:"new_content,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
}

// ErrorExtras accompany an error observation
type ErrorExtras struct {
	ErrorID string `json:"error_id"`
}

// RunObservation is a run observation as decoded by clients
type RunObservation struct {
	Observation string    `json:"observation"`
	Content     string    `json:"content"`
	Extras      RunExtras `json:"extras"`
}
