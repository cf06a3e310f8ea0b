package types

// Action kinds accepted by /execute_action
const (
	ActionRun        = "run"
	ActionRead       = "read"
	ActionWrite      = "write"
	ActionEdit       = "edit"
	ActionRunIPython = "run_ipython"
)

// ActionRequest is the body of /execute_action
type ActionRequest struct {
	Action Action `json:"action" binding:"required"`
}

// Action names a kind and carries its arguments
type Action struct {
	Action string     `json:"action" binding:"required"`
	Args   ActionArgs `json:"args"`
}

// ActionArgs is the union of the arguments of every action kind.
// Command is the shell text for run and the edit command for edit.
type ActionArgs struct {
	Command  string   `json:"command,omitempty"`
	Thought  string   `json:"thought,omitempty"`
	IsInput  bool     `json:"is_input,omitempty"`
	Blocking *bool    `json:"blocking,omitempty"`
	IsStatic bool     `json:"is_static,omitempty"`
	Hidden   bool     `json:"hidden,omitempty"`
	Cwd      string   `json:"cwd,omitempty"`
	Timeout  *float64 `json:"timeout,omitempty"` // seconds

	Path    string `json:"path,omitempty"`
	Start   int    `json:"start,omitempty"`
	End     int    `json:"end,omitempty"`
	Format  bool   `json:"format,omitempty"`
	Content string `json:"content,omitempty"`
	OldStr  string `json:"old_str,omitempty"`
	NewStr  string `json:"new_str,omitempty"`
}

// ListFilesRequest is the body of /list_files
type ListFilesRequest struct {
	Path    string `json:"path"`
	Pattern string `json:"pattern,omitempty"`
}
