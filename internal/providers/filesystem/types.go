package filesystem

import (
	"errors"
	"fmt"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

var (
	ErrNotFound           = errors.New("file not found")
	ErrIsDirectory        = errors.New("path is a directory")
	ErrNotDirectory       = errors.New("path is not a directory")
	ErrBinary             = errors.New("file is binary")
	ErrNotAbsolute        = errors.New("path must be absolute")
	ErrNoMatch            = errors.New("old_str not found")
	ErrMultipleMatches    = errors.New("old_str is not unique")
	ErrUnsupportedCommand = errors.New("unsupported edit command")
	ErrUnsupportedView    = errors.New("unsupported file extension")
)

// DefaultMaxReadBytes caps how much of a file Read loads
const DefaultMaxReadBytes = 10 * 1024 * 1024

// FileInfo represents one directory entry
type FileInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	IsDir    bool      `json:"is_dir"`
	Mode     string    `json:"mode"`
	Modified time.Time `json:"modified"`
}

// FS serves file actions for one server
type FS struct {
	logger    *zap.Logger
	maxRead   int64
	sanitizer *bluemonday.Policy
}

// New creates the file action service
func New(logger *zap.Logger) *FS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FS{
		logger:    logger,
		maxRead:   DefaultMaxReadBytes,
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// Describe renders a file action error as observation content. op names
// the failed step ("reading", "writing", "editing") for unexpected errors.
func Describe(op, path, cwd string, err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		if cwd != "" {
			return fmt.Sprintf("File not found: %s. Your current working directory is %s.", path, cwd)
		}
		return fmt.Sprintf("File not found: %s", path)
	case errors.Is(err, ErrIsDirectory):
		return fmt.Sprintf("Path is a directory: %s. You can only read files", path)
	case errors.Is(err, ErrBinary):
		return fmt.Sprintf("File %s is binary and cannot be shown as text", path)
	case errors.Is(err, ErrNoMatch):
		return fmt.Sprintf("No replacement was performed, old_str did not appear verbatim in %s.", path)
	case errors.Is(err, ErrMultipleMatches):
		return fmt.Sprintf("No replacement was performed. Multiple occurrences of old_str in %s. Please ensure it is unique.", path)
	default:
		return fmt.Sprintf("Error %s file %s: %v", op, path, err)
	}
}
