package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ReadRequest selects a file and an optional line window
type ReadRequest struct {
	Path   string
	Start  int  // first line, 0-based
	End    int  // line after the last one; -1 or 0 reads to the end
	Format bool // pretty-print JSON, YAML and TOML
}

// ReadResult is a decoded text file
type ReadResult struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	MimeType string `json:"mime_type"`
	Encoding string `json:"encoding"`
}

// Read loads a text file, decoding it to UTF-8
func (f *FS) Read(ctx context.Context, cwd string, req ReadRequest) (*ReadResult, error) {
	path := Resolve(cwd, req.Path)
	if _, err := statFile(path); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, f.maxRead))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kind := sniff(data)
	if !kind.text {
		return nil, fmt.Errorf("%w: %s", ErrBinary, kind.mime)
	}

	content, encoding, err := decode(data)
	if err != nil {
		return nil, err
	}

	if req.Format {
		if pretty, ok := Format(filepath.Ext(path), content); ok {
			content = pretty
		}
	}

	return &ReadResult{
		Path:     path,
		Content:  selectLines(content, req.Start, req.End),
		MimeType: kind.mime,
		Encoding: encoding,
	}, nil
}

func selectLines(content string, start, end int) string {
	if start <= 0 && end <= 0 {
		return content
	}
	lines := strings.SplitAfter(content, "\n")
	if start < 0 {
		start = 0
	}
	if start > len(lines) {
		start = len(lines)
	}
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if end < start {
		end = start
	}
	return strings.Join(lines[start:end], "")
}

// Write replaces a file's content, creating parent directories
func (f *FS) Write(ctx context.Context, cwd, path, content string) (string, error) {
	full := Resolve(cwd, path)
	if info, err := os.Stat(full); err == nil && info.IsDir() {
		return full, ErrIsDirectory
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return full, err
	}
	if err := ctx.Err(); err != nil {
		return full, err
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return full, err
	}

	f.logger.Debug("File written", zap.String("path", full), zap.Int("bytes", len(content)))
	return full, nil
}

// EditResult describes a replacement
type EditResult struct {
	Path       string `json:"path"`
	OldContent string `json:"old_content"`
	NewContent string `json:"new_content"`
}

// Edit applies a str_replace. old must occur exactly once.
func (f *FS) Edit(ctx context.Context, cwd, path, command, old, replacement string) (*EditResult, error) {
	full := Resolve(cwd, path)
	if command != "str_replace" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCommand, command)
	}
	info, err := statFile(full)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	text := string(data)

	switch n := strings.Count(text, old); {
	case old == "" || n == 0:
		return nil, ErrNoMatch
	case n > 1:
		return nil, fmt.Errorf("%w: %d occurrences", ErrMultipleMatches, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	updated := strings.Replace(text, old, replacement, 1)
	if err := os.WriteFile(full, []byte(updated), info.Mode().Perm()); err != nil {
		return nil, err
	}

	f.logger.Debug("File edited", zap.String("path", full))
	return &EditResult{Path: full, OldContent: old, NewContent: replacement}, nil
}
