// Package filesystem implements the file actions served next to the shell.
//
// The package is organized into focused files:
//   - basic: read, write and edit
//   - directory: listing with optional glob filtering
//   - metadata: content sniffing and charset decoding
//   - formats: pretty-printing of JSON, YAML and TOML
//   - archives: zip streaming for downloads
//   - view: the HTML file viewer
//
// Relative paths resolve against the session's working directory, so a
// `cd` in the shell moves file actions along with it.
//
// Example Usage:
//
//	fs := filesystem.New(logger)
//	res, err := fs.Read(ctx, cwd, filesystem.ReadRequest{Path: "main.go"})
package filesystem
