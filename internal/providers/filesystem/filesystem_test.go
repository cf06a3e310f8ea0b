package filesystem

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	fs := New(nil)
	ctx := context.Background()
	writeFile(t, dir, "notes.txt", "one\ntwo\nthree\n")

	t.Run("relative to cwd", func(t *testing.T) {
		res, err := fs.Read(ctx, dir, ReadRequest{Path: "notes.txt"})
		require.NoError(t, err)
		assert.Equal(t, "one\ntwo\nthree\n", res.Content)
		assert.Equal(t, filepath.Join(dir, "notes.txt"), res.Path)
		assert.Equal(t, "utf-8", res.Encoding)
	})

	t.Run("line range", func(t *testing.T) {
		res, err := fs.Read(ctx, dir, ReadRequest{Path: "notes.txt", Start: 1, End: 2})
		require.NoError(t, err)
		assert.Equal(t, "two\n", res.Content)

		res, err = fs.Read(ctx, dir, ReadRequest{Path: "notes.txt", Start: 1, End: -1})
		require.NoError(t, err)
		assert.Equal(t, "two\nthree\n", res.Content)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := fs.Read(ctx, dir, ReadRequest{Path: "nope.txt"})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t,
			"File not found: nope.txt. Your current working directory is "+dir+".",
			Describe("reading", "nope.txt", dir, err))
	})

	t.Run("directory", func(t *testing.T) {
		_, err := fs.Read(ctx, dir, ReadRequest{Path: dir})
		assert.ErrorIs(t, err, ErrIsDirectory)
		assert.Equal(t, "Path is a directory: "+dir+". You can only read files", Describe("reading", dir, dir, err))
	})

	t.Run("unexpected error", func(t *testing.T) {
		err := errors.New("permission denied")
		assert.Equal(t, "Error writing file /x: permission denied", Describe("writing", "/x", dir, err))
		assert.Equal(t, "File not found: /x", Describe("editing", "/x", "", ErrNotFound))
	})

	t.Run("binary", func(t *testing.T) {
		writeFile(t, dir, "pixel.png", string(pngHeader))
		_, err := fs.Read(ctx, dir, ReadRequest{Path: "pixel.png"})
		assert.ErrorIs(t, err, ErrBinary)
	})

	t.Run("legacy encoding", func(t *testing.T) {
		latin := bytes.Repeat([]byte("caf\xe9 cr\xe8me br\xfbl\xe9e \xe0 la fran\xe7aise, d\xe9j\xe0 vu. "), 8)
		writeFile(t, dir, "latin.txt", string(latin))
		res, err := fs.Read(ctx, dir, ReadRequest{Path: "latin.txt"})
		require.NoError(t, err)
		assert.True(t, utf8.ValidString(res.Content))
		assert.NotEqual(t, "utf-8", res.Encoding)
	})

	t.Run("format", func(t *testing.T) {
		writeFile(t, dir, "data.json", `{"b":1,"a":[1,2]}`)
		res, err := fs.Read(ctx, dir, ReadRequest{Path: "data.json", Format: true})
		require.NoError(t, err)
		assert.Contains(t, res.Content, "\n  \"a\": [")
	})
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	fs := New(nil)

	path, err := fs.Write(context.Background(), dir, "a/b/c.txt", "hello")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a", "b", "c.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = fs.Write(context.Background(), dir, "a", "x")
	assert.ErrorIs(t, err, ErrIsDirectory)
}

func TestEdit(t *testing.T) {
	dir := t.TempDir()
	fs := New(nil)
	ctx := context.Background()
	path := writeFile(t, dir, "main.go", "package main\n\nfunc a() {}\nfunc b() {}\n")

	res, err := fs.Edit(ctx, dir, "main.go", "str_replace", "func a() {}", "func alpha() {}")
	require.NoError(t, err)
	assert.Equal(t, "func a() {}", res.OldContent)
	assert.Equal(t, "func alpha() {}", res.NewContent)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nfunc alpha() {}\nfunc b() {}\n", string(data))

	_, err = fs.Edit(ctx, dir, "main.go", "str_replace", "func zz()", "x")
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = fs.Edit(ctx, dir, "main.go", "str_replace", "func ", "x")
	assert.ErrorIs(t, err, ErrMultipleMatches)

	_, err = fs.Edit(ctx, dir, "main.go", "insert", "a", "b")
	assert.ErrorIs(t, err, ErrUnsupportedCommand)

	_, err = fs.Edit(ctx, dir, "gone.go", "str_replace", "a", "b")
	assert.ErrorIs(t, err, ErrNotFound)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nfunc alpha() {}\nfunc b() {}\n", string(data))
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	fs := New(nil)
	ctx := context.Background()
	writeFile(t, dir, "b.txt", "b")
	writeFile(t, dir, "a.txt", "a")
	writeFile(t, dir, "pkg/x.go", "package pkg")
	writeFile(t, dir, "pkg/sub/y.go", "package sub")

	entries, err := fs.List(ctx, dir, ".", "")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "pkg", entries[0].Name)
	assert.True(t, entries[0].IsDir)
	assert.Equal(t, "a.txt", entries[1].Name)
	assert.Equal(t, "b.txt", entries[2].Name)

	matches, err := fs.List(ctx, dir, ".", "**/*.go")
	require.NoError(t, err)
	var names []string
	for _, m := range matches {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{"pkg/x.go", "pkg/sub/y.go"}, names)

	_, err = fs.List(ctx, dir, "a.txt", "")
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = fs.List(ctx, dir, "missing", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchive(t *testing.T) {
	dir := t.TempDir()
	fs := New(nil)
	writeFile(t, dir, "proj/readme.md", "# proj")
	writeFile(t, dir, "proj/src/main.go", "package main")

	var buf bytes.Buffer
	require.NoError(t, fs.Archive(context.Background(), dir, "proj", &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	contents := map[string]string{}
	for _, file := range zr.File {
		if file.FileInfo().IsDir() {
			continue
		}
		rc, err := file.Open()
		require.NoError(t, err)
		var b bytes.Buffer
		_, err = b.ReadFrom(rc)
		rc.Close()
		require.NoError(t, err)
		contents[file.Name] = b.String()
	}
	assert.Equal(t, map[string]string{
		"proj/readme.md":   "# proj",
		"proj/src/main.go": "package main",
	}, contents)

	assert.ErrorIs(t, fs.Archive(context.Background(), dir, "nothing", &buf), ErrNotFound)
}

func TestView(t *testing.T) {
	dir := t.TempDir()
	fs := New(nil)

	_, err := fs.View("relative.txt")
	assert.ErrorIs(t, err, ErrNotAbsolute)

	_, err = fs.View(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fs.View(dir)
	assert.ErrorIs(t, err, ErrIsDirectory)

	_, err = fs.View(writeFile(t, dir, "tool.exe", "MZ"))
	assert.ErrorIs(t, err, ErrUnsupportedView)

	page, err := fs.View(writeFile(t, dir, "pixel.png", string(pngHeader)))
	require.NoError(t, err)
	assert.Contains(t, string(page), "fileBase64")
	assert.Contains(t, string(page), "<img")

	page, err = fs.View(writeFile(t, dir, "doc.pdf", "%PDF-1.4\n%%EOF\n"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "pdf.min.js")
	assert.Contains(t, string(page), "fileBase64")

	page, err = fs.View(writeFile(t, dir, "page.html",
		`<html><head><title>Report</title></head><body><p>ok</p><script>alert(1)</script></body></html>`))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Report</title>")
	assert.Contains(t, string(page), "<p>ok</p>")
	assert.NotContains(t, string(page), "alert(1)")

	page, err = fs.View(writeFile(t, dir, "note.txt", "<b>bold</b>"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "&lt;b&gt;bold&lt;/b&gt;")
}

func TestFormat(t *testing.T) {
	out, ok := Format(".yaml", "a:   1\nb: [1, 2]\n")
	require.True(t, ok)
	assert.Contains(t, out, "a: 1")

	out, ok = Format(".toml", "[server]\nport=8000\n")
	require.True(t, ok)
	assert.Contains(t, out, "port = 8000")

	_, ok = Format(".json", "{not json")
	assert.False(t, ok)

	_, ok = Format(".txt", "plain")
	assert.False(t, ok)
}
