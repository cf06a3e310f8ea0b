package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

// Archive streams a zip of a file or directory to w.
// Directory entries are stored relative to the directory's parent.
func (f *FS) Archive(ctx context.Context, cwd, path string, w io.Writer) error {
	root := Resolve(cwd, path)
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	base := filepath.Dir(root)
	paths := []string{root}
	if info.IsDir() {
		if paths, err = collect(ctx, root); err != nil {
			return err
		}
	}

	zw := zip.NewWriter(w)
	files := 0
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}
		if err := addEntry(zw, base, p); err != nil {
			zw.Close()
			return err
		}
		files++
	}
	if err := zw.Close(); err != nil {
		return err
	}

	f.logger.Debug("Archive written", zap.String("path", root), zap.Int("entries", files))
	return nil
}

// collect walks root concurrently and returns its paths in a stable order
func collect(ctx context.Context, root string) ([]string, error) {
	var (
		mu    sync.Mutex
		paths []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}
		mu.Lock()
		paths = append(paths, p)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func addEntry(zw *zip.Writer, base, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return nil
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return nil
	}

	rel, err := filepath.Rel(base, path)
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(rel)
	if info.IsDir() {
		header.Name += "/"
		_, err := zw.CreateHeader(header)
		return err
	}
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(dst, src)
	return err
}
