package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"sort"
)

// List returns the entries of a directory, directories first.
// A non-empty pattern switches to a recursive glob below the directory.
func (f *FS) List(ctx context.Context, cwd, path, pattern string) ([]FileInfo, error) {
	dir := Resolve(cwd, path)
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrNotDirectory
	}

	if pattern != "" {
		return f.glob(ctx, dir, pattern)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, toFileInfo(filepath.Join(dir, entry.Name()), entry.Name(), fi))
	}
	sortEntries(files)
	return files, nil
}

func toFileInfo(path, name string, fi os.FileInfo) FileInfo {
	return FileInfo{
		Name:     name,
		Path:     path,
		Size:     fi.Size(),
		IsDir:    fi.IsDir(),
		Mode:     fi.Mode().String(),
		Modified: fi.ModTime(),
	}
}

func sortEntries(files []FileInfo) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].IsDir != files[j].IsDir {
			return files[i].IsDir
		}
		return files[i].Name < files[j].Name
	})
}
