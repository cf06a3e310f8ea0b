package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
)

// MaxGlobMatches bounds a single glob listing
const MaxGlobMatches = 10000

func (f *FS) glob(ctx context.Context, root, pattern string) ([]FileInfo, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern: %q", pattern)
	}

	var (
		mu      sync.Mutex
		matches []FileInfo
	)
	conf := fastwalk.Config{Follow: false}

	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		if ok, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); !ok {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		if len(matches) < MaxGlobMatches {
			matches = append(matches, toFileInfo(p, rel, fi))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortEntries(matches)
	return matches, nil
}
