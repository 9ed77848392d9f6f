package fs

import (
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPatterns matches the image types the gallery accepts.
var DefaultPatterns = []string{"*.{jpg,jpeg,png,gif,bmp}"}

// Walker lists the image files directly inside a directory. Names are
// matched case-insensitively against the patterns.
type Walker struct {
	patterns []string
}

func NewWalker(patterns []string) *Walker {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &Walker{patterns: lowered}
}

// List returns matching file names sorted lexicographically. A missing
// directory lists as empty.
func (w *Walker) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if w.Allowed(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Allowed reports whether name has an accepted extension.
func (w *Walker) Allowed(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range w.patterns {
		matched, err := doublestar.Match(pattern, lower)
		if err == nil && matched {
			return true
		}
	}
	return false
}
