package evaluate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/emblem-match/internal/imaging"
)

// Entry is one image file of a labeled directory.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Enumerate lists the raster images directly inside dir, ordered by name.
// Subdirectories, hidden files and files without a supported image extension
// are ignored.
func Enumerate(dir string) ([]Entry, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset directory: %w", err)
	}

	var entries []Entry
	for _, item := range items {
		name := item.Name()
		if !item.Type().IsRegular() || strings.HasPrefix(name, ".") || !imaging.IsSupported(name) {
			continue
		}
		entries = append(entries, Entry{Name: name, Path: filepath.Join(dir, name)})
	}
	return entries, nil
}
