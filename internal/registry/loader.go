// Package registry discovers loadable models by scanning a directory.
// Each entry in the directory (a model file or a per-model subdirectory)
// becomes one registrable model.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"galemind/internal/common/fsutil"
)

// Entry identifies one discoverable model.
type Entry struct {
	// Name is the model identifier derived from the file or directory name.
	Name string
	// Version parsed from a trailing "@version" suffix, if present.
	Version string
	// Path is the absolute location of the model on disk.
	Path string
}

// ScanDir builds model entries from the contents of dir. Files and
// subdirectories both qualify; hidden entries are skipped. A name of the
// form "model@version" carries its version in the suffix.
func ScanDir(dir string) ([]Entry, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	items, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var entries []Entry
	for _, item := range items {
		name := item.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		model, version := splitVersion(name)
		entries = append(entries, Entry{
			Name:    model,
			Version: version,
			Path:    filepath.Join(abs, name),
		})
	}
	return entries, nil
}

func splitVersion(name string) (string, string) {
	if i := strings.LastIndex(name, "@"); i > 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}
