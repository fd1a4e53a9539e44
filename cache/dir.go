package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExt is the file extension for rendered entries.
const DefaultExt = "png"

// partSuffix marks an in-progress reservation. Such files are never hits.
const partSuffix = ".part"

// Dir is a flat directory of <key>.<ext> files.
//
// There is no in-memory index: every lookup is a filesystem check. Entries
// live until removed; there is no expiry and no size bound.
type Dir struct {
	root string
	ext  string
}

// NewDir creates the cache rooted at root, creating the directory if absent.
// If ext is empty, DefaultExt is used.
func NewDir(root, ext string) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ErrEmptyRoot
	}
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = DefaultExt
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating directory: %w", err)
	}
	return &Dir{root: root, ext: ext}, nil
}

// Root returns the cache directory.
func (d *Dir) Root() string {
	return d.root
}

// Ext returns the entry file extension without the dot.
func (d *Dir) Ext() string {
	return d.ext
}

// Path returns <root>/<key>.<ext>.
func (d *Dir) Path(key string) string {
	return filepath.Join(d.root, key+"."+d.ext)
}

// Exists reports whether a regular file is stored for key.
func (d *Dir) Exists(_ context.Context, key string) bool {
	if ValidateKey(key) != nil {
		return false
	}
	info, err := os.Stat(d.Path(key))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Open opens the entry for key.
func (d *Dir) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(d.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cache: opening entry: %w", err)
	}
	return f, nil
}

// Reserve opens a write handle for key. The entry becomes visible at Path
// only after Commit.
func (d *Dir) Reserve(_ context.Context, key string) (*Reservation, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	final := d.Path(key)
	part := final + partSuffix
	f, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cache: reserving entry: %w", err)
	}
	return &Reservation{
		key:   key,
		final: final,
		part:  part,
		file:  f,
	}, nil
}

// Remove deletes the entry for key. A missing entry is not an error.
func (d *Dir) Remove(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return removeIfExists(d.Path(key))
}

// Stats describes the cache directory contents.
type Stats struct {
	Dir        string `json:"dir"`
	Entries    int    `json:"entries"`
	TotalBytes int64  `json:"totalBytes"`
	Partial    int    `json:"partial"`
}

// Stats walks the cache directory and counts entries.
func (d *Dir) Stats() (Stats, error) {
	stats := Stats{Dir: d.root}
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stats, nil
		}
		return stats, fmt.Errorf("cache: reading directory: %w", err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, partSuffix) {
			stats.Partial++
			continue
		}
		if filepath.Ext(name) != "."+d.ext {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.TotalBytes += info.Size()
	}
	return stats, nil
}

// Clear removes every entry and leftover reservation. It is an operator
// action; nothing on the command path calls it.
func (d *Dir) Clear() (int, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("cache: reading directory: %w", err)
	}
	var removed int
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() {
			continue
		}
		if filepath.Ext(name) != "."+d.ext && !strings.HasSuffix(name, partSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(d.root, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("cache: removing %s: %w", filepath.Base(path), err)
}

// Ensure Dir implements Store
var _ Store = (*Dir)(nil)
