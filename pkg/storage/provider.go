package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// EntryKind is the type of a directory entry
type EntryKind uint8

const (
	EntryFile EntryKind = iota
	EntryDir
	EntrySymlink
)

func (k EntryKind) String() string {
	switch k {
	case EntryFile:
		return "file"
	case EntryDir:
		return "dir"
	case EntrySymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Entry is one item of a directory listing
type Entry struct {
	Name    string
	Kind    EntryKind
	Size    uint64
	ModTime int64 // seconds since the Unix epoch (UTC)

	// Err is set when the item was listed but its metadata could not be read
	Err error
}

// ReadStream is a file opened for sequential reading
type ReadStream interface {
	io.ReadCloser

	// OptimalBlockSize is the preferred I/O size reported by the filesystem
	OptimalBlockSize() int
}

// DirEntryProvider is the filesystem boundary used by traversal and comparison.
// Paths are absolute and use the platform separator.
type DirEntryProvider interface {
	// ListDirectory returns the direct children of path without following links
	ListDirectory(ctx context.Context, path string) ([]Entry, error)

	// Lstat returns metadata of path without following a final symlink
	Lstat(ctx context.Context, path string) (Entry, error)

	// Stat returns metadata of path following symlinks
	Stat(ctx context.Context, path string) (Entry, error)

	// ReadLink returns the raw target of a symlink
	ReadLink(ctx context.Context, path string) (string, error)

	// OpenForRead opens a file for reading
	OpenForRead(ctx context.Context, path string) (ReadStream, error)
}

// BirthTimer is implemented by providers that can report creation times
type BirthTimer interface {
	BirthTime(path string) (time.Time, bool)
}

// DefaultBlockSize is used when the filesystem does not report a block size
const DefaultBlockSize = 64 * 1024

var (
	// ErrNotDirectory is returned when a root exists but is not a directory
	ErrNotDirectory = errors.New("path is not a directory")

	// ErrProbeTimeout is returned when a reachability probe does not answer in time
	ErrProbeTimeout = errors.New("directory did not respond in time")
)

// DirExists reports whether path exists and is a directory.
// A missing path is not an error.
func DirExists(ctx context.Context, p DirEntryProvider, path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	e, err := p.Stat(ctx, path)
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if e.Kind != EntryDir {
		return false, ErrNotDirectory
	}
	return true, nil
}

// ProbeDirectory checks reachability of a directory within timeout.
// Used by interactive folder selection; the comparison itself never times out.
func ProbeDirectory(ctx context.Context, p DirEntryProvider, path string, timeout time.Duration) (bool, error) {
	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := DirExists(ctx, p, path)
		done <- result{ok, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.ok, r.err
	case <-timer.C:
		return false, ErrProbeTimeout
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
