package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// ErrNotExist matches errors for missing paths of every provider
var ErrNotExist = fs.ErrNotExist

// Local is the DirEntryProvider for the local filesystem
type Local struct{}

// NewLocal creates a new local filesystem provider
func NewLocal() *Local {
	return &Local{}
}

// ListDirectory returns the direct children of path
func (l *Local) ListDirectory(ctx context.Context, path string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory: %w", err)
	}
	defer dir.Close()

	dirEntries, err := dir.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, d := range dirEntries {
		info, err := d.Info()
		if err != nil {
			entries = append(entries, Entry{
				Name: d.Name(),
				Err:  fmt.Errorf("failed to read metadata: %w", err),
			})
			continue
		}
		entries = append(entries, entryFromInfo(d.Name(), info))
	}

	return entries, nil
}

// Lstat returns metadata without following a final symlink
func (l *Local) Lstat(ctx context.Context, path string) (Entry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to stat file: %w", err)
	}
	return entryFromInfo(info.Name(), info), nil
}

// Stat returns metadata following symlinks
func (l *Local) Stat(ctx context.Context, path string) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to stat file: %w", err)
	}
	return entryFromInfo(info.Name(), info), nil
}

// ReadLink returns the raw target of a symlink
func (l *Local) ReadLink(ctx context.Context, path string) (string, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlink: %w", err)
	}
	return target, nil
}

// OpenForRead opens a file for reading
func (l *Local) OpenForRead(ctx context.Context, path string) (ReadStream, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return &localStream{File: file, blockSize: optimalBlockSize(file)}, nil
}

// BirthTime returns the creation time when the platform reports one
func (l *Local) BirthTime(path string) (time.Time, bool) {
	return birthTime(path)
}

type localStream struct {
	*os.File
	blockSize int
}

func (s *localStream) OptimalBlockSize() int {
	return s.blockSize
}

func entryFromInfo(name string, info fs.FileInfo) Entry {
	e := Entry{
		Name:    name,
		ModTime: info.ModTime().Unix(),
	}
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		e.Kind = EntrySymlink
	case info.IsDir():
		e.Kind = EntryDir
	default:
		e.Kind = EntryFile
		e.Size = uint64(info.Size())
	}
	return e
}
