// Package lock places advisory lock files in compared directories so that
// concurrent runs on the same folders notice each other.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	// LockFileName is created inside every locked directory
	LockFileName = ".dircompare.lock"

	// DefaultStaleTimeout applies to locks of other hosts, whose process cannot be probed
	DefaultStaleTimeout = 30 * time.Minute
)

// ErrLockActive is wrapped by every LockError
var ErrLockActive = errors.New("directory is locked by another process")

// LockInfo is the content of a lock file
type LockInfo struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartTime time.Time `json:"start_time"`
}

// LockError reports a directory held by another live process
type LockError struct {
	Dir    string
	Holder *LockInfo
}

func (e *LockError) Error() string {
	if e.Holder == nil {
		return fmt.Sprintf("cannot lock %s: %v", e.Dir, ErrLockActive)
	}
	return fmt.Sprintf("cannot lock %s: held by PID %d on %s since %s",
		e.Dir, e.Holder.PID, e.Holder.Hostname, e.Holder.StartTime.Format(time.RFC3339))
}

func (e *LockError) Unwrap() error {
	return ErrLockActive
}

// DirLock is an acquired lock on one directory
type DirLock struct {
	dir  string
	path string
	info LockInfo
}

// Options tune lock acquisition
type Options struct {
	StaleTimeout time.Duration
}

// Acquire creates the lock file in dir. A lock left behind by a dead
// process, or by another host for longer than the stale timeout, is taken over.
func Acquire(dir string, opts Options) (*DirLock, error) {
	if opts.StaleTimeout <= 0 {
		opts.StaleTimeout = DefaultStaleTimeout
	}
	hostname, _ := os.Hostname()
	l := &DirLock{
		dir:  dir,
		path: filepath.Join(dir, LockFileName),
		info: LockInfo{
			ID:        uuid.NewString(),
			PID:       os.Getpid(),
			Hostname:  hostname,
			StartTime: time.Now().UTC(),
		},
	}

	err := l.create()
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("failed to create lock file in %s: %w", dir, err)
	}

	holder, readErr := readLockInfo(l.path)
	if readErr != nil {
		// unreadable lock files are treated as held
		return nil, &LockError{Dir: dir}
	}
	if !isStale(holder, hostname, opts.StaleTimeout) {
		return nil, &LockError{Dir: dir, Holder: holder}
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale lock in %s: %w", dir, err)
	}
	if err := l.create(); err != nil {
		if errors.Is(err, os.ErrExist) {
			holder, _ := readLockInfo(l.path)
			return nil, &LockError{Dir: dir, Holder: holder}
		}
		return nil, fmt.Errorf("failed to create lock file in %s: %w", dir, err)
	}
	return l, nil
}

func (l *DirLock) create() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l.info); err != nil {
		f.Close()
		os.Remove(l.path)
		return err
	}
	return f.Close()
}

// Dir returns the locked directory
func (l *DirLock) Dir() string {
	return l.dir
}

// Info returns the content written to the lock file
func (l *DirLock) Info() LockInfo {
	return l.info
}

// Release removes the lock file if it still belongs to l
func (l *DirLock) Release() error {
	holder, err := readLockInfo(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if holder.ID != l.info.ID {
		return fmt.Errorf("lock in %s was taken over by PID %d on %s", l.dir, holder.PID, holder.Hostname)
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func readLockInfo(path string) (*LockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid lock file format: %w", err)
	}
	return &info, nil
}

func isStale(info *LockInfo, hostname string, timeout time.Duration) bool {
	if info.Hostname == hostname {
		return !processExists(info.PID)
	}
	return time.Since(info.StartTime) > timeout
}

// Set holds the locks of one comparison run
type Set struct {
	locks []*DirLock
}

// AcquireAll locks every distinct directory of dirs. Directories that
// cannot be locked are skipped; their errors are returned for reporting.
func AcquireAll(dirs []string, opts Options) (*Set, []error) {
	s := &Set{}
	var errs []error
	seen := make(map[string]bool)
	for _, dir := range dirs {
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true
		l, err := Acquire(dir, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.locks = append(s.locks, l)
	}
	return s, errs
}

// Len returns the number of held locks
func (s *Set) Len() int {
	return len(s.locks)
}

// Release releases all locks in reverse acquisition order
func (s *Set) Release() error {
	var errs []error
	for i := len(s.locks) - 1; i >= 0; i-- {
		if err := s.locks[i].Release(); err != nil {
			errs = append(errs, err)
		}
	}
	s.locks = nil
	return errors.Join(errs...)
}
