package lock

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeLock(t *testing.T, dir string, info LockInfo) {
	t.Helper()
	data, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("failed to marshal lock info: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, LockFileName), data, 0644); err != nil {
		t.Fatalf("failed to write lock file: %v", err)
	}
}

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir, Options{})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	holder, err := readLockInfo(filepath.Join(dir, LockFileName))
	if err != nil {
		t.Fatalf("lock file not readable: %v", err)
	}
	if holder.ID != l.Info().ID || holder.PID != os.Getpid() {
		t.Errorf("lock file = %+v, want %+v", holder, l.Info())
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); !os.IsNotExist(err) {
		t.Error("lock file still exists after release")
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}

func TestAcquireHeld(t *testing.T) {
	dir := t.TempDir()
	first, err := Acquire(dir, Options{})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer first.Release()

	_, err = Acquire(dir, Options{})
	if !errors.Is(err, ErrLockActive) {
		t.Fatalf("Acquire() error = %v, want ErrLockActive", err)
	}
	var lockErr *LockError
	if !errors.As(err, &lockErr) || lockErr.Holder == nil {
		t.Fatalf("error should be a LockError with holder, got %v", err)
	}
	if lockErr.Holder.ID != first.Info().ID {
		t.Errorf("Holder.ID = %s, want %s", lockErr.Holder.ID, first.Info().ID)
	}
}

func TestAcquireStale(t *testing.T) {
	hostname, _ := os.Hostname()

	tests := []struct {
		name     string
		info     LockInfo
		takeOver bool
	}{
		{"DeadProcess", LockInfo{ID: "x", PID: 1 << 30, Hostname: hostname, StartTime: time.Now()}, true},
		{"LiveProcess", LockInfo{ID: "x", PID: os.Getpid(), Hostname: hostname, StartTime: time.Now()}, false},
		{"OtherHostRecent", LockInfo{ID: "x", PID: 1, Hostname: "elsewhere", StartTime: time.Now()}, false},
		{"OtherHostExpired", LockInfo{ID: "x", PID: 1, Hostname: "elsewhere", StartTime: time.Now().Add(-time.Hour)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeLock(t, dir, tt.info)

			l, err := Acquire(dir, Options{StaleTimeout: 30 * time.Minute})
			if tt.takeOver {
				if err != nil {
					t.Fatalf("Acquire() error = %v, want stale lock taken over", err)
				}
				l.Release()
				return
			}
			if !errors.Is(err, ErrLockActive) {
				t.Errorf("Acquire() error = %v, want ErrLockActive", err)
			}
		})
	}
}

func TestAcquireCorruptLockFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, LockFileName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Acquire(dir, Options{}); !errors.Is(err, ErrLockActive) {
		t.Errorf("Acquire() error = %v, want ErrLockActive", err)
	}
}

func TestReleaseAfterTakeOver(t *testing.T) {
	dir := t.TempDir()
	l, err := Acquire(dir, Options{})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	writeLock(t, dir, LockInfo{ID: "other", PID: 42, Hostname: "elsewhere", StartTime: time.Now()})

	if err := l.Release(); err == nil {
		t.Error("Release() should fail when the lock belongs to someone else")
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); err != nil {
		t.Error("foreign lock file must not be removed")
	}
}

func TestAcquireAll(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	missing := filepath.Join(a, "missing")

	set, errs := AcquireAll([]string{a, b, a, "", missing}, Options{})
	if set.Len() != 2 {
		t.Errorf("Len() = %d, want 2", set.Len())
	}
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want one for the missing directory", errs)
	}
	if errors.Is(errs[0], ErrLockActive) {
		t.Errorf("missing directory should not report an active lock: %v", errs[0])
	}

	if err := set.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	for _, dir := range []string{a, b} {
		if _, err := os.Stat(filepath.Join(dir, LockFileName)); !os.IsNotExist(err) {
			t.Errorf("lock in %s not released", dir)
		}
	}
}
