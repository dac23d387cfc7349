//go:build unix

package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// backgroundNice is the niceness used while lowering priority
const backgroundNice = 10

// LowerPriority reduces the scheduling priority of the process. The
// returned function restores the previous value.
func LowerPriority() (func() error, error) {
	// Getpriority returns 20 - nice on Linux
	raw, err := unix.Getpriority(unix.PRIO_PROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read process priority: %w", err)
	}
	previous := kernelToNice(raw)
	if previous >= backgroundNice {
		return func() error { return nil }, nil
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, backgroundNice); err != nil {
		return nil, fmt.Errorf("failed to lower process priority: %w", err)
	}
	return func() error {
		// raising priority again usually needs privileges
		if err := unix.Setpriority(unix.PRIO_PROCESS, 0, previous); err != nil {
			return fmt.Errorf("failed to restore process priority: %w", err)
		}
		return nil
	}, nil
}
