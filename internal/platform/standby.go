package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
)

// PreventStandby keeps the system awake until the returned release
// function is called. It relies on systemd-inhibit on Linux and caffeinate
// on macOS; other systems return ErrUnsupported.
func PreventStandby(ctx context.Context, reason string) (func(), error) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		path, err := exec.LookPath("systemd-inhibit")
		if err != nil {
			return nil, fmt.Errorf("systemd-inhibit: %w", ErrUnsupported)
		}
		cmd = exec.CommandContext(ctx, path,
			"--what=sleep:idle", "--who=dircompare", "--why="+reason, "--mode=block",
			"sleep", "infinity")
	case "darwin":
		cmd = exec.CommandContext(ctx, "caffeinate", "-i", "-w", strconv.Itoa(os.Getpid()))
	default:
		return nil, ErrUnsupported
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", cmd.Path, ErrUnsupported)
		}
		return nil, fmt.Errorf("failed to inhibit standby: %w", err)
	}
	return func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		cmd.Wait()
	}, nil
}
