//go:build unix

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// optimalBlockSize returns st_blksize of the open file
func optimalBlockSize(f *os.File) int {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil || st.Blksize <= 0 {
		return DefaultBlockSize
	}
	return int(st.Blksize)
}
