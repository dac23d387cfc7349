//go:build linux

package storage

import (
	"time"

	"golang.org/x/sys/unix"
)

const (
	msdosSuperMagic = 0x4d44
	exfatSuperMagic = 0x2011bab0
)

// IsFatFamily reports whether path lives on a FAT or exFAT filesystem
func IsFatFamily(path string) bool {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false
	}
	fsType := int64(st.Type)
	return fsType == msdosSuperMagic || fsType == exfatSuperMagic
}

func birthTime(path string) (time.Time, bool) {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME, &stx)
	if err != nil || stx.Mask&unix.STATX_BTIME == 0 {
		return time.Time{}, false
	}
	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec)), true
}
