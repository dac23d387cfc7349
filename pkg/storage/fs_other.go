//go:build !linux

package storage

import "time"

// IsFatFamily reports whether path lives on a FAT or exFAT filesystem.
// Detection is only implemented on Linux.
func IsFatFamily(path string) bool {
	return false
}

func birthTime(path string) (time.Time, bool) {
	return time.Time{}, false
}
