//go:build !unix

package storage

import "os"

func optimalBlockSize(f *os.File) int {
	return DefaultBlockSize
}
