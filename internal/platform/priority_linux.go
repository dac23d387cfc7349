//go:build linux

package platform

func kernelToNice(raw int) int {
	return 20 - raw
}
