//go:build unix && !linux

package platform

func kernelToNice(raw int) int {
	return raw
}
