//go:build !unix

package platform

// LowerPriority is not available on this platform
func LowerPriority() (func() error, error) {
	return nil, ErrUnsupported
}
