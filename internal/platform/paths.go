package platform

import (
	"errors"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrUnsupported is returned by features the current platform lacks
var ErrUnsupported = errors.New("not supported on this platform")

// CaseInsensitive reports whether file names on this platform ignore case
func CaseInsensitive() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

// NormalizeDir cleans a resolved directory name. Empty input stays empty.
func NormalizeDir(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	normalized := filepath.Clean(path)

	// filepath.Clean collapses the leading double separator of UNC paths
	if IsUNCPath(path) && !IsUNCPath(normalized) {
		normalized = string(filepath.Separator) + normalized
	}
	return normalized
}

// IsUNCPath checks if a path is a UNC path (Windows network share)
func IsUNCPath(path string) bool {
	if runtime.GOOS != "windows" {
		return false
	}
	return strings.HasPrefix(path, "\\\\") || strings.HasPrefix(path, "//")
}

// IsDependent reports whether one of the directories contains the other.
// Comparing such a pair would scan the inner folder twice.
func IsDependent(a, b string, foldCase bool) bool {
	if a == "" || b == "" {
		return false
	}
	a = withSeparator(NormalizeDir(a))
	b = withSeparator(NormalizeDir(b))
	if foldCase {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

func withSeparator(path string) string {
	if strings.HasSuffix(path, string(filepath.Separator)) {
		return path
	}
	return path + string(filepath.Separator)
}

// ValidatePath checks if a path is valid for the current platform
func ValidatePath(path string) error {
	if path == "" {
		return &PathError{Path: path, Message: "path is empty"}
	}

	if runtime.GOOS == "windows" && !IsUNCPath(path) {
		rest := path
		if len(rest) >= 2 && rest[1] == ':' {
			rest = rest[2:]
		}
		for _, char := range []string{"<", ">", ":", "\"", "|", "?", "*"} {
			if strings.Contains(rest, char) {
				return &PathError{Path: path, Message: "path contains invalid character: " + char}
			}
		}
	}

	return nil
}

// PathError represents a path validation error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}
