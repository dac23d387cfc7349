// Package scan buffers the traversal results of all distinct roots of a
// comparison run so that each root is read at most once.
package scan

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/sdejongh/dircompare/pkg/models"
)

// PathKey identifies one scan request: a root, its hard filter and the
// symlink policy. Two folder pairs with equal keys share one scan.
type PathKey struct {
	// Root is the absolute directory path with a trailing separator
	Root     string
	Filter   models.NameFilter
	Policy   models.SymlinkPolicy
	FoldCase bool
}

// NewPathKey normalizes root and builds the key
func NewPathKey(root string, filter models.NameFilter, policy models.SymlinkPolicy, foldCase bool) PathKey {
	root = filepath.Clean(root)
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	return PathKey{Root: root, Filter: filter, Policy: policy, FoldCase: foldCase}
}

func (k PathKey) filterKey() string {
	if k.Filter == nil {
		return ""
	}
	return k.Filter.Key()
}

func (k PathKey) comparablePath() string {
	if k.FoldCase {
		return strings.ToLower(k.Root)
	}
	return k.Root
}

// ID is a string form of the key usable as a map key
func (k PathKey) ID() string {
	return string(k.Policy) + "|" + k.comparablePath() + "|" + k.filterKey()
}

// Compare orders keys by symlink policy, then path, then filter
func (k PathKey) Compare(o PathKey) int {
	if d := k.Policy.Rank() - o.Policy.Rank(); d != 0 {
		if d < 0 {
			return -1
		}
		return 1
	}
	if c := strings.Compare(k.comparablePath(), o.comparablePath()); c != 0 {
		return c
	}
	return strings.Compare(k.filterKey(), o.filterKey())
}

// FilterHash is a short fingerprint of the filter for logging
func (k PathKey) FilterHash() string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(k.filterKey()))
}

// String returns the root path
func (k PathKey) String() string {
	return k.Root
}
