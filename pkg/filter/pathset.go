package filter

import (
	"sort"
	"strings"

	"github.com/sdejongh/dircompare/pkg/models"
)

// PathSetFilter excludes an explicit set of items and directory subtrees.
// It is synthesized from the failed reads of a scan.
type PathSetFilter struct {
	items    map[string]struct{}
	dirs     map[string]struct{}
	foldCase bool
}

// NewPathSetFilter excludes the items themselves and the dirs with all
// their descendants. The empty relative path stands for the root.
func NewPathSetFilter(items, dirs []string, foldCase bool) *PathSetFilter {
	f := &PathSetFilter{
		items:    make(map[string]struct{}, len(items)),
		dirs:     make(map[string]struct{}, len(dirs)),
		foldCase: foldCase,
	}
	for _, p := range items {
		f.items[f.norm(p)] = struct{}{}
	}
	for _, p := range dirs {
		f.dirs[f.norm(p)] = struct{}{}
	}
	return f
}

func (f *PathSetFilter) norm(relPath string) string {
	if f.foldCase {
		return strings.ToLower(relPath)
	}
	return relPath
}

func (f *PathSetFilter) excluded(relPath string) bool {
	p := f.norm(relPath)
	if _, ok := f.items[p]; ok {
		return true
	}
	if _, ok := f.dirs[""]; ok {
		return true
	}
	for {
		if _, ok := f.dirs[p]; ok {
			return true
		}
		i := strings.LastIndexByte(p, '/')
		if i < 0 {
			return false
		}
		p = p[:i]
	}
}

// PassFile reports whether relPath is outside the excluded set
func (f *PathSetFilter) PassFile(relPath string) bool {
	return !f.excluded(relPath)
}

// PassDir reports whether relPath is outside the excluded set
func (f *PathSetFilter) PassDir(relPath string) bool {
	return !f.excluded(relPath)
}

// ExcludesSubtree reports whether relDir is an excluded directory subtree
func (f *PathSetFilter) ExcludesSubtree(relDir string) bool {
	p := f.norm(relDir)
	for {
		if _, ok := f.dirs[p]; ok {
			return true
		}
		if p == "" {
			return false
		}
		i := strings.LastIndexByte(p, '/')
		if i < 0 {
			p = ""
		} else {
			p = p[:i]
		}
	}
}

// IsNull reports whether nothing is excluded
func (f *PathSetFilter) IsNull() bool {
	return len(f.items) == 0 && len(f.dirs) == 0
}

// Key returns the sorted excluded paths
func (f *PathSetFilter) Key() string {
	return "items:" + joinSorted(f.items) + "\x00dirs:" + joinSorted(f.dirs)
}

func joinSorted(set map[string]struct{}) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, "\n")
}

// combined passes an object only if every member filter passes it
type combined []models.NameFilter

// Combine returns a filter that requires all given filters to pass.
// Nil members are skipped.
func Combine(filters ...models.NameFilter) models.NameFilter {
	var c combined
	for _, f := range filters {
		if f == nil {
			continue
		}
		if inner, ok := f.(combined); ok {
			c = append(c, inner...)
			continue
		}
		c = append(c, f)
	}
	if len(c) == 1 {
		return c[0]
	}
	return c
}

func (c combined) PassFile(relPath string) bool {
	for _, f := range c {
		if !f.PassFile(relPath) {
			return false
		}
	}
	return true
}

func (c combined) PassDir(relPath string) bool {
	for _, f := range c {
		if !f.PassDir(relPath) {
			return false
		}
	}
	return true
}

func (c combined) ExcludesSubtree(relDir string) bool {
	for _, f := range c {
		if se, ok := f.(SubtreeExcluder); ok && se.ExcludesSubtree(relDir) {
			return true
		}
	}
	return false
}

func (c combined) Key() string {
	keys := make([]string, len(c))
	for i, f := range c {
		keys[i] = f.Key()
	}
	return strings.Join(keys, "\x00&&\x00")
}
