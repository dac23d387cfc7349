package models

import (
	"sort"
	"strings"
)

// FileAttributes holds the metadata captured for a file during traversal
type FileAttributes struct {
	// ModTime is the last write time in seconds since the Unix epoch (UTC)
	ModTime int64

	// Size in bytes
	Size uint64
}

// SymlinkAttributes holds the metadata captured for a symbolic link
type SymlinkAttributes struct {
	// ModTime is the link's own last write time in seconds since the Unix epoch
	ModTime int64

	// IsDirLink is set when the link points to a directory
	IsDirLink bool

	// Target is the raw link content
	Target string
}

// FileEntry is a named file inside a DirContainer
type FileEntry struct {
	Name string
	Attr FileAttributes
}

// LinkEntry is a named symlink inside a DirContainer
type LinkEntry struct {
	Name string
	Attr SymlinkAttributes
}

// DirEntry is a named subdirectory inside a DirContainer
type DirEntry struct {
	Name string
	Sub  *DirContainer
}

// DirContainer is the scanned content of one directory.
// Each slice is kept ordered by the NameCompare used to build it so two
// containers can be merged with a linear scan.
type DirContainer struct {
	Files []FileEntry
	Links []LinkEntry
	Dirs  []DirEntry
}

// NewDirContainer creates an empty container
func NewDirContainer() *DirContainer {
	return &DirContainer{}
}

// AddFile appends a file entry
func (c *DirContainer) AddFile(name string, attr FileAttributes) {
	c.Files = append(c.Files, FileEntry{Name: name, Attr: attr})
}

// AddLink appends a symlink entry
func (c *DirContainer) AddLink(name string, attr SymlinkAttributes) {
	c.Links = append(c.Links, LinkEntry{Name: name, Attr: attr})
}

// AddDir appends a subdirectory and returns its container
func (c *DirContainer) AddDir(name string) *DirContainer {
	sub := NewDirContainer()
	c.Dirs = append(c.Dirs, DirEntry{Name: name, Sub: sub})
	return sub
}

// Sort orders all three entry lists of c and its descendants
func (c *DirContainer) Sort(cmp NameCompare) {
	sort.SliceStable(c.Files, func(i, j int) bool { return cmp(c.Files[i].Name, c.Files[j].Name) < 0 })
	sort.SliceStable(c.Links, func(i, j int) bool { return cmp(c.Links[i].Name, c.Links[j].Name) < 0 })
	sort.SliceStable(c.Dirs, func(i, j int) bool { return cmp(c.Dirs[i].Name, c.Dirs[j].Name) < 0 })
	for _, d := range c.Dirs {
		d.Sub.Sort(cmp)
	}
}

// IsEmpty reports whether the container holds no entries
func (c *DirContainer) IsEmpty() bool {
	return len(c.Files) == 0 && len(c.Links) == 0 && len(c.Dirs) == 0
}

// Counts returns the number of files, links and directories in the whole subtree
func (c *DirContainer) Counts() (files, links, dirs int) {
	files, links, dirs = len(c.Files), len(c.Links), len(c.Dirs)
	for _, d := range c.Dirs {
		f, l, s := d.Sub.Counts()
		files += f
		links += l
		dirs += s
	}
	return files, links, dirs
}

// NameCompare is a total order over short names
type NameCompare func(a, b string) int

// CompareNamesExact orders names byte-wise
func CompareNamesExact(a, b string) int {
	return strings.Compare(a, b)
}

// CompareNamesFold orders names ignoring case
func CompareNamesFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// NameComparer returns the order matching the given case rules
func NameComparer(foldCase bool) NameCompare {
	if foldCase {
		return CompareNamesFold
	}
	return CompareNamesExact
}

// ScanResult is the outcome of traversing one PathKey
type ScanResult struct {
	Tree *DirContainer

	// FailedDirReads maps relative directory paths that could not be listed to the error text
	FailedDirReads map[string]string

	// FailedItemReads maps relative item paths whose metadata could not be read to the error text
	FailedItemReads map[string]string
}

// NewScanResult creates an empty result
func NewScanResult() *ScanResult {
	return &ScanResult{
		Tree:            NewDirContainer(),
		FailedDirReads:  make(map[string]string),
		FailedItemReads: make(map[string]string),
	}
}

// JoinRelPath joins slash separated relative path elements
func JoinRelPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
