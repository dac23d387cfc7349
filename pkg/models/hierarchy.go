package models

import "strings"

// NameFilter is the compiled hard filter of a folder pair.
// Relative paths use forward slashes and no leading separator.
type NameFilter interface {
	// PassFile reports whether a file or symlink passes the filter
	PassFile(relPath string) bool

	// PassDir reports whether a directory itself passes the filter
	PassDir(relPath string) bool

	// Key is a canonical representation used to order and compare filters
	Key() string
}

// ObjectKind distinguishes the node types of the merged tree
type ObjectKind uint8

const (
	KindFile ObjectKind = iota
	KindSymlink
	KindDir
)

func (k ObjectKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	case KindDir:
		return "dir"
	default:
		return "unknown"
	}
}

// NodeID indexes a node in a Tree. Issued IDs stay valid for the tree's lifetime.
type NodeID int32

// NoNode is the parent of top-level nodes
const NoNode NodeID = -1

// SideInfo is the per-side state of a tree object
type SideInfo struct {
	Exists    bool
	ShortName string
	Size      uint64
	ModTime   int64
	IsDirLink bool
}

// Node is one file, symlink or directory pair of the merged tree
type Node struct {
	Kind   ObjectKind
	Parent NodeID
	Left   SideInfo
	Right  SideInfo

	// Category is final once categorization has finished
	Category Category

	// Description explains conflicts and metadata differences
	Description string

	// Active is false when the object is excluded from synchronization
	Active bool

	// SyncDir is filled in by the direction resolver
	SyncDir SyncDirection

	children []NodeID
	removed  bool
}

// Name returns the official name: the left short name when present
func (n *Node) Name() string {
	if n.Left.Exists {
		return n.Left.ShortName
	}
	return n.Right.ShortName
}

// BothSides reports whether the object exists on both sides
func (n *Node) BothSides() bool {
	return n.Left.Exists && n.Right.Exists
}

// Removed reports whether the node was pruned from the tree
func (n *Node) Removed() bool {
	return n.removed
}

// Tree is an arena of nodes. Children are referenced by index so that
// IDs handed out during merge remain valid when subtrees are pruned.
type Tree struct {
	nodes []Node
	roots []NodeID
}

// Add inserts n below parent and returns its ID.
// Pointers returned by Node are invalidated by Add.
func (t *Tree) Add(parent NodeID, n Node) NodeID {
	id := NodeID(len(t.nodes))
	n.Parent = parent
	n.children = nil
	n.removed = false
	t.nodes = append(t.nodes, n)
	if parent == NoNode {
		t.roots = append(t.roots, id)
	} else {
		t.nodes[parent].children = append(t.nodes[parent].children, id)
	}
	return id
}

// Node returns the node with the given ID
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// Len returns the number of nodes ever added, including removed ones
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Children returns the live children of id; NoNode yields the top level
func (t *Tree) Children(id NodeID) []NodeID {
	if id == NoNode {
		return t.roots
	}
	return t.nodes[id].children
}

// RelativePath builds the slash separated path of id from official names
func (t *Tree) RelativePath(id NodeID) string {
	var parts []string
	for cur := id; cur != NoNode; cur = t.nodes[cur].Parent {
		parts = append(parts, t.nodes[cur].Name())
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// SidePath builds the slash separated path of id from the short names of
// one side. The object and all its parents must exist on that side.
func (t *Tree) SidePath(id NodeID, left bool) string {
	var parts []string
	for cur := id; cur != NoNode; cur = t.nodes[cur].Parent {
		n := &t.nodes[cur]
		if left {
			parts = append(parts, n.Left.ShortName)
		} else {
			parts = append(parts, n.Right.ShortName)
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// Remove detaches id from its parent and tombstones its whole subtree
func (t *Tree) Remove(id NodeID) {
	parent := t.nodes[id].Parent
	if parent == NoNode {
		t.roots = removeID(t.roots, id)
	} else {
		t.nodes[parent].children = removeID(t.nodes[parent].children, id)
	}
	t.tombstone(id)
}

func (t *Tree) tombstone(id NodeID) {
	n := &t.nodes[id]
	n.removed = true
	for _, child := range n.children {
		t.tombstone(child)
	}
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// Walk visits live nodes depth-first in insertion order.
// Returning false from fn skips the children of that node.
func (t *Tree) Walk(fn func(id NodeID, n *Node) bool) {
	t.walk(t.roots, fn)
}

func (t *Tree) walk(ids []NodeID, fn func(id NodeID, n *Node) bool) {
	for _, id := range ids {
		n := &t.nodes[id]
		if n.removed {
			continue
		}
		if fn(id, n) && n.Kind == KindDir {
			t.walk(n.children, fn)
		}
	}
}

// BaseDirPair is the root of the merged tree of one folder pair
type BaseDirPair struct {
	LeftRoot    string
	RightRoot   string
	LeftExists  bool
	RightExists bool

	Filter            NameFilter
	Variant           CompareVariant
	FileTimeTolerance int64
	// IgnoreTimeShiftMinutes lists whole time shifts treated as equal (e.g. 60 for DST)
	IgnoreTimeShiftMinutes []int

	Tree Tree

	// UndefinedFiles and UndefinedLinks hold both-sides objects awaiting categorization
	UndefinedFiles []NodeID
	UndefinedLinks []NodeID
}

// FolderComparison holds one BaseDirPair per configured folder pair, in configuration order
type FolderComparison []*BaseDirPair
