package filter

import (
	"github.com/sdejongh/dircompare/pkg/models"
)

// ApplyHardFilter deactivates every object whose relative path fails f and
// then removes inactive directories that have no active descendant. Objects
// are only ever deactivated, so applying the same filter again changes nothing.
func ApplyHardFilter(pair *models.BaseDirPair, f models.NameFilter) {
	if f == nil {
		return
	}
	tree := &pair.Tree
	tree.Walk(func(id models.NodeID, n *models.Node) bool {
		if !n.Active {
			return true
		}
		rel := tree.RelativePath(id)
		switch n.Kind {
		case models.KindDir:
			n.Active = f.PassDir(rel)
		default:
			n.Active = f.PassFile(rel)
		}
		return true
	})
	pruneInactiveDirs(tree, models.NoNode)
}

// pruneInactiveDirs removes inactive directory subtrees without any active
// object and reports whether an active object remains below parent.
func pruneInactiveDirs(tree *models.Tree, parent models.NodeID) bool {
	anyActive := false
	children := append([]models.NodeID(nil), tree.Children(parent)...)
	for _, id := range children {
		if tree.Node(id).Kind != models.KindDir {
			if tree.Node(id).Active {
				anyActive = true
			}
			continue
		}
		liveBelow := pruneInactiveDirs(tree, id)
		if tree.Node(id).Active || liveBelow {
			anyActive = true
			continue
		}
		tree.Remove(id)
	}
	return anyActive
}

// ApplySoftFilter deactivates files and symlinks for which no existing side
// passes sf. Directories are never touched.
func ApplySoftFilter(pair *models.BaseDirPair, sf SoftFilter) {
	if sf.IsNull() {
		return
	}
	pair.Tree.Walk(func(id models.NodeID, n *models.Node) bool {
		if n.Kind == models.KindDir || !n.Active {
			return true
		}
		if !sf.passSide(n.Kind, n.Left) && !sf.passSide(n.Kind, n.Right) {
			n.Active = false
		}
		return true
	})
}

// FailedReadFilter builds the exclusion filter for paths that could not be
// read on either side. It returns nil when nothing failed.
func FailedReadFilter(left, right *models.ScanResult, foldCase bool) *PathSetFilter {
	var items, dirs []string
	for _, sr := range []*models.ScanResult{left, right} {
		if sr == nil {
			continue
		}
		for p := range sr.FailedItemReads {
			items = append(items, p)
		}
		for p := range sr.FailedDirReads {
			dirs = append(dirs, p)
		}
	}
	if len(items) == 0 && len(dirs) == 0 {
		return nil
	}
	return NewPathSetFilter(items, dirs, foldCase)
}

// ExcludeFailedReads forces every object that failed to read on either
// side inactive, together with everything below failed directories.
func ExcludeFailedReads(pair *models.BaseDirPair, left, right *models.ScanResult, foldCase bool) {
	if f := FailedReadFilter(left, right, foldCase); f != nil {
		ApplyHardFilter(pair, f)
	}
}
