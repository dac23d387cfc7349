// Package merge joins the scanned containers of both sides into the tree
// of a BaseDirPair.
package merge

import (
	"github.com/sdejongh/dircompare/pkg/models"
)

// Merger performs an ordered linear merge of two DirContainers. Both
// containers must be sorted by the same NameCompare the merger uses.
type Merger struct {
	compare models.NameCompare
}

// NewMerger creates a merger using the platform's name ordering
func NewMerger(foldCase bool) *Merger {
	return &Merger{compare: models.NameComparer(foldCase)}
}

// Merge populates pair.Tree from left and right. Either side may be nil
// for a missing directory. Objects found on one side only get their final
// category directly; objects on both sides are collected in
// pair.UndefinedFiles and pair.UndefinedLinks for categorization.
func (m *Merger) Merge(left, right *models.DirContainer, pair *models.BaseDirPair) {
	m.mergeDir(left, right, models.NoNode, pair)
}

func (m *Merger) mergeDir(left, right *models.DirContainer, parent models.NodeID, pair *models.BaseDirPair) {
	if left == nil {
		left = &models.DirContainer{}
	}
	if right == nil {
		right = &models.DirContainer{}
	}
	m.mergeFiles(left.Files, right.Files, parent, pair)
	m.mergeLinks(left.Links, right.Links, parent, pair)
	m.mergeDirs(left.Dirs, right.Dirs, parent, pair)
}

func fileSide(e models.FileEntry) models.SideInfo {
	return models.SideInfo{Exists: true, ShortName: e.Name, Size: e.Attr.Size, ModTime: e.Attr.ModTime}
}

func linkSide(e models.LinkEntry) models.SideInfo {
	return models.SideInfo{Exists: true, ShortName: e.Name, ModTime: e.Attr.ModTime, IsDirLink: e.Attr.IsDirLink}
}

func dirSide(e models.DirEntry) models.SideInfo {
	return models.SideInfo{Exists: true, ShortName: e.Name}
}

func oneSided(kind models.ObjectKind, side models.SideInfo, isLeft bool) models.Node {
	n := models.Node{Kind: kind, Active: true}
	if isLeft {
		n.Left = side
		n.Category = models.FileLeftSideOnly
	} else {
		n.Right = side
		n.Category = models.FileRightSideOnly
	}
	return n
}

func bothSided(kind models.ObjectKind, left, right models.SideInfo) models.Node {
	return models.Node{Kind: kind, Left: left, Right: right, Category: models.FileEqual, Active: true}
}

func (m *Merger) mergeFiles(left, right []models.FileEntry, parent models.NodeID, pair *models.BaseDirPair) {
	tree := &pair.Tree
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		switch c := m.compare(left[i].Name, right[j].Name); {
		case c < 0:
			tree.Add(parent, oneSided(models.KindFile, fileSide(left[i]), true))
			i++
		case c > 0:
			tree.Add(parent, oneSided(models.KindFile, fileSide(right[j]), false))
			j++
		default:
			id := tree.Add(parent, bothSided(models.KindFile, fileSide(left[i]), fileSide(right[j])))
			pair.UndefinedFiles = append(pair.UndefinedFiles, id)
			i++
			j++
		}
	}
	for ; i < len(left); i++ {
		tree.Add(parent, oneSided(models.KindFile, fileSide(left[i]), true))
	}
	for ; j < len(right); j++ {
		tree.Add(parent, oneSided(models.KindFile, fileSide(right[j]), false))
	}
}

func (m *Merger) mergeLinks(left, right []models.LinkEntry, parent models.NodeID, pair *models.BaseDirPair) {
	tree := &pair.Tree
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		switch c := m.compare(left[i].Name, right[j].Name); {
		case c < 0:
			tree.Add(parent, oneSided(models.KindSymlink, linkSide(left[i]), true))
			i++
		case c > 0:
			tree.Add(parent, oneSided(models.KindSymlink, linkSide(right[j]), false))
			j++
		default:
			id := tree.Add(parent, bothSided(models.KindSymlink, linkSide(left[i]), linkSide(right[j])))
			pair.UndefinedLinks = append(pair.UndefinedLinks, id)
			i++
			j++
		}
	}
	for ; i < len(left); i++ {
		tree.Add(parent, oneSided(models.KindSymlink, linkSide(left[i]), true))
	}
	for ; j < len(right); j++ {
		tree.Add(parent, oneSided(models.KindSymlink, linkSide(right[j]), false))
	}
}

func (m *Merger) mergeDirs(left, right []models.DirEntry, parent models.NodeID, pair *models.BaseDirPair) {
	tree := &pair.Tree
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		switch c := m.compare(left[i].Name, right[j].Name); {
		case c < 0:
			id := tree.Add(parent, oneSided(models.KindDir, dirSide(left[i]), true))
			m.mergeDir(left[i].Sub, nil, id, pair)
			i++
		case c > 0:
			id := tree.Add(parent, oneSided(models.KindDir, dirSide(right[j]), false))
			m.mergeDir(nil, right[j].Sub, id, pair)
			j++
		default:
			n := bothSided(models.KindDir, dirSide(left[i]), dirSide(right[j]))
			if left[i].Name != right[j].Name {
				n.Category = models.FileDifferentMetadata
				n.Description = models.DescribeCaseDiff(left[i].Name, right[j].Name)
			}
			id := tree.Add(parent, n)
			m.mergeDir(left[i].Sub, right[j].Sub, id, pair)
			i++
			j++
		}
	}
	for ; i < len(left); i++ {
		id := tree.Add(parent, oneSided(models.KindDir, dirSide(left[i]), true))
		m.mergeDir(left[i].Sub, nil, id, pair)
	}
	for ; j < len(right); j++ {
		id := tree.Add(parent, oneSided(models.KindDir, dirSide(right[j]), false))
		m.mergeDir(nil, right[j].Sub, id, pair)
	}
}
