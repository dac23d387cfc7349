// Package direction plans the synchronization direction of every object
// of a categorized pair.
package direction

import (
	"github.com/sdejongh/dircompare/pkg/models"
)

// Resolver assigns models.Node.SyncDir for all live nodes of a pair
type Resolver interface {
	Resolve(pair *models.BaseDirPair, cfg models.DirectionConfig)
}

// CategoryResolver derives directions from categories alone
type CategoryResolver struct{}

// NewCategoryResolver creates the default resolver
func NewCategoryResolver() *CategoryResolver {
	return &CategoryResolver{}
}

// Resolve implements Resolver
func (r *CategoryResolver) Resolve(pair *models.BaseDirPair, cfg models.DirectionConfig) {
	variant := cfg.Variant
	if variant == "" {
		variant = models.DirectionTwoWay
	}
	policy := cfg.Conflicts
	if policy == "" {
		policy = models.ConflictNone
	}

	pair.Tree.Walk(func(id models.NodeID, n *models.Node) bool {
		if !n.Active {
			n.SyncDir = models.SyncNone
			return true
		}
		switch variant {
		case models.DirectionMirror:
			n.SyncDir = mirror(n)
		case models.DirectionUpdate:
			n.SyncDir = update(n, policy)
		default:
			n.SyncDir = twoWay(n, policy)
		}
		return true
	})
}

func twoWay(n *models.Node, policy models.ConflictPolicy) models.SyncDirection {
	switch n.Category {
	case models.FileLeftSideOnly, models.FileLeftNewer:
		return models.SyncRight
	case models.FileRightSideOnly, models.FileRightNewer:
		return models.SyncLeft
	case models.FileDifferentMetadata:
		return models.SyncRight
	case models.FileDifferentContent, models.FileConflict:
		return resolveConflict(n, policy)
	default:
		return models.SyncNone
	}
}

// mirror makes the right side an exact copy of the left
func mirror(n *models.Node) models.SyncDirection {
	if n.Category == models.FileEqual {
		return models.SyncNone
	}
	return models.SyncRight
}

// update only ever writes new or changed left objects to the right
func update(n *models.Node, policy models.ConflictPolicy) models.SyncDirection {
	switch n.Category {
	case models.FileLeftSideOnly, models.FileLeftNewer, models.FileDifferentMetadata:
		return models.SyncRight
	case models.FileDifferentContent, models.FileConflict:
		if d := resolveConflict(n, policy); d == models.SyncRight {
			return d
		}
		return models.SyncNone
	default:
		return models.SyncNone
	}
}

func resolveConflict(n *models.Node, policy models.ConflictPolicy) models.SyncDirection {
	switch policy {
	case models.ConflictLeftWins:
		return models.SyncRight
	case models.ConflictRightWins:
		return models.SyncLeft
	case models.ConflictNewer:
		switch {
		case n.Left.ModTime > n.Right.ModTime:
			return models.SyncRight
		case n.Right.ModTime > n.Left.ModTime:
			return models.SyncLeft
		}
	}
	return models.SyncNone
}
