package compare

import (
	"context"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sdejongh/dircompare/pkg/models"
	"github.com/sdejongh/dircompare/pkg/storage"
)

const describeSkippedContent = "Content comparison skipped for excluded file"

// Categorizer assigns the final category to the both-sides files and
// symlinks of a merged pair
type Categorizer struct {
	provider     storage.DirEntryProvider
	content      *ContentComparer
	invalidAfter int64

	// compareLinkKind also requires symlinks to agree on pointing to a directory
	compareLinkKind bool
}

// NewCategorizer creates a categorizer for a run that started at runStart
func NewCategorizer(provider storage.DirEntryProvider, content *ContentComparer, runStart time.Time) *Categorizer {
	return &Categorizer{
		provider:        provider,
		content:         content,
		invalidAfter:    runStart.Add(InvalidTimeMargin).Unix(),
		compareLinkKind: runtime.GOOS == "windows",
	}
}

// ByTimeSize categorizes all undefined objects of pair by modification
// time and size, then clears the undefined lists.
func (c *Categorizer) ByTimeSize(pair *models.BaseDirPair) {
	for _, id := range pair.UndefinedFiles {
		if n := pair.Tree.Node(id); !n.Removed() {
			CategorizeByTimeSize(n, pair, c.invalidAfter)
		}
	}
	for _, id := range pair.UndefinedLinks {
		if n := pair.Tree.Node(id); !n.Removed() {
			CategorizeByTimeSize(n, pair, c.invalidAfter)
		}
	}
	pair.UndefinedFiles = nil
	pair.UndefinedLinks = nil
}

// ContentJob is a file pair whose bytes must be read to be categorized
type ContentJob struct {
	Pair      *models.BaseDirPair
	ID        models.NodeID
	LeftPath  string
	RightPath string
	Size      uint64
}

func sidePath(pair *models.BaseDirPair, id models.NodeID, left bool) string {
	root := pair.RightRoot
	if left {
		root = pair.LeftRoot
	}
	return filepath.Join(root, filepath.FromSlash(pair.Tree.SidePath(id, left)))
}

// PrepareContent categorizes the symlinks of pair and every file that can
// be decided without reading it. The remaining files are returned in tree
// order for CompareContent. The undefined lists are cleared.
func (c *Categorizer) PrepareContent(ctx context.Context, pair *models.BaseDirPair) []ContentJob {
	for _, id := range pair.UndefinedLinks {
		if n := pair.Tree.Node(id); !n.Removed() {
			c.categorizeLink(ctx, pair, id)
		}
	}

	var jobs []ContentJob
	for _, id := range pair.UndefinedFiles {
		n := pair.Tree.Node(id)
		if n.Removed() {
			continue
		}
		n.Description = ""
		switch {
		case n.Left.Size != n.Right.Size:
			n.Category = models.FileDifferentContent
		case !n.Active:
			n.Category = models.FileConflict
			n.Description = describeSkippedContent
		default:
			jobs = append(jobs, ContentJob{
				Pair:      pair,
				ID:        id,
				LeftPath:  sidePath(pair, id, true),
				RightPath: sidePath(pair, id, false),
				Size:      n.Left.Size,
			})
		}
	}
	pair.UndefinedFiles = nil
	pair.UndefinedLinks = nil
	return jobs
}

// CompareContent reads both files of job and sets the node's category. Read
// failures turn into a conflict; only cancellation is returned as an error.
// Jobs for different nodes may run concurrently.
func (c *Categorizer) CompareContent(ctx context.Context, job ContentJob, onProgress func(int64)) error {
	same, err := c.content.SameContent(ctx, job.LeftPath, job.RightPath, onProgress)
	n := job.Pair.Tree.Node(job.ID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n.Category = models.FileConflict
		n.Description = err.Error()
		return nil
	}
	if !same {
		n.Category = models.FileDifferentContent
		return nil
	}
	c.categorizeMetadata(n, job.Pair)
	return nil
}

// categorizeMetadata decides between equal and metadata-only differences
// for objects with identical content
func (c *Categorizer) categorizeMetadata(n *models.Node, pair *models.BaseDirPair) {
	switch {
	case n.Left.ShortName != n.Right.ShortName:
		n.Category = models.FileDifferentMetadata
		n.Description = models.DescribeCaseDiff(n.Left.ShortName, n.Right.ShortName)
	case !SameFileTime(n.Left.ModTime, n.Right.ModTime, pair.FileTimeTolerance, pair.IgnoreTimeShiftMinutes):
		n.Category = models.FileDifferentMetadata
		n.Description = describeTimeDiff(n.Left.ModTime, n.Right.ModTime)
	default:
		n.Category = models.FileEqual
	}
}

func (c *Categorizer) categorizeLink(ctx context.Context, pair *models.BaseDirPair, id models.NodeID) {
	n := pair.Tree.Node(id)
	n.Description = ""

	leftTarget, err := c.provider.ReadLink(ctx, sidePath(pair, id, true))
	if err != nil {
		n.Category = models.FileConflict
		n.Description = err.Error()
		return
	}
	rightTarget, err := c.provider.ReadLink(ctx, sidePath(pair, id, false))
	if err != nil {
		n.Category = models.FileConflict
		n.Description = err.Error()
		return
	}

	if leftTarget != rightTarget || (c.compareLinkKind && n.Left.IsDirLink != n.Right.IsDirLink) {
		n.Category = models.FileDifferentContent
		return
	}
	c.categorizeMetadata(n, pair)
}
