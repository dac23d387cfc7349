// Package traverse walks one directory root and builds its DirContainer
package traverse

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sdejongh/dircompare/pkg/filter"
	"github.com/sdejongh/dircompare/pkg/logging"
	"github.com/sdejongh/dircompare/pkg/models"
	"github.com/sdejongh/dircompare/pkg/process"
	"github.com/sdejongh/dircompare/pkg/storage"
)

// DefaultMaxDepth bounds recursion to survive symlink loops
const DefaultMaxDepth = 100

// Options configures a traversal
type Options struct {
	// Policy decides whether symlinks are followed or recorded as links
	Policy models.SymlinkPolicy

	// Filter is the hard filter; nil passes everything
	Filter models.NameFilter

	// FoldCase orders names case-insensitively
	FoldCase bool

	// MaxDepth is the recursion limit (DefaultMaxDepth when 0)
	MaxDepth int

	// Progress is called with the number of items recorded
	Progress func(items int)
}

// Traverser scans directory roots through a DirEntryProvider. Listing and
// metadata failures are reported to the callback, which may ask for a
// retry; ignored failures are recorded in the ScanResult.
type Traverser struct {
	provider storage.DirEntryProvider
	callback process.Callback
	logger   logging.Logger
	opts     Options

	depthWarning bool
}

// New creates a traverser
func New(provider storage.DirEntryProvider, callback process.Callback, logger logging.Logger, opts Options) *Traverser {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if callback == nil {
		callback = process.Silent{}
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Traverser{
		provider:     provider,
		callback:     callback,
		logger:       logger,
		opts:         opts,
		depthWarning: true,
	}
}

// scan is the state of one Traverse call
type scan struct {
	*Traverser
	provider storage.DirEntryProvider
	result   *models.ScanResult
}

// Traverse walks root depth-first. It only fails when ctx is cancelled;
// every other problem ends up in the failed read sets of the result.
func (t *Traverser) Traverse(ctx context.Context, root string) (*models.ScanResult, error) {
	start := time.Now()
	s := &scan{
		Traverser: t,
		provider:  storage.ForRoot(t.provider, root),
		result:    models.NewScanResult(),
	}

	if err := s.walkDir(ctx, root, "", s.result.Tree, 0); err != nil {
		return nil, err
	}
	s.result.Tree.Sort(models.NameComparer(t.opts.FoldCase))

	files, links, dirs := s.result.Tree.Counts()
	t.logger.Debug(ctx, "Directory traversal completed", logging.Fields{
		"root":         root,
		"files":        files,
		"symlinks":     links,
		"dirs":         dirs,
		"failed_dirs":  len(s.result.FailedDirReads),
		"failed_items": len(s.result.FailedItemReads),
		"duration":     time.Since(start).String(),
	})
	return s.result, nil
}

func (s *scan) progress(n int) {
	if s.opts.Progress != nil {
		s.opts.Progress(n)
	}
}

func (s *scan) passFile(rel string) bool {
	return s.opts.Filter == nil || s.opts.Filter.PassFile(rel)
}

// skipDir reports whether a directory and everything below it can be left out
func (s *scan) skipDir(rel string) bool {
	if s.opts.Filter == nil || s.opts.Filter.PassDir(rel) {
		return false
	}
	se, ok := s.opts.Filter.(filter.SubtreeExcluder)
	return ok && se.ExcludesSubtree(rel)
}

// ignored separates a user's ignore decision from cancellation
func ignored(err error) bool {
	return errors.Is(err, process.ErrIgnored)
}

func (s *scan) walkDir(ctx context.Context, dirPath, relDir string, out *models.DirContainer, depth int) error {
	var entries []storage.Entry
	err := process.TryReportingError(ctx, s.callback, func() error {
		var listErr error
		entries, listErr = s.provider.ListDirectory(ctx, dirPath)
		if listErr != nil {
			return fmt.Errorf("cannot read directory %q: %w", dirPath, listErr)
		}
		return nil
	})
	if err != nil {
		if !ignored(err) {
			return err
		}
		s.result.FailedDirReads[relDir] = failureText(err)
		s.logger.Warn(ctx, "Directory read failed, excluding it", logging.Fields{"path": dirPath, "error": err.Error()})
		return nil
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.visit(ctx, dirPath, relDir, e, out, depth); err != nil {
			return err
		}
	}
	return nil
}

// failureText returns the message of the failure behind an ignored operation
func failureText(err error) string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !errors.Is(e, process.ErrIgnored) {
				return e.Error()
			}
		}
	}
	return err.Error()
}

func (s *scan) visit(ctx context.Context, dirPath, relDir string, e storage.Entry, out *models.DirContainer, depth int) error {
	fullPath := filepath.Join(dirPath, e.Name)
	rel := models.JoinRelPath(relDir, e.Name)

	if e.Err != nil {
		err := process.TryReportingError(ctx, s.callback, func() error {
			if e.Err != nil {
				failedErr := e.Err
				e.Err = nil
				return fmt.Errorf("cannot read attributes of %q: %w", fullPath, failedErr)
			}
			fresh, statErr := s.provider.Lstat(ctx, fullPath)
			if statErr != nil {
				return fmt.Errorf("cannot read attributes of %q: %w", fullPath, statErr)
			}
			fresh.Name = e.Name
			e = fresh
			return nil
		})
		if err != nil {
			if !ignored(err) {
				return err
			}
			s.result.FailedItemReads[rel] = failureText(err)
			return nil
		}
	}

	switch e.Kind {
	case storage.EntryFile:
		if s.passFile(rel) {
			out.AddFile(e.Name, models.FileAttributes{ModTime: e.ModTime, Size: e.Size})
			s.progress(1)
		}
		return nil

	case storage.EntryDir:
		return s.descend(ctx, fullPath, rel, e.Name, out, depth)

	case storage.EntrySymlink:
		if s.opts.Policy == models.SymlinksFollow {
			return s.followLink(ctx, fullPath, rel, e, out, depth)
		}
		return s.recordLink(ctx, fullPath, rel, e, out)
	}
	return nil
}

func (s *scan) descend(ctx context.Context, fullPath, rel, name string, out *models.DirContainer, depth int) error {
	if s.skipDir(rel) {
		return nil
	}
	sub := out.AddDir(name)
	s.progress(1)

	if depth+1 > s.opts.MaxDepth {
		msg := fmt.Sprintf("Maximum directory depth of %d exceeded at %q, not descending further", s.opts.MaxDepth, fullPath)
		s.result.FailedDirReads[rel] = msg
		s.logger.Warn(ctx, "Recursion limit reached", logging.Fields{"path": fullPath, "max_depth": s.opts.MaxDepth})
		s.callback.ReportWarning(msg, &s.depthWarning)
		return nil
	}
	return s.walkDir(ctx, fullPath, rel, sub, depth+1)
}

// recordLink stores a symlink as a leaf with its own time and raw target
func (s *scan) recordLink(ctx context.Context, fullPath, rel string, e storage.Entry, out *models.DirContainer) error {
	if !s.passFile(rel) {
		return nil
	}
	var target string
	err := process.TryReportingError(ctx, s.callback, func() error {
		var linkErr error
		target, linkErr = s.provider.ReadLink(ctx, fullPath)
		if linkErr != nil {
			return fmt.Errorf("cannot resolve symbolic link %q: %w", fullPath, linkErr)
		}
		return nil
	})
	if err != nil {
		if !ignored(err) {
			return err
		}
		s.result.FailedItemReads[rel] = failureText(err)
		return nil
	}

	isDirLink := false
	if resolved, statErr := s.provider.Stat(ctx, fullPath); statErr == nil {
		isDirLink = resolved.Kind == storage.EntryDir
	}
	out.AddLink(e.Name, models.SymlinkAttributes{ModTime: e.ModTime, IsDirLink: isDirLink, Target: target})
	s.progress(1)
	return nil
}

// followLink dereferences a symlink. Broken links become empty files.
func (s *scan) followLink(ctx context.Context, fullPath, rel string, e storage.Entry, out *models.DirContainer, depth int) error {
	var resolved storage.Entry
	broken := false
	err := process.TryReportingError(ctx, s.callback, func() error {
		var statErr error
		resolved, statErr = s.provider.Stat(ctx, fullPath)
		if statErr != nil {
			if errors.Is(statErr, storage.ErrNotExist) {
				broken = true
				return nil
			}
			return fmt.Errorf("cannot resolve symbolic link %q: %w", fullPath, statErr)
		}
		return nil
	})
	if err != nil {
		if !ignored(err) {
			return err
		}
		s.result.FailedItemReads[rel] = failureText(err)
		return nil
	}

	if broken {
		if s.passFile(rel) {
			out.AddFile(e.Name, models.FileAttributes{})
			s.progress(1)
		}
		return nil
	}
	if resolved.Kind == storage.EntryDir {
		return s.descend(ctx, fullPath, rel, e.Name, out, depth)
	}
	if s.passFile(rel) {
		out.AddFile(e.Name, models.FileAttributes{ModTime: resolved.ModTime, Size: resolved.Size})
		s.progress(1)
	}
	return nil
}
