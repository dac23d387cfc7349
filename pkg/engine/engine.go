// Package engine runs a comparison over a list of folder pairs: it scans
// every distinct root once, merges both sides of each pair, applies the
// filters and categorizes every object.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/dircompare/internal/platform"
	"github.com/sdejongh/dircompare/pkg/compare"
	"github.com/sdejongh/dircompare/pkg/direction"
	"github.com/sdejongh/dircompare/pkg/filter"
	"github.com/sdejongh/dircompare/pkg/lock"
	"github.com/sdejongh/dircompare/pkg/logging"
	"github.com/sdejongh/dircompare/pkg/merge"
	"github.com/sdejongh/dircompare/pkg/models"
	"github.com/sdejongh/dircompare/pkg/process"
	"github.com/sdejongh/dircompare/pkg/ratelimit"
	"github.com/sdejongh/dircompare/pkg/scan"
	"github.com/sdejongh/dircompare/pkg/storage"
)

var (
	// ErrAborted is returned when a run is cancelled or hits a fatal error.
	// No partial result is returned alongside it.
	ErrAborted = errors.New("comparison aborted")

	// ErrOutputMismatch signals a result that does not match the folder pair list
	ErrOutputMismatch = errors.New("folder comparison does not match the folder pair list")
)

// Options configures an Engine
type Options struct {
	ScanWorkers    int
	ContentWorkers int
	MaxDepth       int

	Tuning compare.ChunkTuning

	// ContentMemory bounds the read buffers of all content workers together
	// (compare.DefaultContentMemory when 0). Tuning.MaxChunk is lowered to fit.
	ContentMemory int64

	// BandwidthLimit caps content comparison reads in bytes per second (0 = unlimited)
	BandwidthLimit int64

	LockDirectories  bool
	LockStaleTimeout time.Duration

	LowerPriority  bool
	PreventStandby bool

	// AllowUserInteraction lets the callback decide about errors and
	// missing directories. Unattended runs ignore errors and treat missing
	// directories as empty.
	AllowUserInteraction bool

	// FoldCase compares names case-insensitively
	FoldCase bool

	// Resolver plans sync directions (direction.CategoryResolver when nil)
	Resolver direction.Resolver

	// ResolvePhrase turns a path phrase into a directory name (platform.ResolvePhrase when nil)
	ResolvePhrase func(phrase string) (string, error)

	// Now returns the run start time (time.Now when nil)
	Now func() time.Time
}

// DefaultOptions returns the options of an interactive run on the local platform
func DefaultOptions() Options {
	return Options{
		ScanWorkers:          4,
		ContentWorkers:       2,
		MaxDepth:             100,
		Tuning:               compare.DefaultChunkTuning(),
		ContentMemory:        compare.DefaultContentMemory,
		LockDirectories:      true,
		LockStaleTimeout:     lock.DefaultStaleTimeout,
		AllowUserInteraction: true,
		FoldCase:             platform.CaseInsensitive(),
	}
}

// Engine compares folder pairs. An Engine must not run two comparisons
// at the same time; Session serializes runs.
type Engine struct {
	provider storage.DirEntryProvider
	callback process.Callback
	logger   logging.Logger
	opts     Options

	// Warning switches survive across runs so that a suppressed warning
	// stays suppressed
	warnPartial   bool
	warnDependent bool
	warnMissing   bool
	warnLocks     bool
}

// New creates an engine reading through provider and reporting to callback
func New(provider storage.DirEntryProvider, callback process.Callback, logger logging.Logger, opts Options) *Engine {
	if callback == nil {
		callback = process.Silent{}
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	if opts.ContentWorkers < 1 {
		opts.ContentWorkers = 1
	}
	if opts.Resolver == nil {
		opts.Resolver = direction.NewCategoryResolver()
	}
	if opts.ResolvePhrase == nil {
		opts.ResolvePhrase = platform.ResolvePhrase
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tuning.MaxChunk == 0 {
		opts.Tuning = compare.DefaultChunkTuning()
	}
	if opts.ContentMemory == 0 {
		opts.ContentMemory = compare.DefaultContentMemory
	}
	opts.Tuning = opts.Tuning.WithMemoryBudget(opts.ContentMemory, opts.ContentWorkers)
	return &Engine{
		provider:      provider,
		callback:      callback,
		logger:        logger,
		opts:          opts,
		warnPartial:   true,
		warnDependent: true,
		warnMissing:   true,
		warnLocks:     true,
	}
}

// run is the state of one Compare call
type run struct {
	*Engine
	id       string
	start    time.Time
	callback process.Callback
	logger   logging.Logger
}

// resolvedPair is a folder pair with concrete, normalized roots
type resolvedPair struct {
	models.ResolvedFolderPair
	cfg    models.FolderPairCfg
	filter models.NameFilter
}

// Compare runs one comparison over cfgs. The result holds one BaseDirPair
// per configuration, in the same order. On error no result is returned.
func (e *Engine) Compare(ctx context.Context, cfgs []models.FolderPairCfg) (models.FolderComparison, *models.Statistics, error) {
	for i, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("folder pair %d: %w", i+1, err)
		}
	}

	r := &run{Engine: e, id: uuid.NewString(), start: e.opts.Now()}
	r.logger = e.logger.WithFields(logging.Fields{"run_id": r.id})
	cb := e.callback
	if !e.opts.AllowUserInteraction {
		cb = unattended{cb}
	}
	r.callback = process.Serialized(logging.NewCallbackLogger(ctx, cb, r.logger))

	r.logger.Info(ctx, "Starting comparison", logging.Fields{
		"pairs":           len(cfgs),
		"scan_workers":    e.opts.ScanWorkers,
		"content_workers": e.opts.ContentWorkers,
		"max_chunk":       e.opts.Tuning.MaxChunk,
	})

	restore := r.applyProcessSettings(ctx)
	defer restore()

	result, bytesCompared, err := r.compare(ctx, cfgs)
	if err != nil {
		r.logger.Error(ctx, "Comparison failed", err, nil)
		return nil, nil, err
	}

	stats := &models.Statistics{
		RunID:         r.id,
		StartTime:     r.start,
		Duration:      time.Since(r.start),
		BytesCompared: bytesCompared,
	}
	for _, pair := range result {
		stats.Pairs = append(stats.Pairs, models.Summarize(pair))
	}

	r.logger.Info(ctx, "Comparison completed", logging.Fields{
		"pairs":          len(result),
		"bytes_compared": bytesCompared,
		"duration":       stats.Duration.String(),
	})
	return result, stats, nil
}

func (r *run) compare(ctx context.Context, cfgs []models.FolderPairCfg) (models.FolderComparison, int64, error) {
	pairs, unresolved, err := r.resolvePairs(ctx, cfgs)
	if err != nil {
		return nil, 0, r.abort(err)
	}
	r.warnAboutPairs(pairs)

	existing, err := r.checkExistence(ctx, pairs, unresolved)
	if err != nil {
		return nil, 0, r.abort(err)
	}

	if r.opts.LockDirectories {
		locks := r.lockDirectories(ctx, pairs, existing)
		defer func() {
			if err := locks.Release(); err != nil {
				r.logger.Warn(ctx, "Failed to release directory locks", logging.Fields{"error": err.Error()})
			}
		}()
	}

	keys, results, err := r.scanRoots(ctx, pairs, existing)
	if err != nil {
		return nil, 0, r.abort(err)
	}

	output := make(models.FolderComparison, len(pairs))
	merger := merge.NewMerger(r.opts.FoldCase)
	for i, p := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, 0, r.abort(err)
		}
		output[i] = r.buildPair(ctx, merger, p, existing, keys[i], results)
	}

	limiter := ratelimit.NewLimiter(r.opts.BandwidthLimit)
	content := compare.NewContentComparer(r.provider, r.opts.Tuning, limiter)
	categorizer := compare.NewCategorizer(r.provider, content, r.start)

	bytesCompared, err := r.compareContent(ctx, categorizer, output)
	if err != nil {
		return nil, 0, r.abort(err)
	}

	for _, pair := range output {
		if err := ctx.Err(); err != nil {
			return nil, 0, r.abort(err)
		}
		if pair.Variant == models.CompareTimeSize {
			categorizer.ByTimeSize(pair)
		}
	}

	for i, pair := range output {
		r.opts.Resolver.Resolve(pair, pairs[i].cfg.Direction)
	}

	if len(output) != len(cfgs) {
		r.callback.ReportFatalError(ErrOutputMismatch.Error())
		return nil, 0, ErrOutputMismatch
	}
	return output, bytesCompared, nil
}

// abort turns cancellation and systemic failures into ErrAborted. A
// failure that is not a cancellation is also reported as fatal.
func (r *run) abort(err error) error {
	if errors.Is(err, ErrAborted) {
		return err
	}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		r.callback.ReportFatalError(err.Error())
	}
	return fmt.Errorf("%w: %w", ErrAborted, err)
}

// resolvePairs turns the phrases of every pair into directory names.
// Phrases that cannot be resolved are returned in unresolved and treated
// as missing directories.
// TODO: resolve phrases in parallel once volume lookups can be cancelled.
func (r *run) resolvePairs(ctx context.Context, cfgs []models.FolderPairCfg) ([]resolvedPair, map[string]bool, error) {
	unresolved := make(map[string]bool)
	resolve := func(phrase string) (string, error) {
		if phrase == "" {
			return "", nil
		}
		var dir string
		err := process.TryReportingError(ctx, r.callback, func() error {
			var err error
			dir, err = r.opts.ResolvePhrase(phrase)
			return err
		})
		if err != nil {
			if !errors.Is(err, process.ErrIgnored) {
				return "", err
			}
			dir = platform.NormalizeDir(phrase)
			unresolved[dir] = true
			return dir, nil
		}
		return platform.NormalizeDir(dir), nil
	}

	// Lock files of this and other runs are never part of the result, also
	// when a locked root is nested inside another pair's root
	lockFiles := filter.NewPatternFilter(nil, []string{lock.LockFileName}, r.opts.FoldCase)

	pairs := make([]resolvedPair, len(cfgs))
	for i, cfg := range cfgs {
		left, err := resolve(cfg.LeftPhrase)
		if err != nil {
			return nil, nil, err
		}
		right, err := resolve(cfg.RightPhrase)
		if err != nil {
			return nil, nil, err
		}
		pairs[i] = resolvedPair{
			ResolvedFolderPair: models.ResolvedFolderPair{
				DirnameLeft:  left,
				DirnameRight: right,
			},
			cfg:    cfg,
			filter: filter.Combine(
				filter.NewPatternFilter(cfg.Filter.Include, cfg.Filter.Exclude, r.opts.FoldCase),
				lockFiles,
			),
		}
		r.logger.Debug(ctx, "Resolved folder pair", logging.Fields{
			"pair":  i + 1,
			"left":  left,
			"right": right,
		})
	}
	return pairs, unresolved, nil
}

// warnAboutPairs reports suspicious pair sets. Mixing partial and full
// pairs is unusual; a uniform set of either kind is not.
func (r *run) warnAboutPairs(pairs []resolvedPair) {
	var partial, full int
	var partialList, dependent []string
	for _, p := range pairs {
		switch {
		case p.cfg.IsPartial():
			partial++
			partialList = append(partialList, describePair(p.DirnameLeft, p.DirnameRight))
		case !p.cfg.IsEmpty():
			full++
		}
		if platform.IsDependent(p.DirnameLeft, p.DirnameRight, r.opts.FoldCase) {
			dependent = append(dependent, describePair(p.DirnameLeft, p.DirnameRight))
		}
	}

	if partial > 0 && full > 0 {
		r.callback.ReportWarning("The following folder pairs have only one side filled in:\n"+
			strings.Join(partialList, "\n"), &r.warnPartial)
	}
	if len(dependent) > 0 {
		r.callback.ReportWarning("The following folder pairs contain each other; items may be scanned twice:\n"+
			strings.Join(dependent, "\n"), &r.warnDependent)
	}
}

func describePair(left, right string) string {
	return fmt.Sprintf("%q <-> %q", left, right)
}

// rootKey is the identity of a root in the existence map
func (r *run) rootKey(dir string) string {
	if r.opts.FoldCase {
		return strings.ToLower(dir)
	}
	return dir
}

// distinctRoots lists the non-empty roots of all pairs once, in pair order
func (r *run) distinctRoots(pairs []resolvedPair) []string {
	seen := make(map[string]bool)
	var roots []string
	for _, p := range pairs {
		for _, dir := range []string{p.DirnameLeft, p.DirnameRight} {
			if dir == "" || seen[r.rootKey(dir)] {
				continue
			}
			seen[r.rootKey(dir)] = true
			roots = append(roots, dir)
		}
	}
	return roots
}

// checkExistence determines once per run which roots exist. The answer is
// reused for the rest of the run, even when a directory appears or
// disappears while scanning.
func (r *run) checkExistence(ctx context.Context, pairs []resolvedPair, unresolved map[string]bool) (map[string]bool, error) {
	existing := make(map[string]bool)

	check := func(dir string) (bool, error) {
		if unresolved[dir] {
			return false, nil
		}
		var ok bool
		err := process.TryReportingError(ctx, r.callback, func() error {
			var err error
			ok, err = storage.DirExists(ctx, r.provider, dir)
			if err != nil {
				return fmt.Errorf("cannot read directory %q: %w", dir, err)
			}
			return nil
		})
		if err != nil && !errors.Is(err, process.ErrIgnored) {
			return false, err
		}
		return ok, nil
	}

	missing := r.distinctRoots(pairs)
	for retry := 0; ; retry++ {
		var stillMissing []string
		for _, dir := range missing {
			ok, err := check(dir)
			if err != nil {
				return nil, err
			}
			if ok {
				existing[r.rootKey(dir)] = true
			} else {
				stillMissing = append(stillMissing, dir)
			}
		}
		missing = stillMissing
		if len(missing) == 0 {
			break
		}

		msg := "Cannot find the following folders:\n" + strings.Join(missing, "\n")
		if !r.opts.AllowUserInteraction {
			r.callback.ReportWarning(msg+"\nThey are treated as empty.", &r.warnMissing)
			break
		}
		if r.callback.ReportError(msg, retry) != process.ResponseRetry {
			break
		}
	}

	for _, dir := range missing {
		r.logger.Info(ctx, "Directory not found, treating it as empty", logging.Fields{"root": dir})
	}
	return existing, nil
}

func (r *run) exists(existing map[string]bool, dir string) bool {
	return dir != "" && existing[r.rootKey(dir)]
}

// lockDirectories locks the existing roots. Failures are warnings.
func (r *run) lockDirectories(ctx context.Context, pairs []resolvedPair, existing map[string]bool) *lock.Set {
	var dirs []string
	for _, dir := range r.distinctRoots(pairs) {
		if r.exists(existing, dir) {
			dirs = append(dirs, dir)
		}
	}
	locks, errs := lock.AcquireAll(dirs, lock.Options{StaleTimeout: r.opts.LockStaleTimeout})
	for _, err := range errs {
		r.callback.ReportWarning(err.Error(), &r.warnLocks)
	}
	r.logger.Debug(ctx, "Directories locked", logging.Fields{
		"locked": locks.Len(),
		"failed": len(errs),
	})
	return locks
}

// pairKeys holds the scan keys of one pair; nil for a missing side
type pairKeys struct {
	left, right *scan.PathKey
}

// scanRoots scans every distinct existing root once for all pairs
func (r *run) scanRoots(ctx context.Context, pairs []resolvedPair, existing map[string]bool) ([]pairKeys, map[string]*models.ScanResult, error) {
	keys := make([]pairKeys, len(pairs))
	var all []scan.PathKey
	for i, p := range pairs {
		policy := p.cfg.Symlinks
		if r.exists(existing, p.DirnameLeft) {
			k := scan.NewPathKey(p.DirnameLeft, p.filter, policy, r.opts.FoldCase)
			keys[i].left = &k
			all = append(all, k)
		}
		if r.exists(existing, p.DirnameRight) {
			k := scan.NewPathKey(p.DirnameRight, p.filter, policy, r.opts.FoldCase)
			keys[i].right = &k
			all = append(all, k)
		}
	}

	buffer := scan.NewBuffer(r.provider, r.callback, r.logger, scan.BufferOptions{
		Workers:  r.opts.ScanWorkers,
		MaxDepth: r.opts.MaxDepth,
	})
	results, err := buffer.Fill(ctx, all)
	if err != nil {
		return nil, nil, err
	}
	return keys, results, nil
}

// buildPair merges both sides of p and applies the filters
func (r *run) buildPair(ctx context.Context, merger *merge.Merger, p resolvedPair, existing map[string]bool, keys pairKeys, results map[string]*models.ScanResult) *models.BaseDirPair {
	pair := &models.BaseDirPair{
		LeftRoot:               p.DirnameLeft,
		RightRoot:              p.DirnameRight,
		LeftExists:             r.exists(existing, p.DirnameLeft),
		RightExists:            r.exists(existing, p.DirnameRight),
		Filter:                 p.filter,
		Variant:                p.cfg.Variant,
		FileTimeTolerance:      int64(p.cfg.FileTimeTolerance),
		IgnoreTimeShiftMinutes: p.cfg.IgnoreTimeShiftMinutes,
	}

	lookup := func(k *scan.PathKey) *models.ScanResult {
		if k == nil {
			return nil
		}
		return results[k.ID()]
	}
	container := func(sr *models.ScanResult) *models.DirContainer {
		if sr == nil {
			return nil
		}
		return sr.Tree
	}

	left, right := lookup(keys.left), lookup(keys.right)
	merger.Merge(container(left), container(right), pair)
	filter.ApplyHardFilter(pair, p.filter)
	filter.ExcludeFailedReads(pair, left, right, r.opts.FoldCase)
	filter.ApplySoftFilter(pair, filter.NewSoftFilter(p.cfg.Filter, r.start))

	r.logger.Debug(ctx, "Merged folder pair", logging.Fields{
		"left":      p.DirnameLeft,
		"right":     p.DirnameRight,
		"nodes":     pair.Tree.Len(),
		"undefined": len(pair.UndefinedFiles) + len(pair.UndefinedLinks),
	})
	return pair
}

// compareContent categorizes all content pairs in one batch so that
// progress covers the combined byte total. It returns the bytes read.
func (r *run) compareContent(ctx context.Context, categorizer *compare.Categorizer, output models.FolderComparison) (int64, error) {
	var jobs []compare.ContentJob
	var totalBytes int64
	for _, pair := range output {
		if pair.Variant != models.CompareContent {
			continue
		}
		for _, job := range categorizer.PrepareContent(ctx, pair) {
			jobs = append(jobs, job)
			totalBytes += int64(job.Size)
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	start := time.Now()
	r.callback.InitNewPhase(len(jobs), totalBytes, process.PhaseComparingContent)

	var processed atomic.Int64
	status := newStatusThrottle(scan.DefaultStatusInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.ContentWorkers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if status.ready() {
				r.callback.ReportStatus("Comparing content: " + job.LeftPath)
			}
			err := categorizer.CompareContent(gctx, job, func(n int64) {
				processed.Add(n)
				r.callback.UpdateProcessedData(0, n)
			})
			if err != nil {
				return err
			}
			r.callback.UpdateProcessedData(1, 0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	r.logger.Info(ctx, "Content comparison completed", logging.Fields{
		"phase":    process.PhaseComparingContent.String(),
		"files":    len(jobs),
		"bytes":    processed.Load(),
		"duration": time.Since(start).String(),
	})
	return processed.Load(), nil
}

// applyProcessSettings lowers the scheduling priority and suppresses
// standby for the duration of the run. Failures are only informational.
func (r *run) applyProcessSettings(ctx context.Context) (restore func()) {
	var undo []func()

	if r.opts.LowerPriority {
		reset, err := platform.LowerPriority()
		if err != nil {
			r.logger.Info(ctx, "Could not lower process priority", logging.Fields{"error": err.Error()})
		} else {
			undo = append(undo, func() {
				if err := reset(); err != nil {
					r.logger.Info(ctx, "Could not restore process priority", logging.Fields{"error": err.Error()})
				}
			})
		}
	}

	if r.opts.PreventStandby {
		release, err := platform.PreventStandby(ctx, "Comparing folders")
		if err != nil {
			r.logger.Info(ctx, "Could not prevent system standby", logging.Fields{"error": err.Error()})
		} else {
			undo = append(undo, release)
		}
	}

	return func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}
}

// unattended answers every error with ResponseIgnore. The error still
// reaches the callback as a warning that cannot be suppressed.
type unattended struct {
	process.Callback
}

func (u unattended) ReportError(msg string, retryNumber int) process.Response {
	u.Callback.ReportWarning(msg, nil)
	return process.ResponseIgnore
}

// statusThrottle lets a status report through at most once per interval
type statusThrottle struct {
	interval time.Duration
	last     atomic.Int64
}

func newStatusThrottle(interval time.Duration) *statusThrottle {
	return &statusThrottle{interval: interval}
}

func (s *statusThrottle) ready() bool {
	now := time.Now().UnixNano()
	last := s.last.Load()
	if now-last < int64(s.interval) {
		return false
	}
	return s.last.CompareAndSwap(last, now)
}
