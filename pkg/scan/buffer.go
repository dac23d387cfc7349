package scan

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/dircompare/pkg/logging"
	"github.com/sdejongh/dircompare/pkg/models"
	"github.com/sdejongh/dircompare/pkg/process"
	"github.com/sdejongh/dircompare/pkg/storage"
	"github.com/sdejongh/dircompare/pkg/traverse"
)

// DefaultStatusInterval bounds the frequency of status reports
const DefaultStatusInterval = 50 * time.Millisecond

// BufferOptions configures a Buffer
type BufferOptions struct {
	// Workers is the number of roots scanned in parallel (NumCPU when 0)
	Workers int

	// MaxDepth is passed to every traversal
	MaxDepth int

	// StatusInterval is the status report period (DefaultStatusInterval when 0)
	StatusInterval time.Duration
}

// Buffer scans each distinct PathKey once per comparison run. Keys are
// independent I/O targets, so they are traversed in parallel.
type Buffer struct {
	provider storage.DirEntryProvider
	callback process.Callback
	logger   logging.Logger
	opts     BufferOptions

	mu      sync.Mutex
	results map[string]*models.ScanResult

	items   atomic.Int64
	current atomic.Value // string
}

// NewBuffer creates an empty buffer. The callback is serialized because
// traversal workers report errors concurrently.
func NewBuffer(provider storage.DirEntryProvider, callback process.Callback, logger logging.Logger, opts BufferOptions) *Buffer {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = DefaultStatusInterval
	}
	if callback == nil {
		callback = process.Silent{}
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Buffer{
		provider: provider,
		callback: process.Serialized(callback),
		logger:   logger,
		opts:     opts,
		results:  make(map[string]*models.ScanResult),
	}
}

// Fill scans every key not yet buffered and returns the results by key ID.
// Only existing directories should be passed in; missing roots are
// represented by the absence of a result. Fill must not be called
// concurrently on the same buffer.
func (b *Buffer) Fill(ctx context.Context, keys []PathKey) (map[string]*models.ScanResult, error) {
	unique := dedupe(keys)
	start := time.Now()

	b.callback.InitNewPhase(process.UnknownTotal, 0, process.PhaseScanning)
	b.items.Store(0)
	b.current.Store("")

	stopStatus := b.reportStatusPeriodically()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for _, key := range unique {
		key := key
		g.Go(func() error {
			_, err := b.scanKey(gctx, key)
			return err
		})
	}
	err := g.Wait()
	stopStatus()
	if err != nil {
		return nil, err
	}

	b.logger.Info(ctx, "Scan phase completed", logging.Fields{
		"roots":    len(unique),
		"items":    b.items.Load(),
		"duration": time.Since(start).String(),
	})

	out := make(map[string]*models.ScanResult, len(unique))
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range unique {
		if res, ok := b.results[key.ID()]; ok {
			out[key.ID()] = res
		}
	}
	return out, nil
}

func (b *Buffer) scanKey(ctx context.Context, key PathKey) (*models.ScanResult, error) {
	b.mu.Lock()
	cached, ok := b.results[key.ID()]
	b.mu.Unlock()
	if ok {
		return cached, nil
	}

	root := filepath.Clean(key.Root)
	b.current.Store(root)
	b.logger.Debug(ctx, "Scanning directory", logging.Fields{
		"root":   root,
		"policy": string(key.Policy),
		"filter": key.FilterHash(),
	})

	tr := traverse.New(storage.ForRoot(b.provider, root), b.callback, b.logger, traverse.Options{
		Policy:   key.Policy,
		Filter:   key.Filter,
		FoldCase: key.FoldCase,
		MaxDepth: b.opts.MaxDepth,
		Progress: func(n int) { b.items.Add(int64(n)) },
	})
	res, err := tr.Traverse(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("scan of %s aborted: %w", root, err)
	}

	b.mu.Lock()
	b.results[key.ID()] = res
	b.mu.Unlock()
	return res, nil
}

// reportStatusPeriodically forwards item counts to the callback until the
// returned stop function is called. stop flushes the final count.
func (b *Buffer) reportStatusPeriodically() (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	var reported int64

	flush := func() {
		n := b.items.Load()
		if delta := n - reported; delta > 0 {
			b.callback.UpdateProcessedData(int(delta), 0)
			reported = n
		}
		current, _ := b.current.Load().(string)
		b.callback.ReportStatus(fmt.Sprintf("Scanning: %d items found, %s", n, current))
	}

	go func() {
		defer close(finished)
		ticker := time.NewTicker(b.opts.StatusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				flush()
				return
			case <-ticker.C:
				flush()
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

// dedupe removes duplicate keys and orders them deterministically
func dedupe(keys []PathKey) []PathKey {
	seen := make(map[string]bool, len(keys))
	out := make([]PathKey, 0, len(keys))
	for _, k := range keys {
		if seen[k.ID()] {
			continue
		}
		seen[k.ID()] = true
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}
