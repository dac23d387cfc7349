package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sdejongh/dircompare/pkg/compare"
	"github.com/sdejongh/dircompare/pkg/lock"
	"github.com/sdejongh/dircompare/pkg/models"
	"github.com/sdejongh/dircompare/pkg/process"
	"github.com/sdejongh/dircompare/pkg/process/processtest"
	"github.com/sdejongh/dircompare/pkg/storage"
)

var runStart = time.Unix(1_700_000_000, 0)

const fileTime = 1_690_000_000

func testOptions() Options {
	return Options{
		ScanWorkers:    2,
		ContentWorkers: 2,
		MaxDepth:       50,
		Tuning:         compare.DefaultChunkTuning(),
		FoldCase:       false,
		ResolvePhrase:  func(p string) (string, error) { return p, nil },
		Now:            func() time.Time { return runStart },
	}
}

func pairCfg(left, right string, variant models.CompareVariant) models.FolderPairCfg {
	return models.FolderPairCfg{
		LeftPhrase:        left,
		RightPhrase:       right,
		Variant:           variant,
		Symlinks:          models.SymlinksDirect,
		FileTimeTolerance: 2,
		Direction:         models.DirectionConfig{Variant: models.DirectionTwoWay, Conflicts: models.ConflictNone},
	}
}

// findNode returns the live node at relPath or nil
func findNode(pair *models.BaseDirPair, relPath string) *models.Node {
	var found *models.Node
	pair.Tree.Walk(func(id models.NodeID, n *models.Node) bool {
		if pair.Tree.RelativePath(id) == relPath {
			found = n
			return false
		}
		return true
	})
	return found
}

func scenarioProvider() *storage.MemProvider {
	mem := storage.NewMemProvider("/m")
	mem.AddFile("/m/left/a.txt", make([]byte, 10), fileTime)
	mem.AddFile("/m/right/a.txt", make([]byte, 10), fileTime)
	mem.AddFile("/m/left/b.txt", make([]byte, 10), fileTime)
	mem.AddFile("/m/right/b.txt", make([]byte, 20), fileTime)
	mem.AddFile("/m/right/c.txt", []byte("right"), fileTime)

	lastByte := make([]byte, 5000)
	lastByte[4999] = 1
	mem.AddFile("/m/cl/b.bin", make([]byte, 5000), fileTime)
	mem.AddFile("/m/cr/b.bin", lastByte, fileTime)
	mem.AddFile("/m/cl/same.bin", []byte("identical"), fileTime)
	mem.AddFile("/m/cr/same.bin", []byte("identical"), fileTime+3600)
	return mem
}

func TestCompareScenarios(t *testing.T) {
	mem := scenarioProvider()
	rec := &processtest.Recorder{}
	e := New(mem, rec, nil, testOptions())

	cfgs := []models.FolderPairCfg{
		pairCfg("/m/cl", "/m/cr", models.CompareContent),
		pairCfg("/m/left", "/m/right", models.CompareTimeSize),
	}
	result, stats, err := e.Compare(context.Background(), cfgs)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(result) != len(cfgs) {
		t.Fatalf("len(result) = %d, want %d", len(result), len(cfgs))
	}
	if result[0].LeftRoot != "/m/cl" || result[1].LeftRoot != "/m/left" {
		t.Errorf("result order = %q, %q, want input order", result[0].LeftRoot, result[1].LeftRoot)
	}

	tests := []struct {
		pair int
		path string
		want models.Category
	}{
		{0, "b.bin", models.FileDifferentContent},
		{0, "same.bin", models.FileDifferentMetadata},
		{1, "a.txt", models.FileEqual},
		{1, "b.txt", models.FileConflict},
		{1, "c.txt", models.FileRightSideOnly},
	}
	for _, tt := range tests {
		n := findNode(result[tt.pair], tt.path)
		if n == nil {
			t.Errorf("%s not found in pair %d", tt.path, tt.pair)
			continue
		}
		if n.Category != tt.want {
			t.Errorf("%s category = %v, want %v", tt.path, n.Category, tt.want)
		}
	}

	if n := findNode(result[1], "b.txt"); n != nil && !strings.Contains(n.Description, "same date") {
		t.Errorf("b.txt description = %q, want same date message", n.Description)
	}
	if n := findNode(result[1], "c.txt"); n != nil && !n.Active {
		t.Error("c.txt should be active")
	}
	if n := findNode(result[1], "c.txt"); n != nil && n.SyncDir != models.SyncLeft {
		t.Errorf("c.txt SyncDir = %v, want %v", n.SyncDir, models.SyncLeft)
	}

	if stats.RunID == "" {
		t.Error("Statistics.RunID is empty")
	}
	if !stats.StartTime.Equal(runStart) {
		t.Errorf("StartTime = %v, want %v", stats.StartTime, runStart)
	}
	if want := int64(5000 + len("identical")); stats.BytesCompared != want {
		t.Errorf("BytesCompared = %d, want %d", stats.BytesCompared, want)
	}
	if len(stats.Pairs) != 2 {
		t.Errorf("len(stats.Pairs) = %d, want 2", len(stats.Pairs))
	}

	wantPhases := []process.Phase{process.PhaseScanning, process.PhaseComparingContent}
	if len(rec.Phases) != len(wantPhases) {
		t.Fatalf("Phases = %v, want %v", rec.Phases, wantPhases)
	}
	for i, p := range wantPhases {
		if rec.Phases[i] != p {
			t.Errorf("Phases[%d] = %v, want %v", i, rec.Phases[i], p)
		}
	}
	if rec.Objects != 2 {
		t.Errorf("content objects processed = %d, want 2", rec.Objects)
	}
}

func TestCompareSharesScans(t *testing.T) {
	mem := scenarioProvider()
	e := New(mem, nil, nil, testOptions())

	cfgs := []models.FolderPairCfg{
		pairCfg("/m/left", "/m/right", models.CompareTimeSize),
		pairCfg("/m/left", "/m/cl", models.CompareTimeSize),
		pairCfg("/m/left/", "/m/right", models.CompareTimeSize),
	}
	result, _, err := e.Compare(context.Background(), cfgs)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("len(result) = %d, want 3", len(result))
	}
	if n := mem.ListCalls["/m/left"]; n != 1 {
		t.Errorf("ListCalls[/m/left] = %d, want 1", n)
	}
	if n := mem.ListCalls["/m/right"]; n != 1 {
		t.Errorf("ListCalls[/m/right] = %d, want 1", n)
	}
}

func TestCompareMissingDirectory(t *testing.T) {
	t.Run("Unattended", func(t *testing.T) {
		mem := scenarioProvider()
		rec := &processtest.Recorder{}
		opts := testOptions()
		opts.AllowUserInteraction = false
		e := New(mem, rec, nil, opts)

		result, _, err := e.Compare(context.Background(), []models.FolderPairCfg{
			pairCfg("/m/left", "/m/nowhere", models.CompareTimeSize),
		})
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		pair := result[0]
		if !pair.LeftExists || pair.RightExists {
			t.Errorf("exists = %v/%v, want true/false", pair.LeftExists, pair.RightExists)
		}
		if n := findNode(pair, "a.txt"); n == nil || n.Category != models.FileLeftSideOnly {
			t.Error("a.txt should be left only")
		}
		if rec.ErrorCount() != 0 {
			t.Errorf("ErrorCount() = %d, want 0", rec.ErrorCount())
		}
		if rec.WarningCount() != 1 {
			t.Errorf("WarningCount() = %d, want 1", rec.WarningCount())
		}
	})

	t.Run("InteractiveIgnore", func(t *testing.T) {
		mem := scenarioProvider()
		rec := &processtest.Recorder{}
		opts := testOptions()
		opts.AllowUserInteraction = true
		e := New(mem, rec, nil, opts)

		result, _, err := e.Compare(context.Background(), []models.FolderPairCfg{
			pairCfg("/m/left", "/m/nowhere", models.CompareTimeSize),
		})
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if result[0].RightExists {
			t.Error("RightExists = true, want false")
		}
		if rec.ErrorCount() != 1 {
			t.Errorf("ErrorCount() = %d, want 1", rec.ErrorCount())
		}
	})

	t.Run("InteractiveRetry", func(t *testing.T) {
		mem := scenarioProvider()
		cb := &mountingCallback{Recorder: &processtest.Recorder{}, mount: func() {
			mem.AddFile("/m/late/a.txt", make([]byte, 10), fileTime)
		}}
		opts := testOptions()
		opts.AllowUserInteraction = true
		e := New(mem, cb, nil, opts)

		result, _, err := e.Compare(context.Background(), []models.FolderPairCfg{
			pairCfg("/m/left", "/m/late", models.CompareTimeSize),
		})
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if !result[0].RightExists {
			t.Error("RightExists = false after retry, want true")
		}
		if n := findNode(result[0], "a.txt"); n == nil || n.Category != models.FileEqual {
			t.Error("a.txt should be equal after the directory appeared")
		}
	})
}

// mountingCallback creates the missing directory when asked about it
type mountingCallback struct {
	*processtest.Recorder
	mount   func()
	mounted bool
}

func (c *mountingCallback) ReportError(msg string, retryNumber int) process.Response {
	c.Recorder.ReportError(msg, retryNumber)
	if c.mounted {
		return process.ResponseIgnore
	}
	c.mounted = true
	c.mount()
	return process.ResponseRetry
}

func TestCompareWarnings(t *testing.T) {
	tests := []struct {
		name string
		cfgs []models.FolderPairCfg
		want int
	}{
		{
			name: "MixedPartialAndFull",
			cfgs: []models.FolderPairCfg{
				pairCfg("/m/left", "/m/right", models.CompareTimeSize),
				pairCfg("/m/cl", "", models.CompareTimeSize),
			},
			want: 1,
		},
		{
			name: "AllPartial",
			cfgs: []models.FolderPairCfg{
				pairCfg("/m/left", "", models.CompareTimeSize),
				pairCfg("", "/m/right", models.CompareTimeSize),
			},
			want: 0,
		},
		{
			name: "AllFull",
			cfgs: []models.FolderPairCfg{
				pairCfg("/m/left", "/m/right", models.CompareTimeSize),
			},
			want: 0,
		},
		{
			name: "Dependent",
			cfgs: []models.FolderPairCfg{
				pairCfg("/m", "/m/right", models.CompareTimeSize),
			},
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &processtest.Recorder{}
			e := New(scenarioProvider(), rec, nil, testOptions())
			result, _, err := e.Compare(context.Background(), tt.cfgs)
			if err != nil {
				t.Fatalf("Compare() error = %v", err)
			}
			if len(result) != len(tt.cfgs) {
				t.Errorf("len(result) = %d, want %d", len(result), len(tt.cfgs))
			}
			if got := rec.WarningCount(); got != tt.want {
				t.Errorf("WarningCount() = %d, want %d (%v)", got, tt.want, rec.Warnings)
			}
		})
	}
}

func TestCompareSuppressedWarningStaysSuppressed(t *testing.T) {
	rec := &processtest.Recorder{Suppress: true}
	e := New(scenarioProvider(), rec, nil, testOptions())
	cfgs := []models.FolderPairCfg{pairCfg("/m", "/m/right", models.CompareTimeSize)}

	for i := 0; i < 2; i++ {
		if _, _, err := e.Compare(context.Background(), cfgs); err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
	}
	if got := rec.WarningCount(); got != 1 {
		t.Errorf("WarningCount() = %d, want 1", got)
	}
}

// filterProvider holds two equal roots plus bad.txt, whose left side
// cannot be read
func filterProvider() *storage.MemProvider {
	mem := storage.NewMemProvider("/m")
	for _, side := range []string{"left", "right"} {
		mem.AddFile("/m/"+side+"/keep.txt", []byte("x"), fileTime)
		mem.AddFile("/m/"+side+"/sub/a.txt", []byte("x"), fileTime)
		mem.AddFile("/m/"+side+"/sub/b.txt", []byte("x"), fileTime)
	}
	mem.AddFile("/m/left/bad.txt", []byte("x"), fileTime)
	mem.AddFile("/m/right/bad.txt", []byte("x"), fileTime)
	mem.FailStat("/m/left/bad.txt", -1)
	return mem
}

func TestCompareFilters(t *testing.T) {
	cfg := pairCfg("/m/left", "/m/right", models.CompareTimeSize)
	cfg.Filter.Exclude = []string{"sub/*"}

	e := New(filterProvider(), &processtest.Recorder{}, nil, testOptions())
	result, _, err := e.Compare(context.Background(), []models.FolderPairCfg{cfg})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	pair := result[0]

	if findNode(pair, "sub") != nil {
		t.Error("sub should be pruned")
	}
	if n := findNode(pair, "keep.txt"); n == nil || !n.Active || n.Category != models.FileEqual {
		t.Error("keep.txt should be active and equal")
	}
	n := findNode(pair, "bad.txt")
	if n == nil {
		t.Fatal("bad.txt not found")
	}
	if n.Active {
		t.Error("bad.txt failed to read and should be inactive")
	}
}

func TestCompareReportsReadFailures(t *testing.T) {
	mentionsBad := func(msgs []string) bool {
		for _, m := range msgs {
			if strings.Contains(m, "/m/left/bad.txt") {
				return true
			}
		}
		return false
	}

	t.Run("Unattended", func(t *testing.T) {
		rec := &processtest.Recorder{}
		opts := testOptions()
		opts.AllowUserInteraction = false
		e := New(filterProvider(), rec, nil, opts)

		if _, _, err := e.Compare(context.Background(), []models.FolderPairCfg{
			pairCfg("/m/left", "/m/right", models.CompareTimeSize),
		}); err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if rec.ErrorCount() != 0 {
			t.Errorf("ErrorCount() = %d, want 0", rec.ErrorCount())
		}
		if !mentionsBad(rec.Warnings) {
			t.Errorf("Warnings = %v, want the read failure of bad.txt", rec.Warnings)
		}
	})

	t.Run("UnattendedNotSuppressible", func(t *testing.T) {
		rec := &processtest.Recorder{Suppress: true}
		mem := filterProvider()
		mem.FailStat("/m/right/keep.txt", -1)
		e := New(mem, rec, nil, testOptions())

		if _, _, err := e.Compare(context.Background(), []models.FolderPairCfg{
			pairCfg("/m/left", "/m/right", models.CompareTimeSize),
		}); err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if got := rec.WarningCount(); got != 2 {
			t.Errorf("WarningCount() = %d, want 2 (%v)", got, rec.Warnings)
		}
	})

	t.Run("Interactive", func(t *testing.T) {
		rec := &processtest.Recorder{}
		opts := testOptions()
		opts.AllowUserInteraction = true
		e := New(filterProvider(), rec, nil, opts)

		if _, _, err := e.Compare(context.Background(), []models.FolderPairCfg{
			pairCfg("/m/left", "/m/right", models.CompareTimeSize),
		}); err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if !mentionsBad(rec.Errors) {
			t.Errorf("Errors = %v, want the read failure of bad.txt", rec.Errors)
		}
		if mentionsBad(rec.Warnings) {
			t.Errorf("Warnings = %v, want the failure reported as an error only", rec.Warnings)
		}
	})
}

func TestCompareSkipsLockFiles(t *testing.T) {
	root := t.TempDir()
	left := filepath.Join(root, "left")
	right := filepath.Join(root, "right")
	mtime := time.Unix(fileTime, 0)
	for _, dir := range []string{left, right} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(dir, "a.txt")
		if err := os.WriteFile(path, []byte("same"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name     string
		cfgs     []models.FolderPairCfg
		warnings int
	}{
		{
			name: "BothRoots",
			cfgs: []models.FolderPairCfg{pairCfg(left, right, models.CompareContent)},
		},
		{
			name: "NestedRoot",
			cfgs: []models.FolderPairCfg{
				pairCfg(left, right, models.CompareTimeSize),
				pairCfg(root, "", models.CompareTimeSize),
			},
			// partial pair mixed with a full one
			warnings: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &processtest.Recorder{}
			opts := testOptions()
			opts.LockDirectories = true
			opts.LockStaleTimeout = lock.DefaultStaleTimeout
			e := New(storage.NewLocal(), rec, nil, opts)

			result, _, err := e.Compare(context.Background(), tt.cfgs)
			if err != nil {
				t.Fatalf("Compare() error = %v", err)
			}
			for i, pair := range result {
				pair.Tree.Walk(func(id models.NodeID, n *models.Node) bool {
					if rel := pair.Tree.RelativePath(id); filepath.Base(rel) == lock.LockFileName {
						t.Errorf("pair %d contains %s", i, rel)
					}
					return true
				})
			}
			if n := findNode(result[0], "a.txt"); n == nil || n.Category != models.FileEqual {
				t.Error("a.txt should be equal")
			}
			if got := rec.WarningCount(); got != tt.warnings {
				t.Errorf("WarningCount() = %d, want %d (%v)", got, tt.warnings, rec.Warnings)
			}
			for _, dir := range []string{left, right, root} {
				if _, err := os.Stat(filepath.Join(dir, lock.LockFileName)); !os.IsNotExist(err) {
					t.Errorf("lock file in %s not released: %v", dir, err)
				}
			}
		})
	}
}

func TestNewBoundsChunkMemory(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		memory  int64
		want    int
	}{
		{"DefaultBudget", 8, 0, 16 * 1024 * 1024},
		{"ExplicitBudget", 2, 64 * 1024 * 1024, 16 * 1024 * 1024},
		{"SingleWorker", 1, 4 << 30, 1024 * 1024 * 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			opts.ContentWorkers = tt.workers
			opts.ContentMemory = tt.memory
			e := New(storage.NewMemProvider("/m"), nil, nil, opts)

			if got := e.opts.Tuning.MaxChunk; got != tt.want {
				t.Errorf("MaxChunk = %d, want %d", got, tt.want)
			}
			if worst := int64(2*e.opts.ContentWorkers) * int64(e.opts.Tuning.MaxChunk); worst > e.opts.ContentMemory {
				t.Errorf("buffers may use %d bytes, budget %d", worst, e.opts.ContentMemory)
			}
		})
	}
}

func TestCompareSoftFilterSkipsContent(t *testing.T) {
	mem := storage.NewMemProvider("/m")
	mem.AddFile("/m/l/big.bin", make([]byte, 100), fileTime)
	mem.AddFile("/m/r/big.bin", make([]byte, 100), fileTime)
	mem.AddFile("/m/l/small.bin", []byte("abc"), fileTime)
	mem.AddFile("/m/r/small.bin", []byte("abc"), fileTime)

	cfg := pairCfg("/m/l", "/m/r", models.CompareContent)
	cfg.Filter.SizeMax = 10

	e := New(mem, nil, nil, testOptions())
	result, stats, err := e.Compare(context.Background(), []models.FolderPairCfg{cfg})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	big := findNode(result[0], "big.bin")
	if big == nil || big.Active || big.Category != models.FileConflict {
		t.Error("big.bin should be an inactive conflict")
	}
	if small := findNode(result[0], "small.bin"); small == nil || small.Category != models.FileEqual {
		t.Error("small.bin should be equal")
	}
	if stats.BytesCompared != 3 {
		t.Errorf("BytesCompared = %d, want 3", stats.BytesCompared)
	}
}

func TestCompareAborts(t *testing.T) {
	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		rec := &processtest.Recorder{}
		e := New(scenarioProvider(), rec, nil, testOptions())

		result, stats, err := e.Compare(ctx, []models.FolderPairCfg{
			pairCfg("/m/left", "/m/right", models.CompareTimeSize),
		})
		if !errors.Is(err, ErrAborted) || !errors.Is(err, context.Canceled) {
			t.Errorf("Compare() error = %v, want ErrAborted wrapping context.Canceled", err)
		}
		if result != nil || stats != nil {
			t.Error("aborted run returned a result")
		}
		if len(rec.Fatals) != 0 {
			t.Errorf("cancellation reported as fatal: %v", rec.Fatals)
		}
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		e := New(scenarioProvider(), nil, nil, testOptions())
		cfg := pairCfg("/m/left", "/m/right", "bitwise")
		_, _, err := e.Compare(context.Background(), []models.FolderPairCfg{cfg})
		var verr *models.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Compare() error = %v, want ValidationError", err)
		}
	})
}

func TestComparePhraseResolution(t *testing.T) {
	mem := scenarioProvider()
	opts := testOptions()
	opts.ResolvePhrase = func(p string) (string, error) {
		if p == "[MISSING]/x" {
			return "", errors.New("volume not found")
		}
		return strings.ReplaceAll(p, "%side%", "left"), nil
	}
	rec := &processtest.Recorder{}
	e := New(mem, rec, nil, opts)

	result, _, err := e.Compare(context.Background(), []models.FolderPairCfg{
		pairCfg("/m/%side%", "[MISSING]/x", models.CompareTimeSize),
	})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result[0].LeftRoot != "/m/left" {
		t.Errorf("LeftRoot = %q, want /m/left", result[0].LeftRoot)
	}
	if result[0].RightExists {
		t.Error("unresolved phrase should be treated as missing")
	}
}

func TestSessionKeepsPreviousResult(t *testing.T) {
	s := NewSession(New(scenarioProvider(), nil, nil, testOptions()))
	cfgs := []models.FolderPairCfg{pairCfg("/m/left", "/m/right", models.CompareTimeSize)}

	if res, _ := s.Result(); res != nil {
		t.Fatal("new session has a result")
	}
	if err := s.Run(context.Background(), cfgs); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	first, firstStats := s.Result()
	if len(first) != 1 {
		t.Fatalf("len(Result()) = %d, want 1", len(first))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx, append(cfgs, cfgs...)); !errors.Is(err, ErrAborted) {
		t.Fatalf("Run() error = %v, want ErrAborted", err)
	}
	second, secondStats := s.Result()
	if len(second) != 1 || second[0] != first[0] || secondStats != firstStats {
		t.Error("failed run replaced the previous result")
	}
}

func TestSessionRecoversPanic(t *testing.T) {
	opts := testOptions()
	opts.ResolvePhrase = func(string) (string, error) { panic("out of memory") }
	s := NewSession(New(scenarioProvider(), nil, nil, opts))

	err := s.Run(context.Background(), []models.FolderPairCfg{pairCfg("/m/left", "/m/right", models.CompareTimeSize)})
	if !errors.Is(err, ErrAborted) {
		t.Errorf("Run() error = %v, want ErrAborted", err)
	}
	if res, _ := s.Result(); res != nil {
		t.Error("panicking run published a result")
	}
}
