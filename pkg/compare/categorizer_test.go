package compare

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/sdejongh/dircompare/pkg/models"
	"github.com/sdejongh/dircompare/pkg/storage"
)

var runStart = time.Unix(1_700_000_000, 0)

func side(name string, size uint64, mod int64) models.SideInfo {
	return models.SideInfo{Exists: true, ShortName: name, Size: size, ModTime: mod}
}

func addFile(pair *models.BaseDirPair, parent models.NodeID, left, right models.SideInfo) models.NodeID {
	id := pair.Tree.Add(parent, models.Node{Kind: models.KindFile, Left: left, Right: right, Category: models.FileEqual, Active: true})
	pair.UndefinedFiles = append(pair.UndefinedFiles, id)
	return id
}

func addLink(pair *models.BaseDirPair, parent models.NodeID, left, right models.SideInfo) models.NodeID {
	id := pair.Tree.Add(parent, models.Node{Kind: models.KindSymlink, Left: left, Right: right, Category: models.FileEqual, Active: true})
	pair.UndefinedLinks = append(pair.UndefinedLinks, id)
	return id
}

func TestCompareFileTimes(t *testing.T) {
	invalidAfter := runStart.Add(InvalidTimeMargin).Unix()
	T := runStart.Unix()

	tests := []struct {
		name      string
		l, r      int64
		tolerance int64
		shifts    []int
		want      TimeResult
	}{
		{"Identical", T, T, 2, nil, TimeEqual},
		{"WithinTolerance", T, T + 2, 2, nil, TimeEqual},
		{"BeyondTolerance", T, T + 3, 2, nil, TimeRightNewer},
		{"LeftNewer", T + 100, T, 2, nil, TimeLeftNewer},
		{"DSTShift", T + 3600, T, 2, []int{60}, TimeEqual},
		{"DSTShiftNegative", T, T + 3601, 2, []int{60}, TimeEqual},
		{"ShiftNotConfigured", T + 3600, T, 2, nil, TimeLeftNewer},
		{"LeftFarFuture", invalidAfter + 1, T, 2, nil, TimeLeftInvalid},
		{"RightBeforeEpoch", T, -5, 2, nil, TimeRightInvalid},
		{"BothFutureButEqual", invalidAfter + 10, invalidAfter + 10, 2, nil, TimeEqual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompareFileTimes(tt.l, tt.r, tt.tolerance, tt.shifts, invalidAfter); got != tt.want {
				t.Errorf("CompareFileTimes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestByTimeSize(t *testing.T) {
	T := runStart.Unix()
	future := runStart.Add(2 * InvalidTimeMargin).Unix()

	tests := []struct {
		name        string
		left, right models.SideInfo
		want        models.Category
		description string
	}{
		{"Equal", side("a.txt", 10, T), side("a.txt", 10, T), models.FileEqual, ""},
		{"SameDateDifferentSize", side("a.txt", 10, T), side("a.txt", 20, T+1), models.FileConflict, "same date but a different size"},
		{"LeftNewer", side("a.txt", 10, T+60), side("a.txt", 20, T), models.FileLeftNewer, ""},
		{"RightNewer", side("a.txt", 10, T), side("a.txt", 10, T+60), models.FileRightNewer, ""},
		{"CaseOnly", side("A.txt", 10, T), side("a.txt", 10, T), models.FileDifferentMetadata, "name case"},
		{"InvalidLeft", side("a.txt", 10, future), side("a.txt", 10, T), models.FileConflict, "left side"},
		{"InvalidRight", side("a.txt", 10, T), side("a.txt", 10, future), models.FileConflict, "right side"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair := &models.BaseDirPair{FileTimeTolerance: 2}
			id := addFile(pair, models.NoNode, tt.left, tt.right)
			NewCategorizer(nil, nil, runStart).ByTimeSize(pair)

			n := pair.Tree.Node(id)
			if n.Category != tt.want {
				t.Errorf("Category = %v, want %v", n.Category, tt.want)
			}
			if tt.description == "" && n.Description != "" {
				t.Errorf("Description = %q, want none", n.Description)
			}
			if !strings.Contains(n.Description, tt.description) {
				t.Errorf("Description = %q, want it to mention %q", n.Description, tt.description)
			}
			if len(pair.UndefinedFiles) != 0 {
				t.Error("UndefinedFiles should be cleared")
			}
		})
	}
}

func TestByTimeSizeSymlinksIgnoreSize(t *testing.T) {
	T := runStart.Unix()
	pair := &models.BaseDirPair{}
	id := addLink(pair, models.NoNode, side("l", 3, T), side("l", 9, T))
	NewCategorizer(nil, nil, runStart).ByTimeSize(pair)

	if got := pair.Tree.Node(id).Category; got != models.FileEqual {
		t.Errorf("Category = %v, want equal", got)
	}
}

func TestByTimeSizeSkipsRemoved(t *testing.T) {
	T := runStart.Unix()
	pair := &models.BaseDirPair{}
	dir := pair.Tree.Add(models.NoNode, models.Node{Kind: models.KindDir, Left: side("d", 0, 0), Right: side("d", 0, 0)})
	id := addFile(pair, dir, side("f", 1, T), side("f", 2, T))
	pair.Tree.Remove(dir)

	NewCategorizer(nil, nil, runStart).ByTimeSize(pair)
	if got := pair.Tree.Node(id).Category; got != models.FileEqual {
		t.Errorf("removed node was categorized as %v", got)
	}
}

// Every both-sides object receives exactly one of the categories a
// time and size comparison can produce
func TestByTimeSizeTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	T := runStart.Unix()
	valid := map[models.Category]bool{
		models.FileEqual:             true,
		models.FileLeftNewer:         true,
		models.FileRightNewer:        true,
		models.FileDifferentMetadata: true,
		models.FileConflict:          true,
	}
	names := []string{"x", "X"}
	times := []int64{-1, 0, T, T + 1, T + 3600, T + 10, runStart.Add(2 * InvalidTimeMargin).Unix()}

	pair := &models.BaseDirPair{FileTimeTolerance: 2, IgnoreTimeShiftMinutes: []int{60}}
	for i := 0; i < 500; i++ {
		left := side(names[rng.Intn(2)], uint64(rng.Intn(3)), times[rng.Intn(len(times))])
		right := side(names[rng.Intn(2)], uint64(rng.Intn(3)), times[rng.Intn(len(times))])
		id := pair.Tree.Add(models.NoNode, models.Node{Kind: models.KindFile, Left: left, Right: right, Category: models.Category(-1), Active: true})
		pair.UndefinedFiles = append(pair.UndefinedFiles, id)
	}
	NewCategorizer(nil, nil, runStart).ByTimeSize(pair)

	pair.Tree.Walk(func(id models.NodeID, n *models.Node) bool {
		if !valid[n.Category] {
			t.Errorf("node %d got category %v", id, n.Category)
		}
		if (n.Category == models.FileConflict || n.Category == models.FileDifferentMetadata) && n.Description == "" {
			t.Errorf("node %d: %v without description", id, n.Category)
		}
		return true
	})
}

func contentSetup(t *testing.T) (*storage.MemProvider, *models.BaseDirPair, *Categorizer) {
	t.Helper()
	mem := storage.NewMemProvider("/l")
	mem.AddDir("/r", 0)
	pair := &models.BaseDirPair{LeftRoot: "/l", RightRoot: "/r", Variant: models.CompareContent, FileTimeTolerance: 2}
	cat := NewCategorizer(mem, NewContentComparer(mem, DefaultChunkTuning(), nil), runStart)
	return mem, pair, cat
}

func runContent(t *testing.T, cat *Categorizer, pair *models.BaseDirPair) {
	t.Helper()
	ctx := context.Background()
	for _, job := range cat.PrepareContent(ctx, pair) {
		if err := cat.CompareContent(ctx, job, nil); err != nil {
			t.Fatalf("CompareContent() error = %v", err)
		}
	}
}

func TestContentCategorization(t *testing.T) {
	T := runStart.Unix()
	zeros := make([]byte, 5000)
	lastByte := make([]byte, 5000)
	lastByte[4999] = 0xff

	mem, pair, cat := contentSetup(t)
	mem.AddFile("/l/b.bin", zeros, T)
	mem.AddFile("/r/b.bin", lastByte, T)
	mem.AddFile("/l/same", zeros, T)
	mem.AddFile("/r/same", zeros, T)
	mem.AddFile("/l/touched", zeros, T)
	mem.AddFile("/r/touched", zeros, T+500)
	mem.AddFile("/l/Docs/Case", zeros, T)
	mem.AddFile("/r/docs/case", zeros, T)
	mem.AddFile("/l/sizes", zeros, T)
	mem.AddFile("/r/sizes", zeros[:10], T)

	different := addFile(pair, models.NoNode, side("b.bin", 5000, T), side("b.bin", 5000, T))
	same := addFile(pair, models.NoNode, side("same", 5000, T), side("same", 5000, T))
	touched := addFile(pair, models.NoNode, side("touched", 5000, T), side("touched", 5000, T+500))
	dir := pair.Tree.Add(models.NoNode, models.Node{Kind: models.KindDir, Left: side("Docs", 0, 0), Right: side("docs", 0, 0)})
	caseOnly := addFile(pair, dir, side("Case", 5000, T), side("case", 5000, T))
	sizes := addFile(pair, models.NoNode, side("sizes", 5000, T), side("sizes", 10, T))

	runContent(t, cat, pair)

	tests := []struct {
		name string
		id   models.NodeID
		want models.Category
	}{
		{"LastByteDiffers", different, models.FileDifferentContent},
		{"Identical", same, models.FileEqual},
		{"TimeOnly", touched, models.FileDifferentMetadata},
		{"CaseOnly", caseOnly, models.FileDifferentMetadata},
		{"SizeDiffers", sizes, models.FileDifferentContent},
	}
	for _, tt := range tests {
		if got := pair.Tree.Node(tt.id).Category; got != tt.want {
			t.Errorf("%s: Category = %v, want %v", tt.name, got, tt.want)
		}
	}
	if d := pair.Tree.Node(caseOnly).Description; !strings.Contains(d, "case") {
		t.Errorf("case-only description = %q", d)
	}
}

func TestContentInactiveFile(t *testing.T) {
	mem, pair, cat := contentSetup(t)
	mem.AddFile("/l/f", []byte("one"), 0)
	mem.AddFile("/r/f", []byte("two"), 0)
	id := addFile(pair, models.NoNode, side("f", 3, 0), side("f", 3, 0))
	pair.Tree.Node(id).Active = false

	jobs := cat.PrepareContent(context.Background(), pair)
	if len(jobs) != 0 {
		t.Errorf("PrepareContent() queued %d jobs for an excluded file", len(jobs))
	}
	n := pair.Tree.Node(id)
	if n.Category != models.FileConflict {
		t.Errorf("Category = %v, want conflict", n.Category)
	}
	if n.Description == "" {
		t.Error("skipped comparison should be described")
	}
}

func TestContentReadErrorIsConflict(t *testing.T) {
	mem, pair, cat := contentSetup(t)
	mem.AddFile("/l/f", make([]byte, 100), 0)
	mem.AddFile("/r/f", make([]byte, 100), 0)
	mem.FailRead("/r/f", 1)
	id := addFile(pair, models.NoNode, side("f", 100, 0), side("f", 100, 0))

	runContent(t, cat, pair)

	n := pair.Tree.Node(id)
	if n.Category != models.FileConflict {
		t.Errorf("Category = %v, want conflict", n.Category)
	}
	if n.Description == "" {
		t.Error("conflict should carry the error message")
	}
}

func TestContentCancelled(t *testing.T) {
	mem, pair, cat := contentSetup(t)
	mem.AddFile("/l/f", []byte("abc"), 0)
	mem.AddFile("/r/f", []byte("abc"), 0)
	addFile(pair, models.NoNode, side("f", 3, 0), side("f", 3, 0))

	ctx, cancel := context.WithCancel(context.Background())
	jobs := cat.PrepareContent(ctx, pair)
	cancel()
	if err := cat.CompareContent(ctx, jobs[0], nil); err == nil {
		t.Error("CompareContent() should return the cancellation")
	}
}

func TestContentSymlinks(t *testing.T) {
	T := runStart.Unix()
	mem, pair, cat := contentSetup(t)
	mem.AddSymlink("/l/same", "target", T)
	mem.AddSymlink("/r/same", "target", T)
	mem.AddSymlink("/l/moved", "a", T)
	mem.AddSymlink("/r/moved", "b", T)
	mem.AddSymlink("/l/touched", "target", T)
	mem.AddSymlink("/r/touched", "target", T+100)
	mem.AddSymlink("/l/broken", "x", T)
	mem.AddFile("/r/broken", nil, T)

	same := addLink(pair, models.NoNode, side("same", 0, T), side("same", 0, T))
	moved := addLink(pair, models.NoNode, side("moved", 0, T), side("moved", 0, T))
	touched := addLink(pair, models.NoNode, side("touched", 0, T), side("touched", 0, T+100))
	broken := addLink(pair, models.NoNode, side("broken", 0, T), side("broken", 0, T))

	runContent(t, cat, pair)

	tests := []struct {
		name string
		id   models.NodeID
		want models.Category
	}{
		{"SameTarget", same, models.FileEqual},
		{"DifferentTarget", moved, models.FileDifferentContent},
		{"SameTargetNewerLink", touched, models.FileDifferentMetadata},
		{"UnreadableLink", broken, models.FileConflict},
	}
	for _, tt := range tests {
		if got := pair.Tree.Node(tt.id).Category; got != tt.want {
			t.Errorf("%s: Category = %v, want %v", tt.name, got, tt.want)
		}
	}
}
