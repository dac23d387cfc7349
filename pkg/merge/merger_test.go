package merge

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/sdejongh/dircompare/pkg/models"
)

// randomContainer builds a sorted container with names drawn from a small
// alphabet so that both sides overlap
func randomContainer(rng *rand.Rand, depth int) *models.DirContainer {
	c := models.NewDirContainer()
	seen := map[string]bool{}
	pick := func(prefix string) (string, bool) {
		name := fmt.Sprintf("%s%d", prefix, rng.Intn(8))
		if seen[name] {
			return "", false
		}
		seen[name] = true
		return name, true
	}
	for i := rng.Intn(6); i > 0; i-- {
		if name, ok := pick("f"); ok {
			c.AddFile(name, models.FileAttributes{Size: uint64(rng.Intn(100)), ModTime: int64(rng.Intn(1000))})
		}
	}
	for i := rng.Intn(3); i > 0; i-- {
		if name, ok := pick("l"); ok {
			c.AddLink(name, models.SymlinkAttributes{ModTime: int64(rng.Intn(1000))})
		}
	}
	if depth > 0 {
		for i := rng.Intn(3); i > 0; i-- {
			if name, ok := pick("d"); ok {
				*c.AddDir(name) = *randomContainer(rng, depth-1)
			}
		}
	}
	c.Sort(models.CompareNamesExact)
	return c
}

func nameSet(c *models.DirContainer) (files, links, dirs map[string]bool) {
	files, links, dirs = map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, f := range c.Files {
		files[f.Name] = true
	}
	for _, l := range c.Links {
		links[l.Name] = true
	}
	for _, d := range c.Dirs {
		dirs[d.Name] = true
	}
	return files, links, dirs
}

// checkLevel verifies one directory level of the merge against both inputs
func checkLevel(t *testing.T, pair *models.BaseDirPair, parent models.NodeID, left, right *models.DirContainer) {
	t.Helper()
	if left == nil {
		left = models.NewDirContainer()
	}
	if right == nil {
		right = models.NewDirContainer()
	}
	lf, ll, ld := nameSet(left)
	rf, rl, rd := nameSet(right)

	got := map[models.ObjectKind]map[string]models.NodeID{
		models.KindFile:    {},
		models.KindSymlink: {},
		models.KindDir:     {},
	}
	for _, id := range pair.Tree.Children(parent) {
		n := pair.Tree.Node(id)
		if _, dup := got[n.Kind][n.Name()]; dup {
			t.Errorf("%s %q merged twice", n.Kind, n.Name())
		}
		got[n.Kind][n.Name()] = id
	}

	expect := func(kind models.ObjectKind, l, r map[string]bool) {
		union := map[string]bool{}
		for k := range l {
			union[k] = true
		}
		for k := range r {
			union[k] = true
		}
		if len(got[kind]) != len(union) {
			t.Errorf("%s count = %d, want %d", kind, len(got[kind]), len(union))
		}
		for name := range union {
			id, ok := got[kind][name]
			if !ok {
				t.Errorf("%s %q missing from merge", kind, name)
				continue
			}
			n := pair.Tree.Node(id)
			switch {
			case l[name] && r[name]:
				if !n.BothSides() {
					t.Errorf("%s %q should exist on both sides", kind, name)
				}
			case l[name]:
				if n.Category != models.FileLeftSideOnly || n.Right.Exists {
					t.Errorf("%s %q category = %v, want left_only", kind, name, n.Category)
				}
			default:
				if n.Category != models.FileRightSideOnly || n.Left.Exists {
					t.Errorf("%s %q category = %v, want right_only", kind, name, n.Category)
				}
			}
		}
	}
	expect(models.KindFile, lf, rf)
	expect(models.KindSymlink, ll, rl)
	expect(models.KindDir, ld, rd)

	sub := func(c *models.DirContainer, name string) *models.DirContainer {
		for _, d := range c.Dirs {
			if d.Name == name {
				return d.Sub
			}
		}
		return nil
	}
	for name, id := range got[models.KindDir] {
		checkLevel(t, pair, id, sub(left, name), sub(right, name))
	}
}

func TestMergeCompleteness(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		left := randomContainer(rng, 3)
		right := randomContainer(rng, 3)
		pair := &models.BaseDirPair{}
		NewMerger(false).Merge(left, right, pair)

		checkLevel(t, pair, models.NoNode, left, right)

		for _, id := range pair.UndefinedFiles {
			if n := pair.Tree.Node(id); n.Kind != models.KindFile || !n.BothSides() {
				t.Errorf("undefined file %d is not a both-sides file", id)
			}
		}
		for _, id := range pair.UndefinedLinks {
			if n := pair.Tree.Node(id); n.Kind != models.KindSymlink || !n.BothSides() {
				t.Errorf("undefined link %d is not a both-sides symlink", id)
			}
		}
	}
}

func TestMergeDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	left := randomContainer(rng, 3)
	right := randomContainer(rng, 3)

	flatten := func() []string {
		pair := &models.BaseDirPair{}
		NewMerger(false).Merge(left, right, pair)
		var out []string
		pair.Tree.Walk(func(id models.NodeID, n *models.Node) bool {
			out = append(out, fmt.Sprintf("%d:%s:%s:%v", id, n.Kind, pair.Tree.RelativePath(id), n.Category))
			return true
		})
		out = append(out, fmt.Sprint(pair.UndefinedFiles), fmt.Sprint(pair.UndefinedLinks))
		return out
	}

	first, second := flatten(), flatten()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("merge output differs between runs:\n%v\n%v", first, second)
	}
}

func TestMergeRightOnlyFile(t *testing.T) {
	right := models.NewDirContainer()
	right.AddFile("c.txt", models.FileAttributes{Size: 3, ModTime: 100})

	pair := &models.BaseDirPair{}
	NewMerger(false).Merge(models.NewDirContainer(), right, pair)

	roots := pair.Tree.Children(models.NoNode)
	if len(roots) != 1 {
		t.Fatalf("top level = %d nodes, want 1", len(roots))
	}
	n := pair.Tree.Node(roots[0])
	if n.Category != models.FileRightSideOnly {
		t.Errorf("Category = %v, want right_only", n.Category)
	}
	if !n.Active {
		t.Error("right-only file should be active")
	}
	if n.Right.Size != 3 || n.Right.ModTime != 100 {
		t.Errorf("right side = %+v, want size 3 time 100", n.Right)
	}
	if len(pair.UndefinedFiles) != 0 {
		t.Errorf("UndefinedFiles = %v, want none", pair.UndefinedFiles)
	}
}

func TestMergeMissingSide(t *testing.T) {
	left := models.NewDirContainer()
	sub := left.AddDir("sub")
	sub.AddFile("x", models.FileAttributes{})

	pair := &models.BaseDirPair{}
	NewMerger(false).Merge(left, nil, pair)

	var cats []models.Category
	pair.Tree.Walk(func(id models.NodeID, n *models.Node) bool {
		cats = append(cats, n.Category)
		return true
	})
	want := []models.Category{models.FileLeftSideOnly, models.FileLeftSideOnly}
	if !reflect.DeepEqual(cats, want) {
		t.Errorf("categories = %v, want %v", cats, want)
	}
}

func TestMergeCaseOnlyDifference(t *testing.T) {
	left := models.NewDirContainer()
	left.AddDir("Docs").AddFile("A.txt", models.FileAttributes{Size: 1})
	right := models.NewDirContainer()
	right.AddDir("docs").AddFile("a.txt", models.FileAttributes{Size: 1})

	pair := &models.BaseDirPair{}
	NewMerger(true).Merge(left, right, pair)

	roots := pair.Tree.Children(models.NoNode)
	if len(roots) != 1 {
		t.Fatalf("top level = %d nodes, want 1 merged directory", len(roots))
	}
	dir := pair.Tree.Node(roots[0])
	if dir.Category != models.FileDifferentMetadata {
		t.Errorf("directory Category = %v, want different_metadata", dir.Category)
	}
	if dir.Description == "" {
		t.Error("case difference should carry a description")
	}
	if dir.Name() != "Docs" {
		t.Errorf("Name() = %q, want left name Docs", dir.Name())
	}
	if len(pair.UndefinedFiles) != 1 {
		t.Fatalf("UndefinedFiles = %d, want 1", len(pair.UndefinedFiles))
	}
	if got := pair.Tree.RelativePath(pair.UndefinedFiles[0]); got != "Docs/A.txt" {
		t.Errorf("RelativePath() = %q, want Docs/A.txt", got)
	}
}
