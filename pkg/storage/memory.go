package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

type memNode struct {
	kind    EntryKind
	data    []byte
	target  string
	modTime int64
}

// MemProvider is an in-memory DirEntryProvider. It can inject listing and
// metadata failures and control the reported block size, which makes
// traversal and comparison behavior reproducible in tests.
type MemProvider struct {
	mu       sync.Mutex
	nodes    map[string]*memNode
	children map[string][]string

	listFailures map[string]int
	statFailures map[string]int
	readFailures map[string]int

	// BlockSize is reported by opened streams (DefaultBlockSize when 0)
	BlockSize int

	// ListCalls counts ListDirectory invocations per path
	ListCalls map[string]int
}

// NewMemProvider creates a provider containing only the given root directory
func NewMemProvider(root string) *MemProvider {
	p := &MemProvider{
		nodes:        make(map[string]*memNode),
		children:     make(map[string][]string),
		listFailures: make(map[string]int),
		statFailures: make(map[string]int),
		readFailures: make(map[string]int),
		ListCalls:    make(map[string]int),
	}
	p.AddDir(root, 0)
	return p
}

func (p *MemProvider) add(path string, n *memNode) {
	path = filepath.Clean(path)
	if _, exists := p.nodes[path]; !exists {
		parent := filepath.Dir(path)
		if parent != path {
			if _, ok := p.nodes[parent]; !ok {
				p.add(parent, &memNode{kind: EntryDir})
			}
			p.children[parent] = append(p.children[parent], filepath.Base(path))
		}
	}
	p.nodes[path] = n
}

// AddDir creates a directory and missing parents
func (p *MemProvider) AddDir(path string, modTime int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.add(path, &memNode{kind: EntryDir, modTime: modTime})
}

// AddFile creates a file with the given content
func (p *MemProvider) AddFile(path string, data []byte, modTime int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.add(path, &memNode{kind: EntryFile, data: data, modTime: modTime})
}

// AddSymlink creates a symlink pointing to target
func (p *MemProvider) AddSymlink(path, target string, modTime int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.add(path, &memNode{kind: EntrySymlink, target: target, modTime: modTime})
}

// FailList makes the next n listings of path fail (n < 0 fails forever)
func (p *MemProvider) FailList(path string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listFailures[filepath.Clean(path)] = n
}

// FailStat makes the next n metadata reads of path fail (n < 0 fails forever)
func (p *MemProvider) FailStat(path string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statFailures[filepath.Clean(path)] = n
}

// FailRead makes reads of path fail after the first chunk (n < 0 fails forever)
func (p *MemProvider) FailRead(path string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readFailures[filepath.Clean(path)] = n
}

func consume(failures map[string]int, path string) bool {
	n, ok := failures[path]
	if !ok || n == 0 {
		return false
	}
	if n > 0 {
		failures[path] = n - 1
	}
	return true
}

// ListDirectory returns the children of path in name order
func (p *MemProvider) ListDirectory(ctx context.Context, path string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	path = filepath.Clean(path)
	p.ListCalls[path]++
	if consume(p.listFailures, path) {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, fs.ErrPermission)
	}
	resolved, err := p.realPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory %s: %w", path, err)
	}
	if p.nodes[resolved].kind != EntryDir {
		return nil, fmt.Errorf("failed to open directory %s: %w", path, ErrNotDirectory)
	}

	names := append([]string(nil), p.children[resolved]...)
	sort.Strings(names)
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		full := filepath.Join(path, name)
		if consume(p.statFailures, full) {
			entries = append(entries, Entry{Name: name, Err: fmt.Errorf("failed to read metadata: %w", fs.ErrPermission)})
			continue
		}
		entries = append(entries, p.entry(name, p.nodes[filepath.Join(resolved, name)]))
	}
	return entries, nil
}

func (p *MemProvider) entry(name string, n *memNode) Entry {
	e := Entry{Name: name, Kind: n.kind, ModTime: n.modTime}
	if n.kind == EntryFile {
		e.Size = uint64(len(n.data))
	}
	return e
}

// Lstat returns metadata of path without following a final symlink
func (p *MemProvider) Lstat(ctx context.Context, path string) (Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path = filepath.Clean(path)
	if consume(p.statFailures, path) {
		return Entry{}, fmt.Errorf("failed to stat %s: %w", path, fs.ErrPermission)
	}
	n, err := p.lookup(path)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return p.entry(filepath.Base(path), n), nil
}

// Stat returns metadata of path following symlinks
func (p *MemProvider) Stat(ctx context.Context, path string) (Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path = filepath.Clean(path)
	if consume(p.statFailures, path) {
		return Entry{}, fmt.Errorf("failed to stat %s: %w", path, fs.ErrPermission)
	}
	resolved, err := p.realPath(path)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return p.entry(filepath.Base(resolved), p.nodes[resolved]), nil
}

// lookup returns the node at path, following links in all but the last element
func (p *MemProvider) lookup(path string) (*memNode, error) {
	parent := filepath.Dir(path)
	if parent == path {
		if n, ok := p.nodes[path]; ok {
			return n, nil
		}
		return nil, fs.ErrNotExist
	}
	realParent, err := p.realPath(parent)
	if err != nil {
		return nil, err
	}
	n, ok := p.nodes[filepath.Join(realParent, filepath.Base(path))]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return n, nil
}

// realPath resolves every symlink along path
func (p *MemProvider) realPath(path string) (string, error) {
	cur := string(filepath.Separator)
	if vol := filepath.VolumeName(path); vol != "" {
		cur = vol + cur
		path = path[len(vol):]
	}
	if _, ok := p.nodes[cur]; !ok {
		return "", fs.ErrNotExist
	}
	hops := 0
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == "" {
			continue
		}
		next := filepath.Join(cur, part)
		for {
			n, ok := p.nodes[next]
			if !ok {
				return "", fs.ErrNotExist
			}
			if n.kind != EntrySymlink {
				break
			}
			if hops++; hops > 40 {
				return "", fmt.Errorf("too many levels of symbolic links")
			}
			target := n.target
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(next), target)
			}
			resolved, err := p.realPath(filepath.Clean(target))
			if err != nil {
				return "", err
			}
			next = resolved
		}
		cur = next
	}
	return cur, nil
}

// ReadLink returns the raw target of a symlink
func (p *MemProvider) ReadLink(ctx context.Context, path string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path = filepath.Clean(path)
	n, err := p.lookup(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlink %s: %w", path, err)
	}
	if n.kind != EntrySymlink {
		return "", fmt.Errorf("failed to resolve symlink %s: not a symlink", path)
	}
	return n.target, nil
}

// OpenForRead opens a file for reading
func (p *MemProvider) OpenForRead(ctx context.Context, path string) (ReadStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path = filepath.Clean(path)
	resolved, err := p.realPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	n := p.nodes[resolved]
	if n.kind != EntryFile {
		return nil, fmt.Errorf("failed to open file %s: is a directory", path)
	}

	blockSize := p.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	stream := &memStream{Reader: bytes.NewReader(n.data), blockSize: blockSize}
	if consume(p.readFailures, path) {
		stream.failAfter = 1
	}
	return stream, nil
}

// errInjectedRead is returned by streams of files marked with FailRead
var errInjectedRead = errors.New("input/output error")

type memStream struct {
	*bytes.Reader
	blockSize int
	failAfter int
	reads     int
}

func (s *memStream) Read(b []byte) (int, error) {
	if s.failAfter > 0 && s.reads >= s.failAfter {
		return 0, fmt.Errorf("failed to read file: %w", errInjectedRead)
	}
	s.reads++
	return s.Reader.Read(b)
}

func (s *memStream) Close() error {
	return nil
}

func (s *memStream) OptimalBlockSize() int {
	return s.blockSize
}
