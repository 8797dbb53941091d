package parser

import (
	"bytes"
	"sync"
	"time"

	"codeintel/internal/engine/parser/registry"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ParsedSource is one parsed file. It is published by the Cache and never
// mutated afterwards; a changed file produces a new ParsedSource.
//
// The syntax tree is owned by the cache. Callers obtain it through WithTree,
// which serialises tree access and keeps the tree alive while in use even if
// the entry is evicted concurrently.
type ParsedSource struct {
	Path       string
	Language   registry.Language
	Descriptor registry.Descriptor
	Content    []byte
	ModTime    time.Time
	Size       int64
	// HasSyntaxErrors is set when the grammar recovered from malformed input.
	HasSyntaxErrors bool

	lines [][]byte
	once  sync.Once

	tree    *sitter.Tree
	mu      sync.Mutex
	refs    int
	evicted bool
}

func newParsedSource(path string, desc registry.Descriptor, content []byte, modTime time.Time, size int64, tree *sitter.Tree) *ParsedSource {
	return &ParsedSource{
		Path:            path,
		Language:        desc.ID,
		Descriptor:      desc,
		Content:         content,
		ModTime:         modTime,
		Size:            size,
		HasSyntaxErrors: tree.RootNode().HasError(),
		tree:            tree,
	}
}

// WithTree runs fn with the root node. The node is only valid inside fn.
func (ps *ParsedSource) WithTree(fn func(root *sitter.Node) error) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.tree == nil {
		return errTreeReleased
	}
	return fn(ps.tree.RootNode())
}

// Lines returns the content split on newlines, materialised once.
func (ps *ParsedSource) Lines() [][]byte {
	ps.once.Do(func() {
		ps.lines = splitLines(ps.Content)
	})
	return ps.lines
}

// retainIfLive marks the entry as in use by a caller outside the cache. It
// fails once the tree has been freed.
func (ps *ParsedSource) retainIfLive() bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.tree == nil {
		return false
	}
	ps.refs++
	return true
}

// Release hands a retained entry back. The tree is freed once the entry has
// been evicted and no caller holds it.
func (ps *ParsedSource) Release() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.refs > 0 {
		ps.refs--
	}
	ps.closeIfUnusedLocked()
}

func (ps *ParsedSource) evict() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.evicted = true
	ps.closeIfUnusedLocked()
}

func (ps *ParsedSource) closeIfUnusedLocked() {
	if ps.evicted && ps.refs == 0 && ps.tree != nil {
		ps.tree.Close()
		ps.tree = nil
	}
}

func splitLines(content []byte) [][]byte {
	if len(content) == 0 {
		return nil
	}
	lines := bytes.Split(content, []byte("\n"))
	// A trailing newline terminates the last line rather than starting a new one.
	if len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = bytes.TrimSuffix(l, []byte("\r"))
	}
	return lines
}
