package parser

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"codeintel/internal/core/errors"
	"codeintel/internal/engine/parser/registry"

	sitter "github.com/tree-sitter/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestCache(capacity int) *Cache {
	return NewCache(registry.MustDefault(), CacheOptions{Capacity: capacity})
}

func TestCache_GetParsesAndCaches(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.py", "import os\n\n\ndef foo():\n    return 1\n")

	c := newTestCache(8)
	defer c.Close()

	ps, err := c.Get(context.Background(), path)
	require.NoError(t, err)
	defer ps.Release()

	assert.Equal(t, registry.Python, ps.Language)
	assert.False(t, ps.HasSyntaxErrors)
	assert.Len(t, ps.Lines(), 5)
	assert.Equal(t, "def foo():", string(ps.Lines()[3]))

	var rootKind string
	require.NoError(t, ps.WithTree(func(root *sitter.Node) error {
		rootKind = root.Kind()
		return nil
	}))
	assert.Equal(t, "module", rootKind)

	again, err := c.Get(context.Background(), path)
	require.NoError(t, err)
	defer again.Release()
	assert.Same(t, ps, again, "unchanged file must be served from cache")
	assert.Equal(t, 1, c.Len())
}

func TestCache_ModTimeChangeReparses(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.py", "x = 1\n")

	c := newTestCache(8)
	defer c.Close()

	first, err := c.Get(context.Background(), path)
	require.NoError(t, err)
	first.Release()

	require.NoError(t, os.WriteFile(path, []byte("x = 1\ny = 2\n"), 0o644))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	second, err := c.Get(context.Background(), path)
	require.NoError(t, err)
	defer second.Release()

	assert.NotSame(t, first, second)
	assert.Len(t, second.Lines(), 2)
	assert.Equal(t, 1, c.Len(), "stale entry for the same path is replaced")
}

func TestCache_ConcurrentGetSharesOneEntry(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")

	c := newTestCache(8)
	defer c.Close()

	const workers = 16
	results := make([]*ParsedSource, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			ps, err := c.Get(context.Background(), path)
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			results[i] = ps
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Same(t, results[0], results[i])
	}
	for _, ps := range results {
		if ps != nil {
			ps.Release()
		}
	}
}

func TestCache_Errors(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(8)
	defer c.Close()

	_, err := c.Get(context.Background(), writeFile(t, dir, "notes.txt", "hello"))
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedLanguage), "got %v", err)

	_, err = c.Get(context.Background(), filepath.Join(dir, "missing.py"))
	assert.True(t, errors.IsCode(err, errors.CodeIO), "got %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Get(ctx, writeFile(t, dir, "ok.py", "x = 1\n"))
	assert.True(t, errors.IsCode(err, errors.CodeCancelled), "got %v", err)
}

func TestCache_MaxFileBytes(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(registry.MustDefault(), CacheOptions{Capacity: 4, MaxFileBytes: 8})
	defer c.Close()

	_, err := c.Get(context.Background(), writeFile(t, dir, "big.py", "value = 'too long for the limit'\n"))
	assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)
}

func TestCache_SyntaxErrorsAreReportedNotFatal(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.py", "def foo(:\n    return\n")

	c := newTestCache(8)
	defer c.Close()

	ps, err := c.Get(context.Background(), path)
	require.NoError(t, err)
	defer ps.Release()
	assert.True(t, ps.HasSyntaxErrors)
}

func TestCache_EvictionKeepsRetainedTreeAlive(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.py", "a = 1\n")
	b := writeFile(t, dir, "b.py", "b = 2\n")

	c := newTestCache(1)
	defer c.Close()

	psA, err := c.Get(context.Background(), a)
	require.NoError(t, err)

	psB, err := c.Get(context.Background(), b)
	require.NoError(t, err)
	defer psB.Release()

	// a.py was evicted by b.py but is still retained.
	require.NoError(t, psA.WithTree(func(root *sitter.Node) error {
		assert.Equal(t, "module", root.Kind())
		return nil
	}))
	psA.Release()
	assert.Error(t, psA.WithTree(func(*sitter.Node) error { return nil }), "tree is freed after release")
}

func TestCache_Invalidate(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.py", "a = 1\n")

	c := newTestCache(4)
	defer c.Close()

	ps, err := c.Get(context.Background(), path)
	require.NoError(t, err)
	ps.Release()

	c.Invalidate(path)
	assert.Equal(t, 0, c.Len())
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(nil))
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, splitLines([]byte("a\r\nb\n")))
	assert.Equal(t, [][]byte{[]byte("a"), []byte(""), []byte("b")}, splitLines([]byte("a\n\nb")))
}
