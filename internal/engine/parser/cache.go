package parser

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeintel/internal/core/errors"
	"codeintel/internal/engine/parser/registry"
	"codeintel/internal/shared/observability"

	"golang.org/x/sync/singleflight"
)

var errTreeReleased = stderrors.New("syntax tree released")

const DefaultCacheSize = 512

// CacheOptions tunes the syntax tree cache.
type CacheOptions struct {
	// Capacity bounds the number of parsed files held at once.
	Capacity int
	// MaxFileBytes rejects larger files with a VALIDATION_ERROR; 0 disables.
	MaxFileBytes int64
}

// Cache parses files on demand and memoises the result per (path, mtime,
// size). Concurrent requests for the same key share a single parse.
type Cache struct {
	loader  *GrammarLoader
	opts    CacheOptions
	entries *LRUCache[string, *ParsedSource]
	group   singleflight.Group

	mu     sync.Mutex
	latest map[string]string // path -> key of the newest entry
}

func NewCache(reg *registry.Registry, opts CacheOptions) *Cache {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCacheSize
	}
	c := &Cache{
		loader: NewGrammarLoader(reg),
		opts:   opts,
		latest: make(map[string]string),
	}
	c.entries = NewLRUCache[string, *ParsedSource](opts.Capacity, c.onEvict)
	return c
}

// Registry returns the language registry used to route files.
func (c *Cache) Registry() *registry.Registry {
	return c.loader.Registry()
}

// Get returns the parsed form of path. The returned entry is retained and
// must be handed back with Release.
//
// Errors are DomainErrors: UNSUPPORTED_LANGUAGE for files with no grammar,
// IO_ERROR for unreadable files, PARSE_ERROR when no tree could be produced.
// Recoverable syntax errors do not fail the call; they are reported through
// ParsedSource.HasSyntaxErrors.
func (c *Cache) Get(ctx context.Context, path string) (*ParsedSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCancelled, "parse cancelled")
	}

	path = filepath.Clean(path)
	desc, ok := c.loader.Registry().Resolve(path)
	if !ok {
		return nil, errors.AddContext(errors.New(errors.CodeUnsupportedLanguage, "no grammar for file"), errors.CtxPath, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "stat file"), errors.CtxPath, path)
	}
	if info.IsDir() {
		return nil, errors.AddContext(errors.New(errors.CodeIO, "path is a directory"), errors.CtxPath, path)
	}
	if c.opts.MaxFileBytes > 0 && info.Size() > c.opts.MaxFileBytes {
		return nil, errors.AddContext(
			errors.New(errors.CodeValidationError, fmt.Sprintf("file exceeds %d bytes", c.opts.MaxFileBytes)),
			errors.CtxPath, path)
	}

	key := cacheKey(path, info)
	for attempt := 0; attempt < 3; attempt++ {
		if ps, ok := c.entries.Get(key); ok && ps.retainIfLive() {
			observability.SyntaxCacheRequests.WithLabelValues("hit").Inc()
			slog.Debug("syntax cache hit", "path", path)
			return ps, nil
		}

		v, err, shared := c.group.Do(key, func() (any, error) {
			return c.load(path, key, desc, info)
		})
		if err != nil {
			return nil, err
		}
		if shared {
			observability.SyntaxCacheRequests.WithLabelValues("shared").Inc()
		} else {
			observability.SyntaxCacheRequests.WithLabelValues("miss").Inc()
		}
		ps := v.(*ParsedSource)
		if ps.retainIfLive() {
			return ps, nil
		}
		// Evicted between publish and retain under heavy pressure; parse again.
	}
	return nil, errors.AddContext(errors.New(errors.CodeInternal, "syntax cache thrashing"), errors.CtxPath, path)
}

func (c *Cache) load(path, key string, desc registry.Descriptor, info os.FileInfo) (*ParsedSource, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "read file"), errors.CtxPath, path)
	}

	pool, err := c.loader.Pool(desc.ID)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeUnsupportedLanguage, "load grammar"), errors.CtxLanguage, string(desc.ID))
	}

	start := time.Now()
	tree := pool.Parse(content)
	observability.ParsingDuration.WithLabelValues(string(desc.ID)).Observe(time.Since(start).Seconds())
	if tree == nil {
		return nil, errors.AddContext(errors.New(errors.CodeParse, "parser produced no tree"), errors.CtxPath, path)
	}

	ps := newParsedSource(path, desc, content, info.ModTime(), info.Size(), tree)
	slog.Debug("parsed file", "path", path, "language", desc.ID, "syntax_errors", ps.HasSyntaxErrors)

	c.mu.Lock()
	previous := c.latest[path]
	c.latest[path] = key
	c.mu.Unlock()

	c.entries.Put(key, ps)
	if previous != "" && previous != key {
		c.entries.Evict(previous)
	}
	observability.SyntaxCacheEntries.Set(float64(c.entries.Len()))
	return ps, nil
}

// Invalidate drops the cached entry for path, if any.
func (c *Cache) Invalidate(path string) {
	path = filepath.Clean(path)
	c.mu.Lock()
	key, ok := c.latest[path]
	delete(c.latest, path)
	c.mu.Unlock()
	if ok {
		c.entries.Evict(key)
	}
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Close releases every cached tree. Entries still retained by callers are
// freed when they are released.
func (c *Cache) Close() {
	c.entries.Clear()
}

func (c *Cache) onEvict(key string, ps *ParsedSource) {
	c.mu.Lock()
	if c.latest[ps.Path] == key {
		delete(c.latest, ps.Path)
	}
	c.mu.Unlock()
	ps.evict()
	observability.SyntaxCacheEntries.Set(float64(c.entries.Len()))
}

func cacheKey(path string, info os.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size())
}
