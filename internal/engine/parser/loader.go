package parser

import (
	"fmt"
	"sync"

	"codeintel/internal/engine/parser/registry"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// GrammarLoader owns one tree-sitter language handle and parser pool per
// enabled registry language. Handles are created lazily on first use.
type GrammarLoader struct {
	registry *registry.Registry

	mu    sync.Mutex
	pools map[registry.Language]*ParserPool
}

func NewGrammarLoader(reg *registry.Registry) *GrammarLoader {
	return &GrammarLoader{
		registry: reg,
		pools:    make(map[registry.Language]*ParserPool),
	}
}

// Registry returns the registry this loader was built from.
func (gl *GrammarLoader) Registry() *registry.Registry {
	return gl.registry
}

// Pool returns the parser pool for lang.
func (gl *GrammarLoader) Pool(lang registry.Language) (*ParserPool, error) {
	gl.mu.Lock()
	defer gl.mu.Unlock()

	if pool, ok := gl.pools[lang]; ok {
		return pool, nil
	}
	desc, ok := gl.registry.Get(lang)
	if !ok || desc.Grammar == nil {
		return nil, fmt.Errorf("no grammar registered for %s", lang)
	}
	pool := NewParserPool(sitter.NewLanguage(desc.Grammar()))
	gl.pools[lang] = pool
	return pool, nil
}
