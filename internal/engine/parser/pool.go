package parser

import (
	"sync"
	"sync/atomic"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ParserPool hands out tree-sitter parsers bound to one grammar. Parsers are
// not safe for concurrent use, so each Parse call leases its own.
type ParserPool struct {
	lang  *sitter.Language
	idle  sync.Pool
	inUse atomic.Int64
}

func NewParserPool(lang *sitter.Language) *ParserPool {
	return &ParserPool{
		lang: lang,
		idle: sync.Pool{New: func() any { return sitter.NewParser() }},
	}
}

func (p *ParserPool) lease() *sitter.Parser {
	sp := p.idle.Get().(*sitter.Parser)
	// Reset clears the language, and a fresh parser has none.
	_ = sp.SetLanguage(p.lang)
	p.inUse.Add(1)
	return sp
}

func (p *ParserPool) release(sp *sitter.Parser) {
	if sp == nil {
		return
	}
	p.inUse.Add(-1)
	sp.Reset()
	p.idle.Put(sp)
}

// InUse reports how many parsers are leased right now.
func (p *ParserPool) InUse() int {
	return int(p.inUse.Load())
}

// Parse parses src with a leased parser. The caller owns the returned tree
// and must Close it.
func (p *ParserPool) Parse(src []byte) *sitter.Tree {
	sp := p.lease()
	defer p.release(sp)
	return sp.Parse(src, nil)
}
