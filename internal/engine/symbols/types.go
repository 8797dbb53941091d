// Package symbols builds per-file scope trees and resolves identifier
// occurrences to the symbols they denote.
package symbols

import (
	"codeintel/internal/engine/parser/registry"
)

// Visibility classifies where a symbol is bound.
type Visibility string

const (
	VisibilityGlobal    Visibility = "global"
	VisibilityLocal     Visibility = "local"
	VisibilityParameter Visibility = "parameter"
	VisibilityMember    Visibility = "member"
	VisibilityInstance  Visibility = "instance"
)

// NoSymbol marks an occurrence that no scope binds.
const NoSymbol = -1

// Scope is one node of a file's scope tree. Parent is an index into the
// owning FileIndex.Scopes, or -1 for the module scope.
type Scope struct {
	ID        int                `json:"id"`
	Kind      registry.ScopeKind `json:"kind"`
	Parent    int                `json:"parent"`
	Name      string             `json:"name,omitempty"`
	StartByte uint               `json:"-"`
	EndByte   uint               `json:"-"`
	// Symbols are bound directly in this scope, in source order.
	Symbols []int `json:"symbols"`

	names map[string]int
}

// Symbol is a named definition bound in exactly one scope.
type Symbol struct {
	ID            int                 `json:"id"`
	Name          string              `json:"name"`
	QualifiedName string              `json:"qualified_name"`
	Kind          registry.SymbolKind `json:"kind"`
	Scope         int                 `json:"scope"`
	Visibility    Visibility          `json:"visibility"`
	Line          int                 `json:"line"`
	Column        int                 `json:"column"`
	EndColumn     int                 `json:"end_column"`
	StartByte     uint                `json:"-"`
	EndByte       uint                `json:"-"`
	Docstring     string              `json:"docstring,omitempty"`
	// Import marks a name bound by an import statement rather than defined here.
	Import bool `json:"import,omitempty"`
}

// Reference is one identifier occurrence in a file.
type Reference struct {
	Name         string `json:"name"`
	Line         int    `json:"line"`
	Column       int    `json:"column"`
	EndColumn    int    `json:"end_column"`
	StartByte    uint   `json:"-"`
	EndByte      uint   `json:"-"`
	Scope        int    `json:"scope"`
	Resolved     int    `json:"resolved"`
	IsDefinition bool   `json:"is_definition"`
}

// FileIndex holds everything derived from one parsed file.
type FileIndex struct {
	Path       string            `json:"path"`
	Language   registry.Language `json:"language"`
	Scopes     []Scope           `json:"scopes"`
	Symbols    []Symbol          `json:"symbols"`
	References []Reference       `json:"references"`

	classVisible bool
}

// Definitions returns every symbol named name that is defined in this file.
// Import bindings are not definitions.
func (f *FileIndex) Definitions(name string) []Symbol {
	var out []Symbol
	for _, s := range f.Symbols {
		if s.Name == name && !s.Import {
			out = append(out, s)
		}
	}
	return out
}

// Occurrences returns every identifier occurrence of name in source order.
func (f *FileIndex) Occurrences(name string) []Reference {
	var out []Reference
	for _, r := range f.References {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// Resolve returns the symbol ref denotes.
func (f *FileIndex) Resolve(ref Reference) (Symbol, bool) {
	if ref.Resolved < 0 || ref.Resolved >= len(f.Symbols) {
		return Symbol{}, false
	}
	return f.Symbols[ref.Resolved], true
}

// Lookup walks from scope to the module root and returns the innermost
// symbol bound to name, or NoSymbol. Unless the language says otherwise, a
// class body is only searched by code written directly in it.
func (f *FileIndex) Lookup(scope int, name string) int {
	for id := scope; id >= 0; id = f.Scopes[id].Parent {
		sc := f.Scopes[id]
		if sc.Kind == registry.ScopeClass && id != scope && !f.classVisible {
			continue
		}
		if sym, ok := sc.names[name]; ok {
			return sym
		}
	}
	return NoSymbol
}

// ScopeKind returns the kind of a scope id, or "" when out of range.
func (f *FileIndex) ScopeKind(id int) registry.ScopeKind {
	if id < 0 || id >= len(f.Scopes) {
		return ""
	}
	return f.Scopes[id].Kind
}

// Root returns the module scope id.
func (f *FileIndex) Root() int {
	if len(f.Scopes) == 0 {
		return NoSymbol
	}
	return 0
}
