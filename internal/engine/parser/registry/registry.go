package registry

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unsafe"
)

// Language is the closed set of languages the engine understands.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
	Go         Language = "go"
	Rust       Language = "rust"
	Java       Language = "java"
	CSS        Language = "css"
	HTML       Language = "html"
)

// DocStyle selects how docstrings are located for a definition.
type DocStyle int

const (
	DocNone DocStyle = iota
	// DocBodyString takes the first string statement of the definition body.
	DocBodyString
	// DocPrecedingComment takes the comment block directly above the definition.
	DocPrecedingComment
)

// SymbolKind classifies a definition node.
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindClass     SymbolKind = "class"
	KindInterface SymbolKind = "interface"
	KindStruct    SymbolKind = "struct"
	KindEnum      SymbolKind = "enum"
	KindType      SymbolKind = "type"
	KindVariable  SymbolKind = "variable"
	KindConstant  SymbolKind = "constant"
	KindParameter SymbolKind = "parameter"
	KindField     SymbolKind = "field"
	KindInstance  SymbolKind = "instance_attribute"
	KindModule    SymbolKind = "module"
)

// ScopeKind classifies a scope-creating node.
type ScopeKind string

const (
	ScopeModule   ScopeKind = "module"
	ScopeClass    ScopeKind = "class"
	ScopeFunction ScopeKind = "function"
	ScopeBlock    ScopeKind = "block"
)

// Descriptor is the per-language capability record. Behaviour differences
// between languages are expressed only through the node kinds listed here.
type Descriptor struct {
	ID         Language
	Extensions []string
	Filenames  []string
	Grammar    func() unsafe.Pointer

	CommentKinds    []string
	CommentPrefixes []string
	// StringKinds are never searched for identifiers, except for the
	// InterpolationKinds children they contain.
	StringKinds        []string
	InterpolationKinds []string
	IdentifierKinds    []string

	DefinitionKinds map[string]SymbolKind
	// TypeRefinements narrows a definition by the kind of its "type" child,
	// e.g. a Go type_spec whose type is a struct_type.
	TypeRefinements map[string]SymbolKind
	NameFields      []string
	ScopeKinds      map[string]ScopeKind
	// ParameterKinds are nodes whose name child binds a parameter in the
	// nearest function scope.
	ParameterKinds []string
	ImportKinds    []string
	// GlobalKinds and NonlocalKinds list statements whose names bind in the
	// module scope or in the nearest enclosing function scope instead of
	// the scope they appear in.
	GlobalKinds   []string
	NonlocalKinds []string
	// SelfNames are receivers such as self/this whose attribute assignments
	// define instance attributes.
	SelfNames []string
	// ClassMembersInScope makes names bound in a class visible to unqualified
	// lookups from its methods.
	ClassMembersInScope bool
	// MemberAccess lists node kinds of the form object.member, keyed by kind.
	MemberAccess map[string]MemberAccess

	DocStyle  DocStyle
	DocPrefix string
	Keywords  []string
}

// MemberAccess names the fields of an object.member node.
type MemberAccess struct {
	Object string
	Member string
}

// Override adjusts a built-in descriptor from configuration.
type Override struct {
	Enabled    *bool
	Extensions []string
	Filenames  []string
}

func (d Descriptor) IsComment(kind string) bool       { return contains(d.CommentKinds, kind) }
func (d Descriptor) IsString(kind string) bool        { return contains(d.StringKinds, kind) }
func (d Descriptor) IsInterpolation(kind string) bool { return contains(d.InterpolationKinds, kind) }
func (d Descriptor) IsIdentifier(kind string) bool    { return contains(d.IdentifierKinds, kind) }
func (d Descriptor) IsImport(kind string) bool        { return contains(d.ImportKinds, kind) }
func (d Descriptor) IsParameter(kind string) bool     { return contains(d.ParameterKinds, kind) }
func (d Descriptor) IsSelf(name string) bool          { return contains(d.SelfNames, name) }
func (d Descriptor) IsGlobal(kind string) bool        { return contains(d.GlobalKinds, kind) }
func (d Descriptor) IsNonlocal(kind string) bool      { return contains(d.NonlocalKinds, kind) }

// Member returns the member access layout for a node kind.
func (d Descriptor) Member(kind string) (MemberAccess, bool) {
	m, ok := d.MemberAccess[kind]
	return m, ok
}

// IsKeyword reports whether name is reserved in this language.
func (d Descriptor) IsKeyword(name string) bool { return contains(d.Keywords, name) }

// Definition returns the symbol kind for a definition node kind.
func (d Descriptor) Definition(kind string) (SymbolKind, bool) {
	k, ok := d.DefinitionKinds[kind]
	return k, ok
}

// Scope returns the scope kind created by a node kind.
func (d Descriptor) Scope(kind string) (ScopeKind, bool) {
	k, ok := d.ScopeKinds[kind]
	return k, ok
}

// Searchable reports whether the language carries symbol information.
func (d Descriptor) Searchable() bool {
	return len(d.IdentifierKinds) > 0
}

// Registry maps file extensions and file names to descriptors. It is built
// once and never mutated afterwards.
type Registry struct {
	byID        map[Language]Descriptor
	byExtension map[string]Language
	byFilename  map[string]Language
}

// New builds a registry from the built-in descriptors with overrides applied.
func New(overrides map[string]Override) (*Registry, error) {
	descriptors := Default()
	for id, ov := range overrides {
		lang := Language(strings.ToLower(strings.TrimSpace(id)))
		d, ok := descriptors[lang]
		if !ok {
			return nil, fmt.Errorf("unknown language %q", id)
		}
		if ov.Enabled != nil && !*ov.Enabled {
			delete(descriptors, lang)
			continue
		}
		if len(ov.Extensions) > 0 {
			d.Extensions = normalizeExtensions(ov.Extensions)
		}
		if len(ov.Filenames) > 0 {
			d.Filenames = normalizeFilenames(ov.Filenames)
		}
		descriptors[lang] = d
	}

	r := &Registry{
		byID:        make(map[Language]Descriptor, len(descriptors)),
		byExtension: make(map[string]Language),
		byFilename:  make(map[string]Language),
	}
	for _, id := range sortedIDs(descriptors) {
		d := descriptors[id]
		for _, ext := range d.Extensions {
			if prev, exists := r.byExtension[ext]; exists {
				return nil, fmt.Errorf("extension %q is claimed by both %s and %s", ext, prev, id)
			}
			r.byExtension[ext] = id
		}
		for _, name := range d.Filenames {
			if prev, exists := r.byFilename[name]; exists {
				return nil, fmt.Errorf("filename %q is claimed by both %s and %s", name, prev, id)
			}
			r.byFilename[name] = id
		}
		r.byID[id] = d
	}
	return r, nil
}

// MustDefault returns a registry with every built-in language enabled.
func MustDefault() *Registry {
	r, err := New(nil)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the descriptor for path. Unknown files yield false and
// must be skipped by the caller.
func (r *Registry) Resolve(path string) (Descriptor, bool) {
	base := strings.ToLower(filepath.Base(path))
	if id, ok := r.byFilename[base]; ok {
		return r.byID[id], true
	}
	ext := strings.ToLower(filepath.Ext(base))
	if ext == "" {
		return Descriptor{}, false
	}
	id, ok := r.byExtension[ext]
	if !ok {
		return Descriptor{}, false
	}
	return r.byID[id], true
}

// Get returns the descriptor for a language id.
func (r *Registry) Get(id Language) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Languages returns enabled language ids in sorted order.
func (r *Registry) Languages() []Language {
	return sortedIDs(r.byID)
}

// Extensions returns every registered extension in sorted order.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func sortedIDs(m map[Language]Descriptor) []Language {
	ids := make([]Language, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if seen[ext] {
			continue
		}
		seen[ext] = true
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func normalizeFilenames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
