// Package resolver maps an import string, as written in a source file, to the
// file or directory it refers to inside the project.
package resolver

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"codeintel/internal/engine/imports"
	"codeintel/internal/engine/parser/registry"
)

type TargetKind string

const (
	TargetFile      TargetKind = "file"
	TargetDirectory TargetKind = "directory"
	TargetWorkspace TargetKind = "workspace"
	TargetExternal  TargetKind = "external"
)

// Target is where an import points. Path is absolute and empty for external
// targets. Members lists every file bound by an import naming several
// submodules at once ("from . import a, b"); Path is then the first of them.
type Target struct {
	Kind     TargetKind `json:"kind"`
	Path     string     `json:"path,omitempty"`
	Members  []string   `json:"members,omitempty"`
	Package  string     `json:"package,omitempty"`
	Strategy string     `json:"strategy"`
}

// Resolved reports whether the target lies inside the project.
func (t Target) Resolved() bool {
	return t.Kind != TargetExternal && t.Path != ""
}

// Contains reports whether file is the target, or for directory targets
// (Go packages, Java wildcard imports) one of its direct members.
func (t Target) Contains(file string) bool {
	if !t.Resolved() {
		return false
	}
	file = filepath.Clean(file)
	if t.Kind == TargetDirectory {
		return filepath.Dir(file) == t.Path
	}
	if file == t.Path {
		return true
	}
	for _, m := range t.Members {
		if m == file {
			return true
		}
	}
	return false
}

// Files returns the resolved paths of t: Path, followed by any further
// members.
func (t Target) Files() []string {
	if !t.Resolved() {
		return nil
	}
	out := []string{t.Path}
	for _, m := range t.Members {
		if m != t.Path {
			out = append(out, m)
		}
	}
	return out
}

// Request is one import to resolve.
type Request struct {
	Module     string
	From       string
	Language   registry.Language
	IsRelative bool
	Level      int
	Names      []string
	Kind       string
}

// NewRequest builds a request for imp found in the file at from.
func NewRequest(from string, lang registry.Language, imp imports.Import) Request {
	return Request{
		Module:     imp.Module,
		From:       filepath.Clean(from),
		Language:   lang,
		IsRelative: imp.IsRelative,
		Level:      imp.Level,
		Names:      imp.Names,
		Kind:       imp.Kind,
	}
}

func (r Request) dir() string {
	return filepath.Dir(r.From)
}

func (r Request) wildcard() bool {
	for _, n := range r.Names {
		if n == "*" {
			return true
		}
	}
	return false
}

// Strategy attempts one resolution rule.
type Strategy func(Request, *Context) (Target, bool)

// Step is a named strategy in a resolution chain.
type Step struct {
	Name    string
	Resolve Strategy
}

// DefaultChain is the fixed resolution order. Anything no step claims is
// external.
func DefaultChain() []Step {
	return []Step{
		{Name: "relative", Resolve: Relative},
		{Name: "path_mapping", Resolve: PathMapping},
		{Name: "package_exports", Resolve: PackageExports},
		{Name: "workspace", Resolve: Workspace},
		{Name: "dependency_dir", Resolve: DependencyDir},
	}
}

type memoKey struct {
	module string
	dir    string
	lang   registry.Language
	level  int
	kind   string
	star   bool
	names  string
}

// Resolver runs the chain against a lazily loaded project Context and
// memoises results until Reset.
type Resolver struct {
	root  string
	chain []Step

	mu   sync.Mutex
	ctx  *Context
	memo map[memoKey]Target
}

func New(root string) *Resolver {
	return NewWithChain(root, DefaultChain())
}

func NewWithChain(root string, chain []Step) *Resolver {
	return &Resolver{
		root:  filepath.Clean(root),
		chain: chain,
		memo:  make(map[memoKey]Target),
	}
}

// Root returns the project root this resolver serves.
func (r *Resolver) Root() string {
	return r.root
}

// Context returns the project context, loading it on first use.
func (r *Resolver) Context() *Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contextLocked()
}

func (r *Resolver) contextLocked() *Context {
	if r.ctx == nil {
		ctx, err := LoadContext(r.root)
		if err != nil {
			slog.Warn("project context incomplete", "root", r.root, "error", err)
		}
		r.ctx = ctx
	}
	return r.ctx
}

// Reset forgets the loaded context and every memoised result. Call it when
// manifests or project files change.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx = nil
	r.memo = make(map[memoKey]Target)
}

// Resolve returns the target of req. It never fails: unresolvable imports
// are external.
func (r *Resolver) Resolve(req Request) Target {
	key := memoKey{
		module: req.Module,
		dir:    req.dir(),
		lang:   req.Language,
		level:  req.Level,
		kind:   req.Kind,
		star:   req.wildcard(),
	}
	if req.Level > 0 && req.Module == "" {
		// The imported names pick the submodules.
		key.names = strings.Join(req.Names, ",")
	}
	r.mu.Lock()
	if t, ok := r.memo[key]; ok {
		r.mu.Unlock()
		return t
	}
	ctx := r.contextLocked()
	r.mu.Unlock()

	t := r.run(req, ctx)

	r.mu.Lock()
	r.memo[key] = t
	r.mu.Unlock()
	return t
}

func (r *Resolver) run(req Request, ctx *Context) Target {
	for _, step := range r.chain {
		if t, ok := step.Resolve(req, ctx); ok {
			t.Strategy = step.Name
			if t.Path != "" {
				t.Path = filepath.Clean(t.Path)
			}
			for i, m := range t.Members {
				t.Members[i] = filepath.Clean(m)
			}
			return t
		}
	}
	return Target{Kind: TargetExternal, Package: packageName(req), Strategy: "external"}
}

// packageName is the distribution a bare import belongs to.
func packageName(req Request) string {
	m := req.Module
	switch req.Language {
	case registry.Python:
		return strings.SplitN(m, ".", 2)[0]
	case registry.Rust:
		return strings.SplitN(m, "::", 2)[0]
	case registry.Go, registry.Java:
		return m
	}
	if isScript(req.Language) {
		name, _ := splitPackage(strings.TrimPrefix(m, "node:"))
		return name
	}
	return m
}

// splitPackage separates an npm specifier into package name and subpath,
// keeping scoped names (@scope/name) whole.
func splitPackage(module string) (name, subpath string) {
	parts := strings.Split(module, "/")
	n := 1
	if strings.HasPrefix(module, "@") && len(parts) > 1 {
		n = 2
	}
	if len(parts) <= n {
		return module, ""
	}
	return strings.Join(parts[:n], "/"), strings.Join(parts[n:], "/")
}

func isScript(lang registry.Language) bool {
	switch lang {
	case registry.JavaScript, registry.TypeScript, registry.TSX:
		return true
	}
	return false
}
