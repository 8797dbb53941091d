package graph

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"codeintel/internal/core/errors"
	"codeintel/internal/engine/imports"
	"codeintel/internal/engine/parser"
	"codeintel/internal/engine/resolver"
)

const (
	DefaultDepth = 1
	MaxDepth     = 10
)

// Analyzer extracts and resolves imports through the shared syntax tree
// cache and remembers the edges per file version.
type Analyzer struct {
	cache    *parser.Cache
	resolver *resolver.Resolver
	graph    *Graph
}

func NewAnalyzer(cache *parser.Cache, res *resolver.Resolver) *Analyzer {
	return &Analyzer{cache: cache, resolver: res, graph: New()}
}

// Resolver exposes the resolver so callers can reset it when manifests
// change.
func (a *Analyzer) Resolver() *resolver.Resolver {
	return a.resolver
}

// CachedFiles returns how many files have their imports cached.
func (a *Analyzer) CachedFiles() int {
	return a.graph.FileCount()
}

// Invalidate forgets the edges of path.
func (a *Analyzer) Invalidate(path string) {
	a.graph.RemoveFile(filepath.Clean(path))
}

// Reset forgets every edge and the resolver's project context.
func (a *Analyzer) Reset() {
	a.graph.Clear()
	a.resolver.Reset()
}

// Imports parses path and returns its imports in source order, each with its
// resolved target.
func (a *Analyzer) Imports(ctx context.Context, path string) ([]ImportEdge, error) {
	ps, err := a.cache.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer ps.Release()

	if edges, ok := a.graph.lookup(ps.Path, ps.ModTime, ps.Size); ok {
		return edges, nil
	}

	raw, err := imports.Extract(ps)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeParse, "extract imports"), errors.CtxPath, path)
	}
	edges := make([]ImportEdge, 0, len(raw))
	for _, imp := range raw {
		edges = append(edges, ImportEdge{
			Source:     ps.Path,
			Module:     imp.Module,
			Names:      imp.Names,
			Line:       imp.Line,
			IsRelative: imp.IsRelative,
			Kind:       imp.Kind,
			Target:     a.resolver.Resolve(resolver.NewRequest(ps.Path, ps.Language, imp)),
		})
	}
	a.graph.SetFile(ps.Path, ps.ModTime, ps.Size, edges)
	return edges, nil
}

// Expansion is the result of a bounded breadth-first walk over imports.
type Expansion struct {
	Root  string `json:"root"`
	Depth int    `json:"depth"`
	// Nodes maps each expanded file (or package directory) to the resolved
	// targets it imports, sorted and without duplicates.
	Nodes  map[string][]string `json:"nodes"`
	Cycles [][]string          `json:"cycles,omitempty"`
	// Warnings are files that could not be read or parsed on the way.
	Warnings []errors.Warning `json:"warnings,omitempty"`
}

// NormalizeDepth maps a requested depth onto [1, MaxDepth].
func NormalizeDepth(depth int) int {
	if depth <= 0 {
		return DefaultDepth
	}
	if depth > MaxDepth {
		return MaxDepth
	}
	return depth
}

type queued struct {
	path  string
	depth int
	dir   bool
}

// Expand walks imports breadth-first from root. A node is expanded when it
// sits at most depth hops from root, so depth 1 yields root's imports and
// the imports of each of them.
// Each node is expanded at most once; cycles show up as edges back to nodes
// already present.
func (a *Analyzer) Expand(ctx context.Context, root string, depth int) (*Expansion, error) {
	depth = NormalizeDepth(depth)
	root = filepath.Clean(root)
	out := &Expansion{Root: root, Depth: depth, Nodes: make(map[string][]string)}

	expanded := make(map[string]int)
	queue := []queued{{path: root}}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return out, errors.Wrap(err, errors.CodeCancelled, "graph expansion cancelled")
		}
		cur := queue[0]
		queue = queue[1:]
		if d, seen := expanded[cur.path]; seen && d <= cur.depth {
			continue
		}
		expanded[cur.path] = cur.depth

		members := []string{cur.path}
		if cur.dir {
			members = a.packageMembers(cur.path)
		}
		targets := make(map[string]bool)
		for _, m := range members {
			edges, err := a.Imports(ctx, m)
			if err != nil {
				if m == root {
					return nil, err
				}
				if !errors.IsCode(err, errors.CodeUnsupportedLanguage) {
					out.Warnings = append(out.Warnings, errors.AsWarning(m, err))
				}
				continue
			}
			for _, e := range edges {
				for _, p := range e.Target.Files() {
					if p == cur.path || targets[p] {
						continue
					}
					targets[p] = true
					if cur.depth+1 <= depth {
						queue = append(queue, queued{
							path:  p,
							depth: cur.depth + 1,
							dir:   e.Target.Kind == resolver.TargetDirectory,
						})
					}
				}
			}
		}
		list := make([]string, 0, len(targets))
		for t := range targets {
			list = append(list, t)
		}
		sort.Strings(list)
		out.Nodes[cur.path] = list
	}

	out.Cycles = DetectCycles(out.Nodes)
	errors.SortWarnings(out.Warnings)
	return out, nil
}

// packageMembers lists the parseable files directly inside dir.
func (a *Analyzer) packageMembers(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if _, ok := a.cache.Registry().Resolve(p); ok {
			out = append(out, p)
		}
	}
	return out
}
