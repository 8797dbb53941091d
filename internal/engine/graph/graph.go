// Package graph builds file-level import graphs: the resolved imports of each
// file, their inverse, and bounded breadth-first expansions.
package graph

import (
	"sort"
	"sync"
	"time"

	"codeintel/internal/engine/resolver"
)

// ImportEdge is one import statement of Source together with where it
// resolves.
type ImportEdge struct {
	Source     string          `json:"source_file"`
	Module     string          `json:"imported_module"`
	Names      []string        `json:"imported_names,omitempty"`
	Line       int             `json:"line"`
	IsRelative bool            `json:"is_relative"`
	Kind       string          `json:"kind,omitempty"`
	Target     resolver.Target `json:"target"`
}

type fileEdges struct {
	modTime time.Time
	size    int64
	edges   []ImportEdge
}

// Graph stores the outgoing edges of every file seen so far. A file's edges
// are replaced as a whole when it is re-read, so no stale edge survives an
// edit.
type Graph struct {
	mu    sync.RWMutex
	files map[string]fileEdges
}

func New() *Graph {
	return &Graph{files: make(map[string]fileEdges)}
}

// SetFile records the edges of path as of the given file version.
func (g *Graph) SetFile(path string, modTime time.Time, size int64, edges []ImportEdge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files[path] = fileEdges{modTime: modTime, size: size, edges: edges}
}

// lookup returns the edges of path if they were recorded for this version.
func (g *Graph) lookup(path string, modTime time.Time, size int64) ([]ImportEdge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fe, ok := g.files[path]
	if !ok || !fe.modTime.Equal(modTime) || fe.size != size {
		return nil, false
	}
	return fe.edges, true
}

func (g *Graph) RemoveFile(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.files, path)
}

// Clear drops every recorded file, for example after manifests changed and
// earlier resolutions may be wrong.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files = make(map[string]fileEdges)
}

// Imports returns the recorded edges of path.
func (g *Graph) Imports(path string) []ImportEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.files[path].edges
}

// FileCount returns the number of files whose edges are cached.
func (g *Graph) FileCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.files)
}

// Dependents returns the files among files with an edge resolving to target,
// each with the first such edge. files bounds the search to a scan result so
// the answer is exactly the inverse of Imports over that set.
func Dependents(target string, files []string, importsOf func(string) []ImportEdge) []ImportEdge {
	var out []ImportEdge
	for _, f := range files {
		for _, e := range importsOf(f) {
			if e.Target.Contains(target) {
				out = append(out, e)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Line < out[j].Line
	})
	return out
}

// DetectCycles finds the import cycles of an adjacency map, each reported
// once starting from its smallest node in traversal order.
func DetectCycles(adjacency map[string][]string) [][]string {
	nodes := make([]string, 0, len(adjacency))
	for n := range adjacency {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	type frame struct {
		node string
		next int
	}
	for _, start := range nodes {
		if visited[start] {
			continue
		}
		stack := []frame{{node: start}}
		path := []string{start}
		visited[start] = true
		onStack[start] = true

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			succ := adjacency[top.node]
			if top.next >= len(succ) {
				onStack[top.node] = false
				stack = stack[:len(stack)-1]
				path = path[:len(path)-1]
				continue
			}
			next := succ[top.next]
			top.next++

			if onStack[next] {
				for i, n := range path {
					if n == next {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
				continue
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			onStack[next] = true
			stack = append(stack, frame{node: next})
			path = append(path, next)
		}
	}
	return cycles
}
