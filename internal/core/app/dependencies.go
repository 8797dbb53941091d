package app

import (
	"context"
	"os"
	"strings"
	"time"

	"codeintel/internal/core/errors"
	"codeintel/internal/core/ports"
	"codeintel/internal/engine/graph"
	"codeintel/internal/engine/resolver"
	"codeintel/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	OpImports    = "imports"
	OpDependents = "dependents"
	OpGraph      = "graph"
)

// Dependencies answers imports, dependents and graph queries for a target
// file. When the target is empty and the scope names a file, that file is
// the target.
func (a *App) Dependencies(ctx context.Context, req ports.DependencyRequest) (ports.DependencyResult, error) {
	op := strings.ToLower(strings.TrimSpace(req.Operation))
	ctx, span := observability.Tracer.Start(ctx, "app."+spanName(op), trace.WithAttributes(
		attribute.String("target", req.Target),
		attribute.String("scope", req.Scope),
	))
	defer span.End()
	defer observeOperation("dependency_"+op, time.Now())

	switch op {
	case OpImports, OpDependents, OpGraph:
	default:
		return ports.DependencyResult{}, validation("unknown dependency operation %q", req.Operation)
	}

	scope, err := a.ParseScope(req.Scope)
	if err != nil {
		return ports.DependencyResult{}, err
	}
	targetArg := req.Target
	if strings.TrimSpace(targetArg) == "" && scope.Kind == ScopeFile {
		targetArg = scope.Path
	}
	target, err := a.resolvePath(targetArg)
	if err != nil {
		return ports.DependencyResult{}, err
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return ports.DependencyResult{}, validation("dependency target %s is a directory", req.Target)
	}

	result := ports.DependencyResult{Operation: op, Target: a.rel(target)}
	switch op {
	case OpImports:
		if !scope.Contains(target) {
			return result, validation("target %s is outside scope %s", result.Target, scope.Selector)
		}
		edges, warning, err := a.imports(ctx, target)
		if err != nil {
			return result, err
		}
		result.Imports = a.relEdges(edges)
		if warning != nil {
			result.Warnings = []errors.Warning{*warning}
		}

	case OpDependents:
		deps, warnings, err := a.dependents(ctx, scope, target)
		if err != nil {
			return result, err
		}
		result.Dependents = a.relEdges(deps)
		result.Warnings = warnings

	case OpGraph:
		if !scope.Contains(target) {
			return result, validation("target %s is outside scope %s", result.Target, scope.Selector)
		}
		exp, err := a.analyzer.Expand(ctx, target, req.Depth)
		if err != nil {
			return result, err
		}
		result.Graph = a.relExpansion(exp)
		result.Warnings = result.Graph.Warnings
	}
	return result, nil
}

func spanName(op string) string {
	switch op {
	case OpImports:
		return "Imports"
	case OpDependents:
		return "Dependents"
	case OpGraph:
		return "Graph"
	}
	return "Dependencies"
}

// imports returns the edges of one file. Errors on the target itself are
// returned; a recovered syntax error only adds a warning.
func (a *App) imports(ctx context.Context, path string) ([]graph.ImportEdge, *errors.Warning, error) {
	edges, err := a.analyzer.Imports(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	var warning *errors.Warning
	if ps, err := a.Cache.Get(ctx, path); err == nil {
		if ps.HasSyntaxErrors {
			w := errors.AsWarning(a.rel(path), syntaxError(path))
			warning = &w
		}
		ps.Release()
	}
	return edges, warning, nil
}

// dependents reads the imports of every file in scope and keeps those that
// resolve to target.
func (a *App) dependents(ctx context.Context, scope Scope, target string) ([]graph.ImportEdge, []errors.Warning, error) {
	files, scanWarnings, err := a.scanner.Files(ctx, scope)
	if err != nil {
		return nil, nil, errors.AddContext(err, errors.CtxOperation, OpDependents)
	}

	edges := make([][]graph.ImportEdge, len(files))
	warnings := make([]*errors.Warning, len(files))
	err = a.forEachFile(ctx, files, func(ctx context.Context, i int, path string) error {
		es, err := a.analyzer.Imports(ctx, path)
		if err != nil {
			if errors.IsCode(err, errors.CodeCancelled) {
				return err
			}
			warnings[i] = a.skip(path, err)
			return nil
		}
		edges[i] = es
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	byFile := make(map[string][]graph.ImportEdge, len(files))
	for i, f := range files {
		byFile[f] = edges[i]
	}
	deps := graph.Dependents(target, files, func(p string) []graph.ImportEdge { return byFile[p] })
	return deps, collectWarnings(scanWarnings, warnings), nil
}

func (a *App) relEdges(edges []graph.ImportEdge) []graph.ImportEdge {
	out := make([]graph.ImportEdge, len(edges))
	for i, e := range edges {
		e.Source = a.rel(e.Source)
		if e.Target.Kind != resolver.TargetExternal && e.Target.Path != "" {
			e.Target.Path = a.rel(e.Target.Path)
		}
		if len(e.Target.Members) > 0 {
			members := make([]string, len(e.Target.Members))
			for j, m := range e.Target.Members {
				members[j] = a.rel(m)
			}
			e.Target.Members = members
		}
		out[i] = e
	}
	return out
}

func (a *App) relExpansion(exp *graph.Expansion) *graph.Expansion {
	out := &graph.Expansion{
		Root:     a.rel(exp.Root),
		Depth:    exp.Depth,
		Nodes:    make(map[string][]string, len(exp.Nodes)),
		Warnings: make([]errors.Warning, len(exp.Warnings)),
	}
	for i, w := range exp.Warnings {
		w.Path = a.rel(w.Path)
		out.Warnings[i] = w
	}
	for node, targets := range exp.Nodes {
		rt := make([]string, len(targets))
		for i, t := range targets {
			rt[i] = a.rel(t)
		}
		out.Nodes[a.rel(node)] = rt
	}
	for _, c := range exp.Cycles {
		rc := make([]string, len(c))
		for i, n := range c {
			rc[i] = a.rel(n)
		}
		out.Cycles = append(out.Cycles, rc)
	}
	return out
}
