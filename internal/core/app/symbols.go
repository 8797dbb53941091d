package app

import (
	"context"
	"strings"
	"time"

	"codeintel/internal/core/errors"
	"codeintel/internal/core/ports"
	"codeintel/internal/engine/parser/registry"
	"codeintel/internal/engine/symbols"
	"codeintel/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SymbolSearch finds definitions and references of an identifier across the
// files in scope. Results are ordered by file, line and column.
func (a *App) SymbolSearch(ctx context.Context, req ports.SymbolRequest) (ports.SymbolResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.SymbolSearch", trace.WithAttributes(
		attribute.String("symbol", req.Symbol),
		attribute.String("scope", req.Scope),
	))
	defer span.End()
	defer observeOperation("symbol_search", time.Now())

	name := strings.TrimSpace(req.Symbol)
	if name == "" {
		return ports.SymbolResult{}, validation("symbol must not be empty")
	}
	op, err := symbols.ParseOperation(strings.ToLower(strings.TrimSpace(req.Operation)))
	if err != nil {
		return ports.SymbolResult{}, errors.Wrap(err, errors.CodeValidationError, "symbol_search")
	}
	scope, err := a.ParseScope(req.Scope)
	if err != nil {
		return ports.SymbolResult{}, err
	}
	var lang registry.Language
	if l := strings.ToLower(strings.TrimSpace(req.Language)); l != "" {
		lang = registry.Language(l)
		if _, ok := a.Registry.Get(lang); !ok {
			return ports.SymbolResult{}, validation("unknown language %q", req.Language)
		}
	}
	contextLines := a.Config.Context.Lines
	if req.ContextLines != nil {
		contextLines = *req.ContextLines
	}

	files, scanWarnings, err := a.scanner.Files(ctx, scope)
	if err != nil {
		return ports.SymbolResult{}, errors.AddContext(err, errors.CtxOperation, "symbol_search")
	}
	if lang != "" {
		files = a.filterLanguage(files, lang)
	}

	perFile := make([][]symbols.Match, len(files))
	warnings := make([]*errors.Warning, len(files))
	err = a.forEachFile(ctx, files, func(ctx context.Context, i int, path string) error {
		ps, err := a.Cache.Get(ctx, path)
		if err != nil {
			if errors.IsCode(err, errors.CodeCancelled) {
				return err
			}
			warnings[i] = a.skip(path, err)
			return nil
		}
		defer ps.Release()

		if !ps.Descriptor.Searchable() {
			return nil
		}
		if ps.HasSyntaxErrors {
			warnings[i] = a.skip(path, syntaxError(path))
			return nil
		}
		idx, err := symbols.Index(ps)
		if err != nil {
			warnings[i] = a.skip(path, errors.Wrap(err, errors.CodeParse, "index symbols"))
			return nil
		}
		perFile[i] = symbols.Search(idx, ps.Lines(), name, op, contextLines)
		return nil
	})
	if err != nil {
		return ports.SymbolResult{}, err
	}

	var matches []symbols.Match
	for _, ms := range perFile {
		for _, m := range ms {
			m.File = a.rel(m.File)
			matches = append(matches, m)
		}
	}
	symbols.SortMatches(matches)

	result := ports.SymbolResult{
		Symbol:        name,
		Operation:     string(op),
		Scope:         scope.Selector,
		TotalMatches:  len(matches),
		FilesSearched: len(files),
		Warnings:      collectWarnings(scanWarnings, warnings),
	}
	if limit := a.Config.Limits.MaxResults; limit > 0 && len(matches) > limit {
		matches = matches[:limit]
		result.Truncated = true
	}
	result.Matches = matches
	if result.Matches == nil {
		result.Matches = []symbols.Match{}
	}
	span.SetAttributes(attribute.Int("matches", result.TotalMatches))
	return result, nil
}

func (a *App) filterLanguage(files []string, lang registry.Language) []string {
	out := files[:0:0]
	for _, f := range files {
		if d, ok := a.Registry.Resolve(f); ok && d.ID == lang {
			out = append(out, f)
		}
	}
	return out
}
