// Package app wires the engine packages into the three operations exposed
// through ports.CodeIntel: symbol search, dependency analysis and rename.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeintel/internal/core/config"
	"codeintel/internal/core/errors"
	"codeintel/internal/core/ports"
	"codeintel/internal/core/watcher"
	"codeintel/internal/data/plans"
	"codeintel/internal/engine/graph"
	"codeintel/internal/engine/parser"
	"codeintel/internal/engine/parser/registry"
	"codeintel/internal/engine/refactor"
	"codeintel/internal/engine/resolver"
	"codeintel/internal/shared/observability"
	"codeintel/internal/shared/util"
)

// maxStoredPlans bounds the previewed plans kept for a later ApplyPlan.
const maxStoredPlans = 16

type App struct {
	Config   *config.Config
	Registry *registry.Registry
	Cache    *parser.Cache
	Resolver *resolver.Resolver
	Root     string

	analyzer *graph.Analyzer
	scanner  *Scanner
	limiter  *util.Limiter

	plansMu   sync.Mutex
	plans     map[string]*refactor.Plan
	planOrder []string
	archive   *plans.Store
	// archived holds the ids of in-memory plans that were also saved to
	// archive; their row is the claim on applying them.
	archived  map[string]bool

	watcherMu     sync.Mutex
	activeWatcher *watcher.Watcher
}

var (
	_ ports.CodeIntel   = (*App)(nil)
	_ ports.PlanStore   = (*App)(nil)
	_ ports.Invalidator = (*App)(nil)
)

// New builds an App for root. An empty root is resolved from the
// configuration or detected from the working directory.
func New(cfg *config.Config, root string) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if root, err = config.ResolveProjectRoot(cfg, cwd); err != nil {
			return nil, err
		}
	}
	root, err := canonicalRoot(root)
	if err != nil {
		return nil, err
	}

	reg, err := registry.New(cfg.RegistryOverrides())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "build language registry")
	}
	scanner, err := NewScanner(root, reg, cfg.Exclude, cfg.Limits.MaxFiles)
	if err != nil {
		return nil, err
	}

	cache := parser.NewCache(reg, parser.CacheOptions{
		Capacity:     cfg.Caches.SyntaxTrees,
		MaxFileBytes: cfg.MaxFileBytes(),
	})
	res := resolver.New(root)

	a := &App{
		Config:   cfg,
		Registry: reg,
		Cache:    cache,
		Resolver: res,
		Root:     root,
		analyzer: graph.NewAnalyzer(cache, res),
		scanner:  scanner,
		plans:    make(map[string]*refactor.Plan),
		archived: make(map[string]bool),
	}
	if path := cfg.Refactor.PlanStore; path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		store, err := plans.Open(path, root)
		if err != nil {
			cache.Close()
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "open plan store"), errors.CtxPath, path)
		}
		a.archive = store
	}
	if cfg.Limits.FilesPerSecond > 0 {
		burst := int(cfg.Limits.FilesPerSecond)
		if burst < 1 {
			burst = 1
		}
		a.limiter = util.NewLimiter(cfg.Limits.FilesPerSecond, burst)
	}
	slog.Debug("app ready", "root", root, "languages", len(reg.Languages()))
	return a, nil
}

func canonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "project root"), errors.CtxPath, abs)
	}
	info, err := os.Stat(real)
	if err != nil {
		return "", errors.AddContext(errors.Wrap(err, errors.CodeIO, "project root"), errors.CtxPath, real)
	}
	if !info.IsDir() {
		return "", errors.AddContext(errors.New(errors.CodeValidationError, "project root is not a directory"), errors.CtxPath, real)
	}
	return real, nil
}

// Close stops the watcher, if any, closes the plan store and releases every
// cached syntax tree.
func (a *App) Close(ctx context.Context) error {
	a.watcherMu.Lock()
	w := a.activeWatcher
	a.activeWatcher = nil
	a.watcherMu.Unlock()

	var err error
	if w != nil {
		err = w.Close()
	}
	if a.archive != nil {
		if cerr := a.archive.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	a.Cache.Close()
	return err
}

// InvalidatePaths drops cached state for changed files. A change to a
// project manifest also forgets every resolved import.
func (a *App) InvalidatePaths(paths []string) {
	manifestChanged := false
	for _, p := range paths {
		a.Cache.Invalidate(p)
		a.analyzer.Invalidate(p)
		if isManifest(p) {
			manifestChanged = true
		}
	}
	if manifestChanged {
		a.analyzer.Reset()
	}
	slog.Debug("invalidated paths", "count", len(paths), "manifest_changed", manifestChanged)
}

// StartWatcher keeps the caches in step with the file system until Close.
func (a *App) StartWatcher() error {
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Exclude.Dirs,
		a.Config.Exclude.Files,
		a.InvalidatePaths,
	)
	if err != nil {
		return err
	}
	w.SetLanguageFilters(a.Registry.Extensions(), manifestNames)
	if err := w.Watch([]string{a.Root}); err != nil {
		_ = w.Close()
		return err
	}
	a.watcherMu.Lock()
	a.activeWatcher = w
	a.watcherMu.Unlock()
	return nil
}

// manifestNames are the files the resolver reads for project context.
var manifestNames = []string{
	"package.json",
	"tsconfig.json",
	"jsconfig.json",
	"pnpm-workspace.yaml",
	"go.mod",
}

func isManifest(path string) bool {
	base := filepath.Base(path)
	for _, name := range manifestNames {
		if base == name {
			return true
		}
	}
	return false
}

// rel renders path for results: relative to the root with forward slashes.
func (a *App) rel(path string) string {
	return util.RelSlash(a.Root, path)
}

func observeOperation(op string, start time.Time) {
	observability.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// skip turns a per-file failure into a warning. Unsupported files are
// skipped silently and produce none.
func (a *App) skip(path string, err error) *errors.Warning {
	code := errors.CodeOf(err)
	observability.FilesSkippedTotal.WithLabelValues(string(code)).Inc()
	if code == errors.CodeUnsupportedLanguage {
		return nil
	}
	slog.Warn("skipping file", "path", path, "error", err)
	w := errors.AsWarning(a.rel(path), err)
	return &w
}

func syntaxError(path string) error {
	return errors.AddContext(errors.New(errors.CodeParse, "file has syntax errors"), errors.CtxPath, path)
}

func collectWarnings(base []errors.Warning, perFile []*errors.Warning) []errors.Warning {
	out := append([]errors.Warning(nil), base...)
	for _, w := range perFile {
		if w != nil {
			out = append(out, *w)
		}
	}
	errors.SortWarnings(out)
	return out
}

func validation(format string, args ...any) error {
	return errors.New(errors.CodeValidationError, fmt.Sprintf(format, args...))
}
