package app

import (
	"os"
	"path/filepath"
	"strings"

	"codeintel/internal/core/errors"
	"codeintel/internal/shared/util"
)

type ScopeKind string

const (
	ScopeProject   ScopeKind = "project"
	ScopeFile      ScopeKind = "file"
	ScopeDirectory ScopeKind = "directory"
)

// Scope bounds the files an operation looks at. Path is absolute.
type Scope struct {
	Kind ScopeKind
	Path string
	// Selector is the scope as rendered back to callers.
	Selector string
}

// ParseScope accepts project (or empty), file:<path> and directory:<path>.
// Relative paths are taken from the project root; paths that leave the root,
// directly or through a symlink, are refused.
func (a *App) ParseScope(selector string) (Scope, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" || selector == string(ScopeProject) {
		return Scope{Kind: ScopeProject, Path: a.Root, Selector: string(ScopeProject)}, nil
	}

	kind, raw, ok := strings.Cut(selector, ":")
	if !ok {
		return Scope{}, validation("invalid scope %q: expected project, file:<path> or directory:<path>", selector)
	}
	switch ScopeKind(kind) {
	case ScopeFile, ScopeDirectory:
	default:
		return Scope{}, validation("invalid scope kind %q", kind)
	}

	path, err := a.resolvePath(raw)
	if err != nil {
		return Scope{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Scope{}, errors.AddContext(errors.Wrap(err, errors.CodeIO, "stat scope"), errors.CtxPath, raw)
	}
	if ScopeKind(kind) == ScopeFile && info.IsDir() {
		return Scope{}, validation("scope file:%s is a directory", raw)
	}
	if ScopeKind(kind) == ScopeDirectory && !info.IsDir() {
		return Scope{}, validation("scope directory:%s is not a directory", raw)
	}
	return Scope{Kind: ScopeKind(kind), Path: path, Selector: kind + ":" + a.rel(path)}, nil
}

// resolvePath makes p absolute against the root and follows symlinks,
// refusing anything that ends up outside the root.
func (a *App) resolvePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", validation("path must not be empty")
	}
	abs := filepath.FromSlash(p)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(a.Root, abs)
	}
	abs = filepath.Clean(abs)
	if !util.WithinRoot(a.Root, abs) {
		return "", errors.AddContext(errors.New(errors.CodePermissionDenied, "path is outside the project root"), errors.CtxPath, p)
	}

	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.AddContext(errors.New(errors.CodeNotFound, "path does not exist"), errors.CtxPath, p)
		}
		return "", errors.AddContext(errors.Wrap(err, errors.CodeIO, "resolve path"), errors.CtxPath, p)
	}
	if !util.WithinRoot(a.Root, real) {
		return "", errors.AddContext(errors.New(errors.CodePermissionDenied, "path resolves outside the project root"), errors.CtxPath, p)
	}
	return real, nil
}

// Contains reports whether file lies in the scope.
func (s Scope) Contains(file string) bool {
	switch s.Kind {
	case ScopeFile:
		return filepath.Clean(file) == s.Path
	default:
		return util.WithinRoot(s.Path, file)
	}
}
