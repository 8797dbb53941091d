package app

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"codeintel/internal/core/config"
	"codeintel/internal/core/errors"
	"codeintel/internal/engine/parser/registry"
	"codeintel/internal/shared/util"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"
)

var defaultSkipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

// Scanner lists the files an operation should visit.
type Scanner struct {
	root      string
	registry  *registry.Registry
	dirGlobs  []glob.Glob
	fileGlobs []glob.Glob
	gitignore *ignore.GitIgnore
	maxFiles  int
}

func NewScanner(root string, reg *registry.Registry, exclude config.Exclude, maxFiles int) (*Scanner, error) {
	dirGlobs, err := compileGlobs(exclude.Dirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	fileGlobs, err := compileGlobs(exclude.Files, "exclude file")
	if err != nil {
		return nil, err
	}

	var lines []string
	if exclude.Gitignore {
		if data, err := os.ReadFile(filepath.Join(root, ".gitignore")); err == nil {
			lines = strings.Split(string(data), "\n")
		}
	}
	lines = append(lines, exclude.Patterns...)

	s := &Scanner{
		root:      root,
		registry:  reg,
		dirGlobs:  dirGlobs,
		fileGlobs: fileGlobs,
		maxFiles:  maxFiles,
	}
	if len(lines) > 0 {
		s.gitignore = ignore.CompileIgnoreLines(lines...)
	}
	return s, nil
}

func compileGlobs(patterns []string, what string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid %s pattern %q", what, p))
		}
		out = append(out, g)
	}
	return out, nil
}

// Files walks the scope and returns supported files in lexical order.
// Unreadable directories become warnings. When max_files is reached the walk
// stops and a warning says so.
func (s *Scanner) Files(ctx context.Context, scope Scope) ([]string, []errors.Warning, error) {
	if scope.Kind == ScopeFile {
		return []string{scope.Path}, nil, nil
	}

	var (
		files    []string
		warnings []errors.Warning
	)
	err := filepath.WalkDir(scope.Path, func(path string, d fs.DirEntry, err error) error {
		rel := util.RelSlash(s.root, path)
		if err != nil {
			if path == scope.Path {
				return err
			}
			warnings = append(warnings, errors.AsWarning(rel, errors.Wrap(err, errors.CodeIO, "walk")))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if path == scope.Path {
				return nil
			}
			if s.skipDir(d.Name(), rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || s.skipFile(d.Name(), rel) {
			return nil
		}
		if _, ok := s.registry.Resolve(path); !ok {
			return nil
		}
		if s.maxFiles > 0 && len(files) >= s.maxFiles {
			warnings = append(warnings, errors.Warning{
				Path:    util.RelSlash(s.root, scope.Path),
				Code:    errors.CodeValidationError,
				Message: fmt.Sprintf("file limit of %d reached; remaining files were not scanned", s.maxFiles),
			})
			return filepath.SkipAll
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, errors.Wrap(ctx.Err(), errors.CodeCancelled, "scan cancelled")
		}
		return nil, nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "scan"), errors.CtxPath, scope.Path)
	}
	return files, warnings, nil
}

func (s *Scanner) skipDir(name, rel string) bool {
	if defaultSkipDirs[name] || strings.HasPrefix(name, ".") {
		return true
	}
	for _, g := range s.dirGlobs {
		if g.Match(name) || g.Match(rel) {
			return true
		}
	}
	return s.gitignore != nil && s.gitignore.MatchesPath(rel+"/")
}

func (s *Scanner) skipFile(name, rel string) bool {
	for _, g := range s.fileGlobs {
		if g.Match(name) || g.Match(rel) {
			return true
		}
	}
	return s.gitignore != nil && s.gitignore.MatchesPath(rel)
}
