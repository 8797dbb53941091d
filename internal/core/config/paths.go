package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// rootMarkers identify a project root, nearest first.
var rootMarkers = []string{
	FileName,
	".git",
	"go.mod",
	"package.json",
	"pyproject.toml",
}

// ResolveProjectRoot returns the configured project root made absolute
// against cwd, or the detected one when none is configured.
func ResolveProjectRoot(cfg *Config, cwd string) (string, error) {
	if strings.TrimSpace(cwd) == "" {
		return "", fmt.Errorf("cwd must not be empty")
	}
	if cfg.Paths.ProjectRoot != "" {
		root := ResolveRelative(cwd, cfg.Paths.ProjectRoot)
		info, err := os.Stat(root)
		if err != nil {
			return "", fmt.Errorf("paths.project_root: %w", err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("paths.project_root %q is not a directory", root)
		}
		return root, nil
	}
	return DetectProjectRoot(cwd)
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// DetectProjectRoot walks up from start to the first directory holding a
// root marker. Without one, start itself is the root.
func DetectProjectRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	dir := abs
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	for cur := dir; ; {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(cur, marker)); err == nil {
				return filepath.Clean(cur), nil
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return filepath.Clean(dir), nil
}

// FindConfigFile returns explicit when set, otherwise codeintel.toml in root.
func FindConfigFile(explicit, root string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	return filepath.Join(root, FileName)
}
