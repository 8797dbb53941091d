package resolver

import (
	"os"
	"path/filepath"
	"strings"
)

var scriptExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".json", ".d.ts"}

var indexFiles = []string{"index.ts", "index.tsx", "index.js", "index.jsx", "index.mjs"}

// Compiled output names that are imported while the source is TypeScript.
var sourceSwaps = map[string][]string{
	".js":  {".ts", ".tsx"},
	".jsx": {".tsx"},
	".mjs": {".mts"},
	".cjs": {".cts"},
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// findScript finds the file a JavaScript-style specifier names: the exact
// path, the path with a known extension, a directory index, or the
// TypeScript source of a compiled ".js" name.
func findScript(path string) (string, bool) {
	if isFile(path) {
		return path, true
	}
	for _, ext := range scriptExtensions {
		if p := path + ext; isFile(p) {
			return p, true
		}
	}
	if ext := filepath.Ext(path); ext != "" {
		stem := strings.TrimSuffix(path, ext)
		for _, alt := range sourceSwaps[ext] {
			if p := stem + alt; isFile(p) {
				return p, true
			}
		}
	}
	if isDir(path) {
		if m, err := readManifest(filepath.Join(path, "package.json")); err == nil && m != nil {
			if p, ok := packageEntry(path, m); ok {
				return p, true
			}
		}
		for _, idx := range indexFiles {
			if p := filepath.Join(path, idx); isFile(p) {
				return p, true
			}
		}
	}
	return "", false
}

// packageEntry resolves the root entry of a package: exports["."], then
// module, then main, then an index file.
func packageEntry(dir string, m *Manifest) (string, bool) {
	if target, ok := m.Exports["."]; ok {
		if p, ok := findScript(filepath.Join(dir, target)); ok {
			return p, true
		}
	}
	for _, entry := range []string{m.Module, m.Main} {
		if entry == "" {
			continue
		}
		if p, ok := findScript(filepath.Join(dir, entry)); ok {
			return p, true
		}
	}
	for _, idx := range indexFiles {
		if p := filepath.Join(dir, idx); isFile(p) {
			return p, true
		}
	}
	return "", false
}

// matchExport maps subpath ("." or "./x") through an exports table. Exact
// keys win; among "*" patterns the longest prefix wins.
func matchExport(exports map[string]string, subpath string) (string, bool) {
	if t, ok := exports[subpath]; ok {
		return t, true
	}
	best, bestLen := "", -1
	for key, target := range exports {
		star := strings.Index(key, "*")
		if star < 0 {
			continue
		}
		prefix, suffix := key[:star], key[star+1:]
		if !strings.HasPrefix(subpath, prefix) || !strings.HasSuffix(subpath, suffix) ||
			len(subpath) < len(prefix)+len(suffix) {
			continue
		}
		if len(prefix) > bestLen {
			stem := subpath[len(prefix) : len(subpath)-len(suffix)]
			best, bestLen = strings.ReplaceAll(target, "*", stem), len(prefix)
		}
	}
	return best, bestLen >= 0
}

// findPython tries the module file, then the package, then stubs.
func findPython(path string) (string, bool) {
	for _, p := range []string{
		path + ".py",
		filepath.Join(path, "__init__.py"),
		path + ".pyi",
		filepath.Join(path, "__init__.pyi"),
	} {
		if isFile(p) {
			return p, true
		}
	}
	return "", false
}

// findRust walks parts under base, accepting the longest prefix that names
// a module file; trailing parts are items inside that module.
func findRust(base string, parts []string) (string, bool) {
	for i := len(parts); i > 0; i-- {
		p := filepath.Join(append([]string{base}, parts[:i]...)...)
		if isFile(p + ".rs") {
			return p + ".rs", true
		}
		if mod := filepath.Join(p, "mod.rs"); isFile(mod) {
			return mod, true
		}
	}
	return "", false
}

// hasSources reports whether dir directly holds a file with extension ext.
func hasSources(dir, ext string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
			return true
		}
	}
	return false
}
