package resolver

import (
	"path/filepath"
	"strings"

	"codeintel/internal/engine/parser/registry"
)

// Relative resolves imports that name a location directly: "./" and "../"
// specifiers, Python dotted and relative modules, Go packages under the
// project's module path, Rust crate/self/super paths and "mod x;", and Java
// classes under the usual source roots.
func Relative(req Request, ctx *Context) (Target, bool) {
	if req.Module == "" && req.Level == 0 {
		return Target{}, false
	}
	switch req.Language {
	case registry.Python:
		return relativePython(req, ctx)
	case registry.Go:
		return relativeGo(req, ctx)
	case registry.Rust:
		return relativeRust(req)
	case registry.Java:
		return relativeJava(req, ctx)
	case registry.CSS, registry.HTML:
		if !req.IsRelative {
			return Target{}, false
		}
		base := req.dir()
		if strings.HasPrefix(req.Module, "/") {
			base = ctx.Root
		}
		return fileTarget(findScript(filepath.Join(base, stripQuery(req.Module))))
	}
	if !isScript(req.Language) || !isRelativeSpecifier(req.Module) {
		return Target{}, false
	}
	if filepath.IsAbs(req.Module) {
		if t, ok := fileTarget(findScript(req.Module)); ok {
			return t, true
		}
		return fileTarget(findScript(filepath.Join(ctx.Root, req.Module)))
	}
	return fileTarget(findScript(filepath.Join(req.dir(), req.Module)))
}

func relativePython(req Request, ctx *Context) (Target, bool) {
	parts := []string{}
	if req.Module != "" {
		parts = strings.Split(req.Module, ".")
	}

	if req.Level > 0 {
		base := req.dir()
		for i := 1; i < req.Level; i++ {
			base = filepath.Dir(base)
		}
		if len(parts) == 0 {
			// "from . import x, y" may name submodules of the package.
			var found []string
			for _, name := range req.Names {
				if p, ok := findPython(filepath.Join(base, name)); ok {
					found = append(found, p)
				}
			}
			switch len(found) {
			case 0:
				return fileTarget(findPython(base))
			case 1:
				return Target{Kind: TargetFile, Path: found[0]}, true
			}
			return Target{Kind: TargetFile, Path: found[0], Members: found}, true
		}
		return fileTarget(findPython(filepath.Join(append([]string{base}, parts...)...)))
	}

	for _, root := range []string{req.dir(), ctx.Root, filepath.Join(ctx.Root, "src")} {
		if p, ok := findPython(filepath.Join(append([]string{root}, parts...)...)); ok {
			return Target{Kind: TargetFile, Path: p}, true
		}
	}
	return Target{}, false
}

func relativeGo(req Request, ctx *Context) (Target, bool) {
	var dir string
	switch {
	case isRelativeSpecifier(req.Module):
		dir = filepath.Join(req.dir(), req.Module)
	case ctx.GoModule != "" && req.Module == ctx.GoModule:
		dir = ctx.GoModuleDir
	case ctx.GoModule != "" && strings.HasPrefix(req.Module, ctx.GoModule+"/"):
		dir = filepath.Join(ctx.GoModuleDir, filepath.FromSlash(strings.TrimPrefix(req.Module, ctx.GoModule+"/")))
	default:
		return Target{}, false
	}
	if !hasSources(dir, ".go") {
		return Target{}, false
	}
	return Target{Kind: TargetDirectory, Path: dir, Package: req.Module}, true
}

func relativeRust(req Request) (Target, bool) {
	if req.Kind == "mod" {
		base := rustModuleDir(req.From)
		for _, p := range []string{
			filepath.Join(base, req.Module+".rs"),
			filepath.Join(base, req.Module, "mod.rs"),
		} {
			if isFile(p) {
				return Target{Kind: TargetFile, Path: p}, true
			}
		}
		return Target{}, false
	}

	parts := strings.Split(req.Module, "::")
	var base string
	switch parts[0] {
	case "crate":
		base = rustCrateRoot(req.From)
	case "self":
		base = rustModuleDir(req.From)
	case "super":
		base = rustModuleDir(req.From)
		for len(parts) > 0 && parts[0] == "super" {
			base = filepath.Dir(base)
			parts = parts[1:]
		}
		return fileTarget(findRust(base, parts))
	default:
		return Target{}, false
	}
	if base == "" {
		return Target{}, false
	}
	return fileTarget(findRust(base, parts[1:]))
}

// rustModuleDir is the directory holding the children of the module defined
// by file: its own directory for crate roots and mod.rs, else a directory
// named after the file.
func rustModuleDir(file string) string {
	switch filepath.Base(file) {
	case "main.rs", "lib.rs", "mod.rs":
		return filepath.Dir(file)
	}
	return strings.TrimSuffix(file, ".rs")
}

// rustCrateRoot finds the src directory of the crate containing file.
func rustCrateRoot(file string) string {
	for dir := filepath.Dir(file); ; dir = filepath.Dir(dir) {
		if isFile(filepath.Join(dir, "Cargo.toml")) {
			return filepath.Join(dir, "src")
		}
		if isFile(filepath.Join(dir, "lib.rs")) || isFile(filepath.Join(dir, "main.rs")) {
			return dir
		}
		if parent := filepath.Dir(dir); parent == dir {
			return ""
		}
	}
}

var javaSourceRoots = []string{"", "src/main/java", "src/test/java", "src"}

func relativeJava(req Request, ctx *Context) (Target, bool) {
	parts := strings.Split(req.Module, ".")
	for _, sub := range javaSourceRoots {
		root := filepath.Join(ctx.Root, filepath.FromSlash(sub))
		if req.wildcard() {
			dir := filepath.Join(append([]string{root}, parts...)...)
			if hasSources(dir, ".java") {
				return Target{Kind: TargetDirectory, Path: dir, Package: req.Module}, true
			}
			continue
		}
		// Static imports name a member after the class.
		for i := len(parts); i > 0; i-- {
			p := filepath.Join(append([]string{root}, parts[:i]...)...) + ".java"
			if isFile(p) {
				return Target{Kind: TargetFile, Path: p}, true
			}
		}
	}
	return Target{}, false
}

// PathMapping applies tsconfig/jsconfig compilerOptions.paths relative to
// baseUrl, and finally tries the specifier as a baseUrl-relative path.
func PathMapping(req Request, ctx *Context) (Target, bool) {
	if !isScript(req.Language) || ctx.TSConfig == nil || isRelativeSpecifier(req.Module) {
		return Target{}, false
	}
	cfg := ctx.TSConfig

	best, bestLen := "", -1
	var stem string
	for pattern := range cfg.Paths {
		star := strings.Index(pattern, "*")
		if star < 0 {
			if pattern == req.Module && len(pattern) > bestLen {
				best, bestLen, stem = pattern, len(pattern), ""
			}
			continue
		}
		prefix, suffix := pattern[:star], pattern[star+1:]
		if strings.HasPrefix(req.Module, prefix) && strings.HasSuffix(req.Module, suffix) &&
			len(req.Module) >= len(prefix)+len(suffix) && len(prefix) > bestLen {
			best, bestLen = pattern, len(prefix)
			stem = req.Module[len(prefix) : len(req.Module)-len(suffix)]
		}
	}
	if bestLen >= 0 {
		for _, target := range cfg.Paths[best] {
			p := filepath.Join(cfg.BaseURL, strings.ReplaceAll(target, "*", stem))
			if t, ok := fileTarget(findScript(p)); ok {
				return t, true
			}
		}
	}
	if cfg.ExplicitBase {
		return fileTarget(findScript(filepath.Join(cfg.BaseURL, req.Module)))
	}
	return Target{}, false
}

// PackageExports resolves self-references through the project's own
// package.json: "name" and "name/sub" mapped by the exports table.
func PackageExports(req Request, ctx *Context) (Target, bool) {
	m := ctx.Manifest
	if !isScript(req.Language) || m == nil || m.Name == "" || len(m.Exports) == 0 {
		return Target{}, false
	}
	var subpath string
	switch {
	case req.Module == m.Name:
		subpath = "."
	case strings.HasPrefix(req.Module, m.Name+"/"):
		subpath = "." + strings.TrimPrefix(req.Module, m.Name)
	default:
		return Target{}, false
	}
	target, ok := matchExport(m.Exports, subpath)
	if !ok {
		return Target{}, false
	}
	t, ok := fileTarget(findScript(filepath.Join(ctx.Root, target)))
	t.Package = m.Name
	return t, ok
}

// Workspace resolves imports of sibling packages in a monorepo.
func Workspace(req Request, ctx *Context) (Target, bool) {
	if !isScript(req.Language) && req.Language != registry.CSS {
		return Target{}, false
	}
	for _, ws := range ctx.Workspaces {
		var p string
		var ok bool
		switch {
		case req.Module == ws.Name:
			p, ok = packageEntry(ws.Dir, ws.Manifest)
		case strings.HasPrefix(req.Module, ws.Name+"/"):
			sub := strings.TrimPrefix(req.Module, ws.Name+"/")
			if target, found := matchExport(ws.Manifest.Exports, "./"+sub); found {
				p, ok = findScript(filepath.Join(ws.Dir, target))
			}
			if !ok {
				p, ok = findScript(filepath.Join(ws.Dir, sub))
			}
		default:
			continue
		}
		if ok {
			return Target{Kind: TargetWorkspace, Path: p, Package: ws.Name}, true
		}
	}
	return Target{}, false
}

// DependencyDir looks for the package in node_modules directories from the
// importing file up to the project root.
func DependencyDir(req Request, ctx *Context) (Target, bool) {
	if !isScript(req.Language) && req.Language != registry.CSS {
		return Target{}, false
	}
	module := strings.TrimPrefix(req.Module, "~")
	name, sub := splitPackage(module)
	if name == "" || strings.HasPrefix(name, "node:") {
		return Target{}, false
	}

	for dir := req.dir(); ; dir = filepath.Dir(dir) {
		pkgDir := filepath.Join(dir, "node_modules", name)
		if isDir(pkgDir) {
			m, _ := readManifest(filepath.Join(pkgDir, "package.json"))
			var p string
			var ok bool
			switch {
			case sub == "" && m != nil:
				p, ok = packageEntry(pkgDir, m)
			case sub == "":
				p, ok = findScript(pkgDir)
			default:
				if m != nil {
					if target, found := matchExport(m.Exports, "./"+sub); found {
						p, ok = findScript(filepath.Join(pkgDir, target))
					}
				}
				if !ok {
					p, ok = findScript(filepath.Join(pkgDir, sub))
				}
			}
			if ok {
				return Target{Kind: TargetFile, Path: p, Package: name}, true
			}
		}
		if dir == ctx.Root || filepath.Dir(dir) == dir || !within(ctx.Root, dir) {
			break
		}
	}
	return Target{}, false
}

func fileTarget(path string, ok bool) (Target, bool) {
	if !ok {
		return Target{}, false
	}
	return Target{Kind: TargetFile, Path: path}, true
}

func isRelativeSpecifier(s string) bool {
	return s == "." || s == ".." || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") ||
		strings.HasPrefix(s, "/")
}

// stripQuery drops "?v=1" and "#hash" suffixes from asset URLs.
func stripQuery(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}
	return s
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
