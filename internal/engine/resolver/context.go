package resolver

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

const maxExtendsDepth = 5

// Manifest is the subset of package.json the resolver reads.
type Manifest struct {
	Name   string
	Main   string
	Module string
	// Exports maps a subpath ("." or "./x", possibly with one "*") to a
	// target relative to the manifest's directory.
	Exports    map[string]string
	Workspaces []string
}

// TSConfig holds the module mapping of tsconfig.json or jsconfig.json.
type TSConfig struct {
	// BaseURL is absolute. It defaults to the config's directory.
	BaseURL string
	Paths   map[string][]string
	// ExplicitBase is set when baseUrl was configured, which makes bare
	// specifiers resolvable against it.
	ExplicitBase bool
}

// WorkspacePackage is a package of a monorepo workspace.
type WorkspacePackage struct {
	Name     string
	Dir      string
	Manifest *Manifest
}

// Context is everything the strategies need to know about a project. It is
// read once per root; strategies treat it as immutable.
type Context struct {
	Root       string
	TSConfig   *TSConfig
	Manifest   *Manifest
	Workspaces []WorkspacePackage
	// GoModule is the module path declared by go.mod at GoModuleDir.
	GoModule    string
	GoModuleDir string
}

// LoadContext reads the manifests under root. Missing files are not errors;
// malformed ones are skipped and reported in the joined error, with the rest
// of the context still populated.
func LoadContext(root string) (*Context, error) {
	root = filepath.Clean(root)
	ctx := &Context{Root: root}
	var errs []error

	for _, name := range []string{"tsconfig.json", "jsconfig.json"} {
		path := filepath.Join(root, name)
		if !isFile(path) {
			continue
		}
		cfg, err := loadTSConfig(path, 0)
		if err != nil {
			errs = append(errs, err)
		}
		ctx.TSConfig = cfg
		break
	}

	if m, err := readManifest(filepath.Join(root, "package.json")); err != nil {
		errs = append(errs, err)
	} else {
		ctx.Manifest = m
	}

	patterns := pnpmWorkspaces(root, &errs)
	if ctx.Manifest != nil {
		patterns = append(patterns, ctx.Manifest.Workspaces...)
	}
	if len(patterns) > 0 {
		ws, err := expandWorkspaces(root, patterns)
		if err != nil {
			errs = append(errs, err)
		}
		ctx.Workspaces = ws
	}

	if dir, module, err := findGoModule(root); err == nil {
		ctx.GoModuleDir, ctx.GoModule = dir, module
	}

	return ctx, stderrors.Join(errs...)
}

type rawManifest struct {
	Name       string          `json:"name"`
	Main       string          `json:"main"`
	Module     string          `json:"module"`
	Exports    json.RawMessage `json:"exports"`
	Workspaces json.RawMessage `json:"workspaces"`
}

// readManifest returns nil, nil when path does not exist.
func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var raw rawManifest
	if err := decodeJSONC(data, &raw); err != nil {
		return nil, &manifestError{path: path, err: err}
	}
	m := &Manifest{Name: raw.Name, Main: raw.Main, Module: raw.Module}

	if len(raw.Exports) > 0 {
		var exports any
		if err := json.Unmarshal(raw.Exports, &exports); err == nil {
			m.Exports = flattenExports(exports)
		}
	}
	if len(raw.Workspaces) > 0 {
		var list []string
		if err := json.Unmarshal(raw.Workspaces, &list); err == nil {
			m.Workspaces = list
		} else {
			var obj struct {
				Packages []string `json:"packages"`
			}
			if err := json.Unmarshal(raw.Workspaces, &obj); err == nil {
				m.Workspaces = obj.Packages
			}
		}
	}
	return m, nil
}

type manifestError struct {
	path string
	err  error
}

func (e *manifestError) Error() string { return e.path + ": " + e.err.Error() }
func (e *manifestError) Unwrap() error { return e.err }

var exportConditions = []string{"import", "require", "default", "types"}

// flattenExports normalises every accepted shape of the "exports" field to
// subpath -> target.
func flattenExports(v any) map[string]string {
	out := make(map[string]string)
	switch e := v.(type) {
	case string:
		out["."] = e
	case []any:
		if t := pickCondition(e); t != "" {
			out["."] = t
		}
	case map[string]any:
		subpaths := false
		for k := range e {
			if strings.HasPrefix(k, ".") {
				subpaths = true
				break
			}
		}
		if !subpaths {
			if t := pickCondition(e); t != "" {
				out["."] = t
			}
			return out
		}
		for k, val := range e {
			if !strings.HasPrefix(k, ".") {
				continue
			}
			if t := pickCondition(val); t != "" {
				out[k] = t
			}
		}
	}
	return out
}

func pickCondition(v any) string {
	switch e := v.(type) {
	case string:
		return e
	case []any:
		for _, alt := range e {
			if t := pickCondition(alt); t != "" {
				return t
			}
		}
	case map[string]any:
		for _, cond := range exportConditions {
			if val, ok := e[cond]; ok {
				if t := pickCondition(val); t != "" {
					return t
				}
			}
		}
	}
	return ""
}

type rawTSConfig struct {
	Extends         string `json:"extends"`
	CompilerOptions struct {
		BaseURL *string             `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

func loadTSConfig(path string, depth int) (*TSConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw rawTSConfig
	if err := decodeJSONC(data, &raw); err != nil {
		return nil, &manifestError{path: path, err: err}
	}
	dir := filepath.Dir(path)

	cfg := &TSConfig{BaseURL: dir}
	if raw.Extends != "" && depth < maxExtendsDepth && isRelativeSpecifier(raw.Extends) {
		parent := filepath.Join(dir, raw.Extends)
		if filepath.Ext(parent) == "" {
			parent += ".json"
		}
		if base, err := loadTSConfig(parent, depth+1); err == nil {
			cfg = base
		}
	}
	if raw.CompilerOptions.BaseURL != nil {
		cfg.BaseURL = filepath.Join(dir, *raw.CompilerOptions.BaseURL)
		cfg.ExplicitBase = true
	}
	if raw.CompilerOptions.Paths != nil {
		cfg.Paths = raw.CompilerOptions.Paths
		// Without any baseUrl, paths are relative to the config declaring them.
		if !cfg.ExplicitBase {
			cfg.BaseURL = dir
		}
	}
	return cfg, nil
}

// decodeJSONC unmarshals tsconfig-style JSON, which allows comments and
// trailing commas.
func decodeJSONC(data []byte, v any) error {
	std, err := hujson.Standardize(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(std, v)
}

func pnpmWorkspaces(root string, errs *[]error) []string {
	data, err := os.ReadFile(filepath.Join(root, "pnpm-workspace.yaml"))
	if err != nil {
		return nil
	}
	var doc struct {
		Packages []string `yaml:"packages"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		*errs = append(*errs, &manifestError{path: "pnpm-workspace.yaml", err: err})
		return nil
	}
	return doc.Packages
}

// expandWorkspaces finds every directory under root holding a package.json
// that matches the workspace patterns. Patterns starting with "!" exclude.
func expandWorkspaces(root string, patterns []string) ([]WorkspacePackage, error) {
	var include, exclude []glob.Glob
	for _, p := range patterns {
		neg := strings.HasPrefix(p, "!")
		p = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(p, "!"), "./"), "/")
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		if neg {
			exclude = append(exclude, g)
		} else {
			include = append(include, g)
		}
	}

	var out []WorkspacePackage
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !matchAny(include, rel) || matchAny(exclude, rel) {
			return nil
		}
		m, err := readManifest(filepath.Join(path, "package.json"))
		if err != nil || m == nil || m.Name == "" {
			return nil
		}
		out = append(out, WorkspacePackage{Name: m.Name, Dir: path, Manifest: m})
		return nil
	})
	// Longest names first so "@app/ui-kit" wins over "@app/ui".
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Name) != len(out[j].Name) {
			return len(out[i].Name) > len(out[j].Name)
		}
		return out[i].Name < out[j].Name
	})
	return out, err
}

func matchAny(gs []glob.Glob, s string) bool {
	for _, g := range gs {
		if g.Match(s) {
			return true
		}
	}
	return false
}

func skipDir(name string) bool {
	switch name {
	case "node_modules", ".git", ".hg", ".svn", "dist", "build", "target", "__pycache__", ".venv", "venv":
		return true
	}
	return false
}

var goModuleLine = regexp.MustCompile(`(?m)^\s*module\s+(\S+)`)

// findGoModule looks for go.mod at root and then in its ancestors.
func findGoModule(root string) (dir, module string, err error) {
	current := root
	for {
		data, err := os.ReadFile(filepath.Join(current, "go.mod"))
		if err == nil {
			m := goModuleLine.FindSubmatch(data)
			if len(m) < 2 {
				return "", "", stderrors.New("go.mod declares no module")
			}
			return current, strings.Trim(string(m[1]), `"`), nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", "", fs.ErrNotExist
		}
		current = parent
	}
}
