// Package imports extracts import-like statements from parsed files. It only
// reads syntax; turning a raw module string into a file is the resolver's job.
package imports

import (
	"strings"

	"codeintel/internal/engine/astutil"
	"codeintel/internal/engine/parser"
	"codeintel/internal/engine/parser/registry"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Binding is a local name introduced by an import statement.
type Binding struct {
	Name      string
	StartByte uint
	EndByte   uint
	Line      int
	Column    int
}

// Import is one imported module as written in the source.
type Import struct {
	Module string
	// Names are the imported members, "*" for wildcards and "default" for
	// default imports.
	Names      []string
	Line       int
	IsRelative bool
	// Level counts leading dots of a Python relative import.
	Level int
	Kind  string
	// Bindings are the identifiers this statement binds in the file scope.
	Bindings []Binding
}

type extractor func(n *sitter.Node, src []byte) []Import

var extractors = map[registry.Language]extractor{
	registry.Python:     extractPython,
	registry.JavaScript: extractJavaScript,
	registry.TypeScript: extractJavaScript,
	registry.TSX:        extractJavaScript,
	registry.Go:         extractGo,
	registry.Rust:       extractRust,
	registry.Java:       extractJava,
	registry.CSS:        extractCSS,
	registry.HTML:       extractHTML,
}

// Extract returns the imports of ps in source order.
func Extract(ps *parser.ParsedSource) ([]Import, error) {
	extract, ok := extractors[ps.Language]
	if !ok {
		return nil, nil
	}
	desc := ps.Descriptor

	var out []Import
	err := ps.WithTree(func(root *sitter.Node) error {
		astutil.Walk(root, func(n *sitter.Node) astutil.WalkAction {
			kind := n.Kind()
			if desc.IsComment(kind) || desc.IsString(kind) {
				return astutil.SkipChildren
			}
			if !desc.IsImport(kind) {
				return astutil.Continue
			}
			found := extract(n, ps.Content)
			out = append(out, found...)
			if len(found) > 0 {
				return astutil.SkipChildren
			}
			return astutil.Continue
		})
		return nil
	})
	return out, err
}

func binding(n *sitter.Node, src []byte) Binding {
	pos := astutil.Start(n)
	return Binding{
		Name:      astutil.Text(n, src),
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		Line:      pos.Line,
		Column:    pos.Column,
	}
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'' || first == '`') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func isRelativePath(module string) bool {
	return strings.HasPrefix(module, "./") || strings.HasPrefix(module, "../") ||
		module == "." || module == ".." || strings.HasPrefix(module, "/")
}

func line(n *sitter.Node) int {
	return astutil.Start(n).Line
}

// lastOfKind returns the last node in pre-order under n with one of kinds.
func lastOfKind(n *sitter.Node, kinds ...string) *sitter.Node {
	var last *sitter.Node
	astutil.Walk(n, func(c *sitter.Node) astutil.WalkAction {
		for _, k := range kinds {
			if c.Kind() == k {
				last = c
			}
		}
		return astutil.Continue
	})
	return last
}

func firstOfKind(n *sitter.Node, kinds ...string) *sitter.Node {
	return astutil.Find(n, func(c *sitter.Node) bool {
		for _, k := range kinds {
			if c.Kind() == k {
				return true
			}
		}
		return false
	})
}
