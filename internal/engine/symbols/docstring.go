package symbols

import (
	"strings"

	"codeintel/internal/engine/astutil"
	"codeintel/internal/engine/parser/registry"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Nodes that wrap a definition without changing what a leading comment
// documents.
var docWrapperKinds = map[string]bool{
	"export_statement":     true,
	"decorated_definition": true,
	"lexical_declaration":  true,
	"variable_declaration": true,
	"type_declaration":     true,
	"const_declaration":    true,
	"var_declaration":      true,
}

// Siblings allowed between a doc comment and its definition.
var docSkipKinds = map[string]bool{
	"attribute_item": true,
	"decorator":      true,
}

func docstring(desc registry.Descriptor, n *sitter.Node, src []byte) string {
	switch desc.DocStyle {
	case registry.DocBodyString:
		return bodyDocstring(desc, n, src)
	case registry.DocPrecedingComment:
		return commentDocstring(desc, n, src)
	}
	return ""
}

func bodyDocstring(desc registry.Descriptor, n *sitter.Node, src []byte) string {
	body := n.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	stmt := body.NamedChild(0)
	if stmt.Kind() != "expression_statement" || stmt.NamedChildCount() == 0 {
		return ""
	}
	lit := stmt.NamedChild(0)
	if !desc.IsString(lit.Kind()) {
		return ""
	}
	return cleanDoc(stripStringQuotes(astutil.Text(lit, src)))
}

func commentDocstring(desc registry.Descriptor, n *sitter.Node, src []byte) string {
	anchor := n
	for p := anchor.Parent(); p != nil && docWrapperKinds[p.Kind()]; p = p.Parent() {
		first := p.NamedChild(0)
		if first == nil || first.Id() != anchor.Id() {
			break
		}
		anchor = p
	}

	var block []string
	expectRow := anchor.StartPosition().Row
	for prev := anchor.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		if docSkipKinds[prev.Kind()] {
			expectRow = prev.StartPosition().Row
			continue
		}
		if !desc.IsComment(prev.Kind()) || prev.EndPosition().Row+1 < expectRow {
			break
		}
		text := astutil.Text(prev, src)
		if !strings.HasPrefix(text, desc.DocPrefix) {
			break
		}
		block = append(block, text)
		expectRow = prev.StartPosition().Row
		if strings.HasPrefix(text, "/*") {
			// A block comment is the whole docstring.
			break
		}
	}
	if len(block) == 0 {
		return ""
	}

	var lines []string
	for i := len(block) - 1; i >= 0; i-- {
		lines = append(lines, commentLines(block[i])...)
	}
	return cleanDoc(strings.Join(lines, "\n"))
}

func commentLines(text string) []string {
	if strings.HasPrefix(text, "/*") {
		text = strings.TrimPrefix(text, "/**")
		text = strings.TrimPrefix(text, "/*")
		text = strings.TrimSuffix(text, "*/")
		raw := strings.Split(text, "\n")
		out := make([]string, 0, len(raw))
		for _, l := range raw {
			l = strings.TrimSpace(l)
			l = strings.TrimPrefix(l, "*")
			out = append(out, strings.TrimPrefix(l, " "))
		}
		return out
	}
	var out []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		l = strings.TrimLeft(l, "/!")
		out = append(out, strings.TrimPrefix(l, " "))
	}
	return out
}

func stripStringQuotes(s string) string {
	s = strings.TrimLeft(s, "rRuUbBfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

// cleanDoc trims blank edges and removes the common indentation of all
// lines after the first.
func cleanDoc(doc string) string {
	lines := strings.Split(strings.ReplaceAll(doc, "\t", "    "), "\n")
	indent := -1
	for _, l := range lines[1:] {
		trimmed := strings.TrimLeft(l, " ")
		if trimmed == "" {
			continue
		}
		if n := len(l) - len(trimmed); indent < 0 || n < indent {
			indent = n
		}
	}
	lines[0] = strings.TrimSpace(lines[0])
	for i := 1; i < len(lines); i++ {
		if indent > 0 && len(lines[i]) >= indent {
			lines[i] = lines[i][indent:]
		}
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
