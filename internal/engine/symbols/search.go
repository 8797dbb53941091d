package symbols

import (
	"fmt"
	"sort"

	"codeintel/internal/engine/astutil"
)

// Operation selects what a search collects.
type Operation string

const (
	OpDefinition Operation = "definition"
	OpReferences Operation = "references"
	OpAll        Operation = "all"
)

// ParseOperation validates an operation name. An empty name means all.
func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OpDefinition, OpReferences, OpAll:
		return Operation(s), nil
	case "":
		return OpAll, nil
	}
	return "", fmt.Errorf("unknown symbol operation %q", s)
}

// Match is one search hit.
type Match struct {
	File         string                `json:"file"`
	Line         int                   `json:"line"`
	Column       int                   `json:"column"`
	EndColumn    int                   `json:"end_column"`
	Kind         string                `json:"kind"`
	ScopeKind    string                `json:"scope_kind"`
	Snippet      string                `json:"snippet"`
	Context      []astutil.ContextLine `json:"context,omitempty"`
	Docstring    string                `json:"docstring,omitempty"`
	Qualified    string                `json:"qualified_name,omitempty"`
	IsDefinition bool                  `json:"is_definition"`
	Resolved     bool                  `json:"resolved"`
}

// Search collects the matches for name in one indexed file. lines is the
// cached line list of the same file; contextLines < 0 disables context.
func Search(idx *FileIndex, lines [][]byte, name string, op Operation, contextLines int) []Match {
	var out []Match
	if op == OpDefinition || op == OpAll {
		for _, sym := range idx.Definitions(name) {
			out = append(out, Match{
				File:         idx.Path,
				Line:         sym.Line,
				Column:       sym.Column,
				EndColumn:    sym.EndColumn,
				Kind:         string(sym.Kind),
				ScopeKind:    string(idx.ScopeKind(sym.Scope)),
				Snippet:      astutil.LineText(lines, sym.Line),
				Context:      surrounding(lines, sym.Line, contextLines),
				Docstring:    sym.Docstring,
				Qualified:    sym.QualifiedName,
				IsDefinition: true,
				Resolved:     true,
			})
		}
	}
	if op == OpReferences || op == OpAll {
		for _, ref := range idx.Occurrences(name) {
			if ref.IsDefinition {
				continue
			}
			m := Match{
				File:      idx.Path,
				Line:      ref.Line,
				Column:    ref.Column,
				EndColumn: ref.EndColumn,
				Kind:      "reference",
				ScopeKind: string(idx.ScopeKind(ref.Scope)),
				Snippet:   astutil.LineText(lines, ref.Line),
				Context:   surrounding(lines, ref.Line, contextLines),
			}
			if sym, ok := idx.Resolve(ref); ok {
				m.Resolved = true
				m.Qualified = sym.QualifiedName
				if sym.Import && sym.StartByte == ref.StartByte {
					m.Kind = "import"
				}
			}
			out = append(out, m)
		}
	}
	SortMatches(out)
	if op == OpAll {
		out = Dedup(out)
	}
	return out
}

func surrounding(lines [][]byte, line, n int) []astutil.ContextLine {
	if n < 0 {
		return nil
	}
	return astutil.ContextLines(lines, line, n, n)
}

// SortMatches orders matches by file, line, then column. Definitions sort
// before references at the same location.
func SortMatches(ms []Match) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.IsDefinition && !b.IsDefinition
	})
}

// Dedup drops matches at a location already seen. ms must be sorted.
func Dedup(ms []Match) []Match {
	out := ms[:0]
	for i, m := range ms {
		if i > 0 {
			prev := out[len(out)-1]
			if prev.File == m.File && prev.Line == m.Line && prev.Column == m.Column {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}
