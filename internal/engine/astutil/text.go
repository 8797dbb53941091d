package astutil

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// DefaultContextLines is the number of lines shown before and after a match.
const DefaultContextLines = 2

// Text returns the source bytes covered by n as a string.
func Text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if end > uint(len(src)) || start > end {
		return ""
	}
	return string(src[start:end])
}

// Position is a 1-based line/column location. Columns count bytes.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Start returns the 1-based start position of n.
func Start(n *sitter.Node) Position {
	p := n.StartPosition()
	return Position{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// End returns the 1-based position just past n.
func End(n *sitter.Node) Position {
	p := n.EndPosition()
	return Position{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// ContextLine is one rendered line of surrounding source.
type ContextLine struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Target bool   `json:"target,omitempty"`
}

// ContextLines slices lines around the 1-based line, clamped to the file.
// lines is the cached, already split content of the file.
func ContextLines(lines [][]byte, line, before, after int) []ContextLine {
	if line < 1 || line > len(lines) {
		return nil
	}
	if before < 0 {
		before = 0
	}
	if after < 0 {
		after = 0
	}
	first := max(1, line-before)
	last := min(len(lines), line+after)

	out := make([]ContextLine, 0, last-first+1)
	for i := first; i <= last; i++ {
		out = append(out, ContextLine{
			Line:   i,
			Text:   string(lines[i-1]),
			Target: i == line,
		})
	}
	return out
}

// FormatContext renders context lines with a ">" marker on the target line.
func FormatContext(lines []ContextLine) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		marker := " "
		if l.Target {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s %4d | %s", marker, l.Line, l.Text)
	}
	return b.String()
}

// LineText returns the trimmed text of a 1-based line, or "".
func LineText(lines [][]byte, line int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimSpace(string(lines[line-1]))
}
