package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// theme styles text output. Writers that are not colour terminals, such as
// pipes and files, get the text unchanged.
type theme struct {
	plain bool

	title   lipgloss.Style
	added   lipgloss.Style
	removed lipgloss.Style
	hunk    lipgloss.Style
	warning lipgloss.Style
	success lipgloss.Style
	muted   lipgloss.Style
}

func newTheme(w io.Writer) theme {
	return themeFor(lipgloss.NewRenderer(w))
}

func themeFor(r *lipgloss.Renderer) theme {
	base := r.NewStyle().TabWidth(lipgloss.NoTabConversion)
	return theme{
		plain:   r.ColorProfile() == termenv.Ascii,
		title:   base.Foreground(lipgloss.Color("#3B82F6")).Bold(true),
		added:   base.Foreground(lipgloss.Color("#10B981")),
		removed: base.Foreground(lipgloss.Color("#F87171")),
		hunk:    base.Foreground(lipgloss.Color("#A78BFA")),
		warning: base.Foreground(lipgloss.Color("#FBBF24")).Bold(true),
		success: base.Foreground(lipgloss.Color("#10B981")).Bold(true),
		muted:   base.Foreground(lipgloss.Color("#64748B")).Italic(true),
	}
}

// paint renders one line of text with st.
func (t theme) paint(st lipgloss.Style, s string) string {
	if t.plain || s == "" {
		return s
	}
	return st.Render(s)
}

// diff colours a unified diff line by line; line breaks are kept as they are.
func (t theme) diff(d string) string {
	if t.plain {
		return d
	}
	var b strings.Builder
	for _, line := range strings.SplitAfter(d, "\n") {
		body := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(body, "+++"), strings.HasPrefix(body, "---"):
			body = t.paint(t.title, body)
		case strings.HasPrefix(body, "@@"):
			body = t.paint(t.hunk, body)
		case strings.HasPrefix(body, "+"):
			body = t.paint(t.added, body)
		case strings.HasPrefix(body, "-"):
			body = t.paint(t.removed, body)
		}
		b.WriteString(body)
		if strings.HasSuffix(line, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
