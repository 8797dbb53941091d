package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeintel/internal/core/app"
	"codeintel/internal/core/ports"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmModel_Keys(t *testing.T) {
	m := newConfirmModel("Rename foo to bar?", newTheme(io.Discard))
	if got := m.View(); got != "Rename foo to bar? [y/n]\n" {
		t.Fatalf("unexpected prompt %q", got)
	}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	state := updated.(confirmModel)
	if state.decided {
		t.Fatalf("unbound key must not decide")
	}

	updated, cmd := state.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	state = updated.(confirmModel)
	if !state.decided || !state.accepted {
		t.Fatalf("expected y to accept, got %+v", state)
	}
	if cmd == nil {
		t.Fatalf("expected quit command after a decision")
	}
	if state.View() != "" {
		t.Fatalf("expected empty view after a decision")
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	state = updated.(confirmModel)
	if !state.decided || state.accepted {
		t.Fatalf("expected enter to decline, got %+v", state)
	}
}

func renameRequest(oldName, newName string) ports.RefactorRequest {
	return ports.RefactorRequest{Operation: "rename", OldName: oldName, NewName: newName}
}

func confirmRuntime(t *testing.T) (string, *runtime) {
	t.Helper()
	root := writeProject(t)
	rt, err := setup(context.Background(), &options{root: root}, &bytes.Buffer{})
	require.NoError(t, err)
	t.Cleanup(rt.close)
	return root, rt
}

func TestConfirmRename_Accepted(t *testing.T) {
	root, rt := confirmRuntime(t)
	var prompts []string
	ask := func(_ context.Context, prompt string) (bool, error) {
		prompts = append(prompts, prompt)
		return true, nil
	}

	var out bytes.Buffer
	req := renameRequest("foo", "bar")
	require.NoError(t, confirmRename(context.Background(), rt, req, &out, ask))

	assert.Equal(t, []string{"Rename foo to bar?"}, prompts)
	assert.Contains(t, out.String(), "+++ b/b.py")
	assert.Contains(t, out.String(), "renamed foo to bar: 3 occurrences in 2 files")
	b, err := os.ReadFile(filepath.Join(root, "b.py"))
	require.NoError(t, err)
	assert.Equal(t, "from a import bar\n\n\n\nbar()\n", string(b))
}

func TestConfirmRename_Declined(t *testing.T) {
	root, rt := confirmRuntime(t)
	before, err := os.ReadFile(filepath.Join(root, "a.py"))
	require.NoError(t, err)

	var out bytes.Buffer
	ask := func(context.Context, string) (bool, error) { return false, nil }
	require.NoError(t, confirmRename(context.Background(), rt, renameRequest("foo", "bar"), &out, ask))

	assert.Contains(t, out.String(), "cancelled plan ")
	after, err := os.ReadFile(filepath.Join(root, "a.py"))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	status := app.NewHealthService(rt.app).Check(context.Background())
	assert.Equal(t, "0 pending", status.Components["plans"])
}

func TestConfirmRename_NothingToAsk(t *testing.T) {
	_, rt := confirmRuntime(t)
	ask := func(context.Context, string) (bool, error) {
		t.Fatal("no question expected without occurrences")
		return false, nil
	}
	var out bytes.Buffer
	require.NoError(t, confirmRename(context.Background(), rt, renameRequest("missing", "other"), &out, ask))
	assert.Contains(t, out.String(), "no occurrences of missing")
}

func TestRun_InteractiveNeedsTerminal(t *testing.T) {
	root := writeProject(t)

	code, _, errOut := run(t, "y\n", "--root", root, "refactor", "rename", "foo", "bar", "--interactive")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "terminal")

	code, _, errOut = run(t, "", "--root", root, "--json", "refactor", "rename", "foo", "bar", "-i")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "--json")
}

func TestTheme_PlainWriterIsUnstyled(t *testing.T) {
	th := newTheme(&bytes.Buffer{})
	diff := "--- a/a.py\n+++ b/a.py\n@@ -1 +1 @@\n-foo\n+bar\n"
	assert.Equal(t, diff, th.diff(diff))
	assert.Equal(t, "3 matches", th.paint(th.muted, "3 matches"))
}

func TestTheme_ColourTerminal(t *testing.T) {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.ANSI256)
	th := themeFor(r)

	diff := "--- a/a.py\n+++ b/a.py\n@@ -1 +1 @@\n-foo\n+bar\n \tkeep\n"
	got := th.diff(diff)
	assert.Contains(t, got, "\x1b[")
	assert.Equal(t, strings.Count(diff, "\n"), strings.Count(got, "\n"))
	assert.True(t, strings.HasSuffix(got, " \tkeep\n"), "context lines stay as they are")
	assert.Contains(t, th.paint(th.success, "renamed"), "renamed")
}
