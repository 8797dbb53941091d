package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"codeintel/internal/core/errors"
	"codeintel/internal/core/ports"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

type confirmKeyMap struct {
	Yes key.Binding
	No  key.Binding
}

var confirmKeys = confirmKeyMap{
	Yes: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "apply")),
	No:  key.NewBinding(key.WithKeys("n", "N", "enter", "esc", "q", "ctrl+c"), key.WithHelp("n", "cancel")),
}

// confirmModel asks one yes/no question. Anything but an explicit yes
// declines.
type confirmModel struct {
	prompt   string
	theme    theme
	decided  bool
	accepted bool
}

func newConfirmModel(prompt string, th theme) confirmModel {
	return confirmModel{prompt: prompt, theme: th}
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(k, confirmKeys.Yes):
		m.decided, m.accepted = true, true
		return m, tea.Quit
	case key.Matches(k, confirmKeys.No):
		m.decided = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.decided {
		return ""
	}
	help := fmt.Sprintf("[%s/%s]", confirmKeys.Yes.Help().Key, confirmKeys.No.Help().Key)
	return m.prompt + " " + m.theme.paint(m.theme.muted, help) + "\n"
}

// askFunc answers a yes/no question.
type askFunc func(ctx context.Context, prompt string) (bool, error)

// terminalAsk runs the confirmation on the terminal behind in and out.
func terminalAsk(in io.Reader, out io.Writer) askFunc {
	return func(ctx context.Context, prompt string) (bool, error) {
		p := tea.NewProgram(newConfirmModel(prompt, newTheme(out)),
			tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
		final, err := p.Run()
		if err != nil {
			if ctx.Err() != nil {
				return false, errors.Wrap(ctx.Err(), errors.CodeCancelled, "confirmation cancelled")
			}
			return false, err
		}
		m, _ := final.(confirmModel)
		return m.accepted, nil
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// confirmRename previews req, asks before writing and then applies or
// cancels the previewed plan.
func confirmRename(ctx context.Context, rt *runtime, req ports.RefactorRequest, out io.Writer, ask askFunc) error {
	req.Operation = "preview"
	res, err := rt.app.Refactor(ctx, req)
	if err != nil {
		return err
	}
	if err := renderRefactor(out, res); err != nil {
		return err
	}
	if res.TotalChanges == 0 {
		return rt.app.CancelPlan(ctx, res.PlanID)
	}

	ok, err := ask(ctx, fmt.Sprintf("Rename %s to %s?", res.OldName, res.NewName))
	if err != nil {
		_ = rt.app.CancelPlan(context.WithoutCancel(ctx), res.PlanID)
		return err
	}
	if !ok {
		if err := rt.app.CancelPlan(ctx, res.PlanID); err != nil {
			return err
		}
		return renderCancelled(out, cancelledPlan{PlanID: res.PlanID, State: "cancelled"})
	}
	applied, err := rt.app.ApplyPlan(ctx, res.PlanID)
	if err != nil {
		return err
	}
	return renderRefactor(out, applied)
}
