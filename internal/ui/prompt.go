package ui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// ConfirmFunc asks a yes/no question. Unanswered questions are treated as no.
type ConfirmFunc func(question string) (bool, error)

// Confirmer returns a ConfirmFunc. With assumeYes every question is answered
// yes without prompting.
func Confirmer(assumeYes bool) ConfirmFunc {
	if assumeYes {
		return func(string) (bool, error) { return true, nil }
	}
	return func(question string) (bool, error) {
		return Confirm(question, "use --yes to skip")
	}
}

// Confirm asks the user a yes/no question on stderr. The default answer is no.
func Confirm(question string, bypassHint string) (bool, error) {
	if err := RequireInteraction(bypassHint); err != nil {
		return false, fmt.Errorf("confirmation required: %w", err)
	}

	m := &confirmModel{question: question}
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	if _, err := p.Run(); err != nil {
		return false, fmt.Errorf("confirm prompt: %w", err)
	}

	if m.cancelled {
		return false, ErrCancelled
	}
	return m.confirmed, nil
}

type confirmModel struct {
	question  string
	confirmed bool
	cancelled bool
	answered  bool
}

func (m *confirmModel) Init() tea.Cmd { return nil }

func (m *confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "y", "Y":
			m.confirmed = true
			m.answered = true
			return m, tea.Quit
		case "n", "N", "enter":
			m.confirmed = false
			m.answered = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *confirmModel) View() string {
	if m.answered || m.cancelled {
		return ""
	}
	return AccentStyle.Render("?") + " " + m.question + " " + MutedStyle.Render("[y/N]") + " "
}
