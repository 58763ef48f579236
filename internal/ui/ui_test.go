package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestEnvTruthyValues(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{name: "one", value: "1", want: true},
		{name: "true", value: "TRUE", want: true},
		{name: "yes", value: " yes ", want: true},
		{name: "zero", value: "0", want: false},
		{name: "empty", value: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LEMUR_TEST_TRUTHY", tt.value)
			if got := envTruthy("LEMUR_TEST_TRUTHY"); got != tt.want {
				t.Fatalf("envTruthy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectInteractiveModeHonoursOverrides(t *testing.T) {
	if detectInteractiveMode(true) {
		t.Errorf("noInteraction flag ignored")
	}
	t.Setenv(envCI, "true")
	if detectInteractiveMode(false) {
		t.Errorf("CI=true should disable interaction")
	}
}

func TestRequireInteractionWithoutTerminal(t *testing.T) {
	ConfigureInteraction(true)
	err := RequireInteraction("use --yes to skip")
	if !errors.Is(err, ErrNoInteraction) {
		t.Fatalf("RequireInteraction() = %v, want ErrNoInteraction", err)
	}
	if !strings.Contains(err.Error(), "--yes") {
		t.Errorf("error %q does not carry the hint", err)
	}

	if _, err := Confirmer(false)("Delete?"); !errors.Is(err, ErrNoInteraction) {
		t.Errorf("Confirmer(false) error = %v", err)
	}
	ok, err := Confirmer(true)("Delete?")
	if err != nil || !ok {
		t.Errorf("Confirmer(true) = %v, %v", ok, err)
	}
}

func TestConfirmModelKeys(t *testing.T) {
	tests := []struct {
		key       tea.KeyMsg
		confirmed bool
		cancelled bool
	}{
		{key: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")}, confirmed: true},
		{key: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")}},
		{key: tea.KeyMsg{Type: tea.KeyEnter}},
		{key: tea.KeyMsg{Type: tea.KeyEsc}, cancelled: true},
	}

	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			m := &confirmModel{question: "Continue?"}
			if !strings.Contains(m.View(), "[y/N]") {
				t.Errorf("View() = %q", m.View())
			}
			_, cmd := m.Update(tt.key)
			if cmd == nil {
				t.Fatal("Update() did not quit")
			}
			if m.confirmed != tt.confirmed || m.cancelled != tt.cancelled {
				t.Errorf("confirmed=%v cancelled=%v", m.confirmed, m.cancelled)
			}
			if m.View() != "" {
				t.Errorf("View() after answer = %q", m.View())
			}
		})
	}
}

func TestPlan(t *testing.T) {
	ConfigureInteraction(true)
	var buf bytes.Buffer
	Plan(&buf, "Pending actions", []string{"delete droplet web (1)", "delete record www.example.com (2)"})
	out := buf.String()
	for _, want := range []string{"Pending actions", "- delete droplet web (1)", "- delete record www.example.com (2)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestKeyValuesAligns(t *testing.T) {
	ConfigureInteraction(true)
	out := KeyValues("", KV("Name", "web"), KV("IP", "1.2.3.4"))
	want := "Name: web\nIP:   1.2.3.4\n"
	if out != want {
		t.Errorf("KeyValues() = %q, want %q", out, want)
	}
}
