package ui

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const (
	envNoInteraction = "NO_INTERACTION"
	envCI            = "CI"
	envTerm          = "TERM"
)

// ErrCancelled is returned when the user aborts a prompt with ctrl+c or esc.
var ErrCancelled = errors.New("cancelled")

// ErrNoInteraction is returned when a prompt is needed but stdin/stderr is not
// a terminal.
var ErrNoInteraction = errors.New("not an interactive terminal")

var interactionState struct {
	mu          sync.RWMutex
	initialized bool
	interactive bool
}

// ConfigureInteraction decides once whether prompts and colour are allowed.
func ConfigureInteraction(noInteraction bool) {
	interactive := detectInteractiveMode(noInteraction)

	interactionState.mu.Lock()
	interactionState.initialized = true
	interactionState.interactive = interactive
	interactionState.mu.Unlock()

	if interactive {
		lipgloss.SetColorProfile(termenv.ColorProfile())
		return
	}
	lipgloss.SetColorProfile(termenv.Ascii)
}

func IsInteractive() bool {
	interactionState.mu.RLock()
	initialized, interactive := interactionState.initialized, interactionState.interactive
	interactionState.mu.RUnlock()
	if initialized {
		return interactive
	}

	ConfigureInteraction(false)
	return IsInteractive()
}

// RequireInteraction fails with ErrNoInteraction, naming bypassHint, when
// prompts are not possible.
func RequireInteraction(bypassHint string) error {
	if IsInteractive() {
		return nil
	}
	if bypassHint == "" {
		return ErrNoInteraction
	}
	return fmt.Errorf("%w (%s)", ErrNoInteraction, bypassHint)
}

func detectInteractiveMode(noInteraction bool) bool {
	if noInteraction {
		return false
	}
	if envTruthy(envNoInteraction) || envTruthy(envCI) {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(envTerm)), "dumb") {
		return false
	}
	return isTerminal(os.Stdin) && isTerminal(os.Stderr)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func envTruthy(key string) bool {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
