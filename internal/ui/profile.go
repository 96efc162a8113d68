package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Color modes accepted by ConfigureColor.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// ConfigureColor sets the global Lip Gloss colour profile.
// "never", NO_COLOR, and non-terminal output in "auto" mode all switch to
// plain ASCII; "always" keeps the terminal's detected profile (at least ANSI).
func ConfigureColor(mode string, out io.Writer) {
	lipgloss.SetColorProfile(resolveProfile(mode, out))
}

func resolveProfile(mode string, out io.Writer) termenv.Profile {
	switch mode {
	case ColorNever:
		return termenv.Ascii
	case ColorAlways:
		p := termenv.EnvColorProfile()
		if p == termenv.Ascii {
			return termenv.ANSI
		}
		return p
	}
	if os.Getenv("NO_COLOR") != "" || !IsTerminal(out) {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

// DisableColors switches to monochrome output.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
