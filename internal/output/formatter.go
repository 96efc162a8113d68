package output

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/elgendy/vsts-agent/internal/ui"
)

// Formatter processes step output lines for display.
type Formatter interface {
	Name() string

	// ProcessLine transforms a single line of output. Returning false drops
	// the line. ANSI codes should pass through unchanged.
	ProcessLine(line string) (string, bool)
}

// StepFormatter renders ##[...] formatting markers and highlights lines that
// look like errors.
type StepFormatter struct {
	errorStyle   lipgloss.Style
	warningStyle lipgloss.Style
	sectionStyle lipgloss.Style
	commandStyle lipgloss.Style
	debugStyle   lipgloss.Style
}

// NewStepFormatter creates a formatter using the ui palette.
func NewStepFormatter() *StepFormatter {
	return &StepFormatter{
		errorStyle:   lipgloss.NewStyle().Foreground(ui.ColorError),
		warningStyle: lipgloss.NewStyle().Foreground(ui.ColorWarning),
		sectionStyle: lipgloss.NewStyle().Bold(true),
		commandStyle: lipgloss.NewStyle().Foreground(ui.ColorSecondary),
		debugStyle:   lipgloss.NewStyle().Foreground(ui.ColorMuted),
	}
}

// Name returns "step".
func (f *StepFormatter) Name() string {
	return "step"
}

// ProcessLine styles one line of step output.
func (f *StepFormatter) ProcessLine(line string) (string, bool) {
	if marker, text, ok := formatMarker(line); ok {
		switch marker {
		case "error":
			return f.errorStyle.Render("error: " + text), true
		case "warning":
			return f.warningStyle.Render("warning: " + text), true
		case "section":
			return f.sectionStyle.Render(text), true
		case "command":
			return f.commandStyle.Render(text), true
		case "debug":
			return f.debugStyle.Render(text), true
		case "group":
			return f.sectionStyle.Render("▸ " + text), true
		case "endgroup":
			return "", false
		}
		// Unknown markers print as written.
	}

	if isErrorLine(line) {
		return f.errorStyle.Render(line), true
	}
	return line, true
}

// formatMarker splits "##[name]text" into its lower-cased name and text.
func formatMarker(line string) (marker, text string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimLeft(line, " \t"), "##[")
	if !found {
		return "", "", false
	}
	marker, text, ok = strings.Cut(rest, "]")
	if !ok || marker == "" {
		return "", "", false
	}
	return strings.ToLower(marker), text, true
}

var errorPrefixes = []string{
	"error:",
	"error ",
	"fatal:",
	"fatal ",
	"panic:",
	"exception:",
	"fail:",
	"failed:",
}

// isErrorLine checks if a line appears to be an error message.
func isErrorLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	lower := strings.ToLower(trimmed)
	for _, prefix := range errorPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return strings.Contains(line, "ERROR") || strings.HasPrefix(trimmed, "FAILED")
}
