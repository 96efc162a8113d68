package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// DividerWidth is the default width for divider lines.
const DividerWidth = 64

// StepDisplay renders pipeline step status to an output writer.
// Output is strictly line-oriented so it reads the same in a log file.
type StepDisplay struct {
	w          io.Writer
	showTiming bool
}

// NewStepDisplay creates a new step display writing to w.
func NewStepDisplay(w io.Writer) *StepDisplay {
	return &StepDisplay{w: w, showTiming: true}
}

// SetTiming toggles the duration suffix on completed steps.
func (sd *StepDisplay) SetTiming(on bool) {
	sd.showTiming = on
}

// RenderStart renders a step that is about to run.
// Shows: ◐ Build
func (sd *StepDisplay) RenderStart(name string) {
	style := lipgloss.NewStyle().Foreground(ColorSecondary)
	fmt.Fprintf(sd.w, "%s %s\n", style.Render(SymbolProgress), name)
}

// RenderSuccess renders a completed step.
// Shows: ● Build (0.3s)
func (sd *StepDisplay) RenderSuccess(name string, duration time.Duration) {
	sd.renderDone(SymbolComplete, ColorSuccess, name, duration, "")
}

// RenderIssues renders a step that failed with continueOnError set.
// Shows: ! Lint (1.2s) exit code 1, continuing
func (sd *StepDisplay) RenderIssues(name string, duration time.Duration, err error) {
	sd.renderDone(SymbolIssues, ColorWarning, name, duration, errDetail(err)+", continuing")
}

// RenderFailed renders a failed step.
// Shows: ✗ Test (2.3s) exit code 2
func (sd *StepDisplay) RenderFailed(name string, duration time.Duration, err error) {
	sd.renderDone(SymbolFail, ColorError, name, duration, errDetail(err))
}

// RenderSkipped renders a step whose condition evaluated to false.
// Shows: ⊘ Publish (condition: failed())
func (sd *StepDisplay) RenderSkipped(name string, reason string) {
	symbolStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	reasonStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	if reason != "" {
		fmt.Fprintf(sd.w, "%s %s %s\n",
			symbolStyle.Render(SymbolSkipped),
			name,
			reasonStyle.Render("("+reason+")"),
		)
		return
	}
	fmt.Fprintf(sd.w, "%s %s\n", symbolStyle.Render(SymbolSkipped), name)
}

// CommandPrompt renders the command a step is about to execute.
// Shows: $ make test
func (sd *StepDisplay) CommandPrompt(cmd string) {
	style := lipgloss.NewStyle().Foreground(ColorMuted)
	for i, line := range strings.Split(strings.TrimRight(cmd, "\n"), "\n") {
		prefix := "$"
		if i > 0 {
			prefix = ">"
		}
		fmt.Fprintf(sd.w, "%s %s\n", style.Render(prefix), line)
	}
}

// LogIssue prints a warning or error a step reported about itself.
func (sd *StepDisplay) LogIssue(isError bool, message string) {
	label, color := "warning", ColorWarning
	if isError {
		label, color = "error", ColorError
	}
	style := lipgloss.NewStyle().Foreground(color)
	fmt.Fprintf(sd.w, "%s %s\n", style.Render(label+":"), message)
}

// Divider renders a horizontal line to separate steps from the summary.
func (sd *StepDisplay) Divider() {
	fmt.Fprintf(sd.w, "\n%s\n\n", FormatDivider(DividerWidth))
}

func (sd *StepDisplay) renderDone(symbol string, color lipgloss.Color, name string, d time.Duration, detail string) {
	timing := ""
	if sd.showTiming {
		timing = formatDuration(d)
	}
	line := FormatPhase(symbol, color, name, timing)
	if detail != "" {
		line += " " + lipgloss.NewStyle().Foreground(ColorMuted).Render(detail)
	}
	fmt.Fprintln(sd.w, line)
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return strings.Join(strings.Fields(err.Error()), " ")
}

// FormatPhase returns a formatted status line as a string.
func FormatPhase(symbol string, symbolColor lipgloss.Color, name string, timing string) string {
	symbolStyle := lipgloss.NewStyle().Foreground(symbolColor)
	timingStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	if timing == "" {
		return fmt.Sprintf("%s %s", symbolStyle.Render(symbol), name)
	}
	return fmt.Sprintf("%s %s %s", symbolStyle.Render(symbol), name, timingStyle.Render("("+timing+")"))
}

// FormatDivider returns a divider line as a string.
func FormatDivider(width int) string {
	style := lipgloss.NewStyle().Foreground(ColorMuted)
	return style.Render(strings.Repeat("━", width))
}

// formatDuration formats a duration for display (e.g., "0.3s", "1.2s", "2m05s").
func formatDuration(d time.Duration) string {
	if d >= time.Minute {
		m := int(d / time.Minute)
		s := int((d % time.Minute) / time.Second)
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	return fmt.Sprintf("%.1fs", secs)
}
