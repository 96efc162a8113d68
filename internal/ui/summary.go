package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/elgendy/vsts-agent/internal/util"
)

// StepOutcome is the final state of one pipeline step.
type StepOutcome string

const (
	OutcomeSucceeded  StepOutcome = "succeeded"
	OutcomeIssues     StepOutcome = "succeededWithIssues"
	OutcomeFailed     StepOutcome = "failed"
	OutcomeSkipped    StepOutcome = "skipped"
	OutcomeCanceled   StepOutcome = "canceled"
	OutcomeNotStarted StepOutcome = "notStarted"
)

// StepResult mirrors the pipeline package's step result to avoid an import cycle.
type StepResult struct {
	Name     string
	Outcome  StepOutcome
	Duration time.Duration
	Message  string
}

// RunSummary holds everything needed to render the end-of-run report.
type RunSummary struct {
	RunID    string
	Pipeline string
	Steps    []StepResult
	Duration time.Duration
}

// Counts returns how many steps ended in each outcome.
func (s *RunSummary) Counts() map[StepOutcome]int {
	counts := make(map[StepOutcome]int)
	for _, st := range s.Steps {
		counts[st.Outcome]++
	}
	return counts
}

// SummaryRenderer formats run summaries for terminal display.
type SummaryRenderer struct {
	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
	warnStyle    lipgloss.Style
	pathStyle    lipgloss.Style
	mutedStyle   lipgloss.Style
}

// NewSummaryRenderer creates a new summary renderer with default styles.
func NewSummaryRenderer() *SummaryRenderer {
	return &SummaryRenderer{
		errorStyle:   lipgloss.NewStyle().Foreground(ColorError),
		successStyle: lipgloss.NewStyle().Foreground(ColorSuccess),
		warnStyle:    lipgloss.NewStyle().Foreground(ColorWarning),
		pathStyle:    lipgloss.NewStyle().Foreground(ColorInfo),
		mutedStyle:   lipgloss.NewStyle().Foreground(ColorMuted),
	}
}

// RenderRunSummary generates the formatted run summary.
func RenderRunSummary(summary *RunSummary) string {
	return NewSummaryRenderer().Render(summary)
}

// Render generates the formatted summary string. An empty summary renders
// as an empty string.
func (r *SummaryRenderer) Render(summary *RunSummary) string {
	if summary == nil || len(summary.Steps) == 0 {
		return ""
	}

	var sb strings.Builder

	counts := summary.Counts()
	failed := counts[OutcomeFailed]
	canceled := counts[OutcomeCanceled]

	header := fmt.Sprintf("%s %s", SymbolSuccess, "Pipeline succeeded")
	style := r.successStyle
	switch {
	case canceled > 0:
		header = fmt.Sprintf("%s Pipeline canceled", SymbolFail)
		style = r.errorStyle
	case failed > 0:
		header = fmt.Sprintf("%s Pipeline failed: %d %s failed", SymbolFail, failed, util.Pluralize(failed, "step", "steps"))
		style = r.errorStyle
	case counts[OutcomeIssues] > 0:
		header = fmt.Sprintf("%s Pipeline succeeded with issues", SymbolIssues)
		style = r.warnStyle
	}
	sb.WriteString(style.Render(header))
	if summary.Pipeline != "" {
		sb.WriteString(" ")
		sb.WriteString(r.pathStyle.Render(summary.Pipeline))
	}
	sb.WriteString("\n")

	if summary.RunID != "" {
		sb.WriteString(r.mutedStyle.Render(fmt.Sprintf("  run %s, %s", summary.RunID, formatDuration(summary.Duration))))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	for _, st := range summary.Steps {
		sb.WriteString("  ")
		sb.WriteString(r.outcomeSymbol(st.Outcome))
		sb.WriteString(" ")
		sb.WriteString(st.Name)
		sb.WriteString(" ")
		sb.WriteString(r.mutedStyle.Render(string(st.Outcome)))
		if st.Message != "" {
			sb.WriteString("\n      ")
			sb.WriteString(r.mutedStyle.Render(st.Message))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func (r *SummaryRenderer) outcomeSymbol(o StepOutcome) string {
	switch o {
	case OutcomeSucceeded:
		return r.successStyle.Render(SymbolSuccess)
	case OutcomeIssues:
		return r.warnStyle.Render(SymbolIssues)
	case OutcomeFailed, OutcomeCanceled:
		return r.errorStyle.Render(SymbolFail)
	case OutcomeSkipped:
		return r.warnStyle.Render(SymbolSkipped)
	default:
		return r.mutedStyle.Render(SymbolPending)
	}
}
