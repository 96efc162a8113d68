// Package ui provides the styled terminal output used by vsts-pi.
//
// Everything here renders to an io.Writer using Lip Gloss, so the same code
// path serves a colour terminal and a redirected log. Call ConfigureColor once
// at startup to pick the colour profile (--no-color, NO_COLOR, or not a TTY
// all yield plain text).
//
// # Color Scheme
//
//	ColorSuccess   (green)  - Steps that succeeded
//	ColorError     (red)    - Failures and error lines
//	ColorWarning   (yellow) - Skipped steps, succeeded-with-issues
//	ColorInfo      (cyan)   - File paths, run identifiers
//	ColorMuted     (gray)   - Timing and secondary text
//	ColorSecondary (blue)   - In-progress indicators
//
// # Step Display
//
// StepDisplay renders pipeline steps as they run:
//
//	sd := ui.NewStepDisplay(os.Stdout)
//	sd.RenderStart("Build")
//	sd.RenderSuccess("Build", 3*time.Second)
//	sd.Divider()
//
// RenderRunSummary prints the per-step result table after a run.
//
// Spinner animates a single status line for slow calls. It redraws with
// carriage returns, so only start one when IsTerminal reports a TTY.
package ui
