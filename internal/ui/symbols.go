package ui

// Unicode symbols for step status indicators.
const (
	SymbolSuccess  = "✓" // Step succeeded
	SymbolFail     = "✗" // Step failed
	SymbolPending  = "○" // Step not yet started
	SymbolProgress = "◐" // Step running
	SymbolComplete = "●" // Step done
	SymbolSkipped  = "⊘" // Step skipped by its condition
	SymbolIssues   = "!" // Step failed but continueOnError was set
)
