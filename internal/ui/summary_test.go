package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderRunSummary_Empty(t *testing.T) {
	assert.Empty(t, RenderRunSummary(nil))
	assert.Empty(t, RenderRunSummary(&RunSummary{}))
}

func TestRenderRunSummary_Success(t *testing.T) {
	summary := &RunSummary{
		RunID:    "4f0c",
		Pipeline: "ci.yml",
		Duration: 3 * time.Second,
		Steps: []StepResult{
			{Name: "Build", Outcome: OutcomeSucceeded},
			{Name: "Publish", Outcome: OutcomeSkipped},
		},
	}

	result := RenderRunSummary(summary)

	assert.True(t, strings.HasPrefix(result, SymbolSuccess+" Pipeline succeeded ci.yml"))
	assert.Contains(t, result, "run 4f0c, 3.0s")
	assert.Contains(t, result, SymbolSuccess+" Build succeeded")
	assert.Contains(t, result, SymbolSkipped+" Publish skipped")
}

func TestRenderRunSummary_Failures(t *testing.T) {
	summary := &RunSummary{
		Steps: []StepResult{
			{Name: "Build", Outcome: OutcomeSucceeded},
			{Name: "Test", Outcome: OutcomeFailed, Message: "exit code 1"},
			{Name: "Lint", Outcome: OutcomeFailed, Message: "exit code 2"},
			{Name: "Deploy", Outcome: OutcomeNotStarted},
		},
	}

	result := RenderRunSummary(summary)

	assert.Contains(t, result, "Pipeline failed: 2 steps failed")
	assert.Contains(t, result, "exit code 1")
	assert.Contains(t, result, SymbolPending+" Deploy notStarted")
}

func TestRenderRunSummary_SingleFailureWording(t *testing.T) {
	result := RenderRunSummary(&RunSummary{Steps: []StepResult{{Name: "Test", Outcome: OutcomeFailed}}})
	assert.Contains(t, result, "1 step failed")
}

func TestRenderRunSummary_CanceledWins(t *testing.T) {
	summary := &RunSummary{
		Steps: []StepResult{
			{Name: "Build", Outcome: OutcomeFailed},
			{Name: "Test", Outcome: OutcomeCanceled},
		},
	}

	assert.Contains(t, RenderRunSummary(summary), "Pipeline canceled")
}

func TestRenderRunSummary_Issues(t *testing.T) {
	summary := &RunSummary{
		Steps: []StepResult{{Name: "Lint", Outcome: OutcomeIssues}},
	}

	assert.Contains(t, RenderRunSummary(summary), "Pipeline succeeded with issues")
}

func TestRunSummaryCounts(t *testing.T) {
	summary := &RunSummary{
		Steps: []StepResult{
			{Outcome: OutcomeSucceeded},
			{Outcome: OutcomeSucceeded},
			{Outcome: OutcomeFailed},
		},
	}

	counts := summary.Counts()
	assert.Equal(t, 2, counts[OutcomeSucceeded])
	assert.Equal(t, 1, counts[OutcomeFailed])
	assert.Equal(t, 0, counts[OutcomeSkipped])
}
