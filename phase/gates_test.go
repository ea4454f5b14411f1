package phase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/phase"
)

func newRunWithEvidence(n int) *phase.Run {
	k, _ := phase.New(phase.Options{Strategy: passingValidators(), Build: passingValidators()})
	run := k.Start("run-1", phase.Blueprint{ID: "bp-1"})
	for i := 0; i < n; i++ {
		run.Evidence().Append(apitypes.Evidence{ID: "e"})
	}
	return run
}

func TestGatesFailTDDWhenCoverageBelowThreshold(t *testing.T) {
	run := newRunWithEvidence(5)
	run.SetBuildReport(phase.BuildReport{
		TestFilesPresent: true, CoveragePercent: 50, TestRunOutput: []string{"tdd: green"},
		AccessibilityScore: 95, PerformanceScore: 90, SecurityScore: 95, PriorPhasesPassed: true,
	})
	verdict := phase.DefaultGates().Evaluate(run)
	assert.False(t, verdict.Passed)
	assert.Contains(t, verdict.Blockers, "tdd")
}

func TestGatesFailSecurityBudgetAsBlocker(t *testing.T) {
	run := newRunWithEvidence(5)
	run.SetBuildReport(phase.BuildReport{
		TestFilesPresent: true, CoveragePercent: 90, TestRunOutput: []string{"tdd: green"},
		AccessibilityScore: 95, PerformanceScore: 90, SecurityScore: 50, PriorPhasesPassed: true,
	})
	verdict := phase.DefaultGates().Evaluate(run)
	assert.False(t, verdict.Passed)
	assert.Contains(t, verdict.Blockers, "budget:security")
}

func TestGatesFailAccessibilityBudgetAsMajor(t *testing.T) {
	run := newRunWithEvidence(5)
	run.SetBuildReport(phase.BuildReport{
		TestFilesPresent: true, CoveragePercent: 90, TestRunOutput: []string{"tdd: green"},
		AccessibilityScore: 50, PerformanceScore: 90, SecurityScore: 95, PriorPhasesPassed: true,
	})
	verdict := phase.DefaultGates().Evaluate(run)
	assert.Contains(t, verdict.Majors, "budget:accessibility")
}

func TestGatesFailPrePromotionReadinessWithTooLittleEvidence(t *testing.T) {
	run := newRunWithEvidence(2)
	run.SetBuildReport(phase.BuildReport{
		TestFilesPresent: true, CoveragePercent: 90, TestRunOutput: []string{"tdd: green"},
		AccessibilityScore: 95, PerformanceScore: 90, SecurityScore: 95, PriorPhasesPassed: true,
	})
	verdict := phase.DefaultGates().Evaluate(run)
	assert.False(t, verdict.Passed)
	assert.Contains(t, verdict.Blockers, "pre_promotion_readiness")
}

func TestGatesPassWithAllThresholdsMet(t *testing.T) {
	run := newRunWithEvidence(5)
	run.SetBuildReport(phase.BuildReport{
		TestFilesPresent: true, CoveragePercent: 90, TestRunOutput: []string{"tdd: green"},
		AccessibilityScore: 95, PerformanceScore: 90, SecurityScore: 95, PriorPhasesPassed: true,
	})
	verdict := phase.DefaultGates().Evaluate(run)
	assert.True(t, verdict.Passed)
}

func TestCerebrumConfidenceDropsWithBlockersAndMajors(t *testing.T) {
	c := phase.DefaultCerebrum()
	clean := c.Decide(apitypes.Verdict{Passed: true})
	assert.Equal(t, "promote", clean.Outcome)
	assert.Equal(t, 1.0, clean.Confidence)

	dirty := c.Decide(apitypes.Verdict{Passed: false, Blockers: []string{"a"}, Majors: []string{"b", "c"}})
	assert.Equal(t, "recycle", dirty.Outcome)
	assert.InDelta(t, 0.75, dirty.Confidence, 0.001)
}
