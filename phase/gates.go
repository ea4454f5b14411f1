package phase

import (
	"regexp"

	"goa.design/agentkernel/apitypes"
)

// BuildReport is the evaluation phase's input: the facts the fixed gates
// check, gathered by whatever validator produced the build's output. It is
// a data record, not a live test runner — the Phase Kernel consumes
// whatever a caller attaches to the run before transitioning into
// evaluation.
type BuildReport struct {
	TestFilesPresent bool
	TestsFailing     int
	CoveragePercent  float64
	TestRunOutput    []string
	CommitMessages   []string

	ReviewBlockers int
	ReviewMajors   int

	AccessibilityScore float64
	PerformanceScore   float64
	SecurityScore      float64

	PriorPhasesPassed bool
}

// Gates implements the evaluation phase's fixed checks: TDD, Review,
// Budget (accessibility/performance/security), and pre-promotion
// readiness. Evaluate reads the report attached to the run (via
// Run.SetBuildReport) and classifies every shortfall as a blocker or
// major, per spec.
type Gates struct{}

// DefaultGates returns the standard evaluation-phase Gates.
func DefaultGates() *Gates {
	return &Gates{}
}

var tddEvidencePattern = regexp.MustCompile(`(?i)test|tdd|red|green|refactor`)

// Evaluate runs every gate against run's attached BuildReport and returns
// the aggregate Verdict. With no attached report, the TDD and security gates
// add blockers and the accessibility and performance gates add majors; the
// review gate passes.
func (g *Gates) Evaluate(run *Run) apitypes.Verdict {
	report := run.BuildReport()

	var blockers, majors, evidence []string

	// TDD gate.
	tddEvidenceObserved := hasTDDEvidence(report.TestRunOutput) || hasTDDEvidence(report.CommitMessages)
	if !report.TestFilesPresent || report.TestsFailing > 0 || report.CoveragePercent < 80 || !tddEvidenceObserved {
		blockers = append(blockers, "tdd")
	} else {
		evidence = append(evidence, "tdd")
	}

	// Review gate.
	if report.ReviewBlockers > 0 {
		blockers = append(blockers, "review")
	} else if report.ReviewMajors > 3 {
		majors = append(majors, "review")
	} else {
		evidence = append(evidence, "review")
	}

	// Budget gates.
	if report.AccessibilityScore < 90 {
		majors = append(majors, "budget:accessibility")
	}
	if report.PerformanceScore < 85 {
		majors = append(majors, "budget:performance")
	}
	if report.SecurityScore < 80 {
		blockers = append(blockers, "budget:security")
	}

	// Pre-promotion readiness.
	if !report.PriorPhasesPassed || run.Evidence().Len() < 5 {
		blockers = append(blockers, "pre_promotion_readiness")
	} else {
		evidence = append(evidence, "pre_promotion_readiness")
	}

	return apitypes.Verdict{
		Passed:   len(blockers) == 0 && len(majors) <= 3,
		Blockers: blockers,
		Majors:   majors,
		Evidence: evidence,
	}
}

func hasTDDEvidence(lines []string) bool {
	for _, l := range lines {
		if tddEvidencePattern.MatchString(l) {
			return true
		}
	}
	return false
}
