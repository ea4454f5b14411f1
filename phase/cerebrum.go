package phase

import "goa.design/agentkernel/apitypes"

// Cerebrum computes the final promote/recycle Decision from an evaluation
// Verdict. It is a deterministic scoring function, not a model invocation:
// confidence is derived purely from the verdict's blocker/major counts, so
// the same verdict always yields the same decision.
type Cerebrum struct{}

// DefaultCerebrum returns the standard Cerebrum.
func DefaultCerebrum() *Cerebrum {
	return &Cerebrum{}
}

// Decide returns a Decision for verdict: "promote" when the verdict
// passed, "recycle" otherwise. Confidence starts at 1.0 and loses 0.15 per
// blocker and 0.05 per major, floored at 0.0.
func (c *Cerebrum) Decide(verdict apitypes.Verdict) apitypes.Decision {
	outcome := "recycle"
	if verdict.Passed {
		outcome = "promote"
	}

	confidence := 1.0 - 0.15*float64(len(verdict.Blockers)) - 0.05*float64(len(verdict.Majors))
	if confidence < 0 {
		confidence = 0
	}

	reasoning := "evaluation passed with no blockers"
	if !verdict.Passed {
		reasoning = "evaluation failed"
		if len(verdict.Blockers) > 0 {
			reasoning = "evaluation failed: blockers present"
		} else {
			reasoning = "evaluation failed: too many majors"
		}
	}

	return apitypes.Decision{
		Outcome:    outcome,
		Reasoning:  reasoning,
		Confidence: confidence,
	}
}
