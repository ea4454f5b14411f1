package planner

import (
	"math"

	"goa.design/agentkernel/apitypes"
)

const treeOfThoughtStepThreshold = 3

// providerWeighting holds known provider vendor-weighting tables. Weights
// are pre-normalized to sum to 1.0; buildReasoning re-normalizes anyway so
// any future entry need not hand-balance itself.
var providerWeighting = map[string]map[string]float64{
	"anthropic": {"claude-3-5-sonnet": 0.62, "claude-3-5-haiku": 0.38},
	"openai":    {"gpt-4o": 0.7, "gpt-4o-mini": 0.3},
}

// buildReasoning computes the reasoning trace for a plan: chain-of-thought
// for short linear plans, tree-of-thought once the strategy is requested
// explicitly or the plan grows past the threshold.
func buildReasoning(goal apitypes.Goal, steps []apitypes.StepRecord) apitypes.ReasoningTrace {
	useTree := goal.Strategy == apitypes.TreeOfThought || len(steps) > treeOfThoughtStepThreshold

	trace := apitypes.ReasoningTrace{}
	if useTree {
		trace.Strategy = apitypes.TreeOfThought
		trace.Thoughts = make([]string, len(steps))
		for i, step := range steps {
			trace.Thoughts[i] = "branch: " + step.Capability
		}
		trace.AlternativePaths = alternativePaths(steps)
	} else {
		trace.Strategy = apitypes.ChainOfThought
		trace.Thoughts = make([]string, len(steps))
		for i, step := range steps {
			trace.Thoughts[i] = "step: " + step.Capability
		}
	}

	if provider, ok := goal.Input["provider"].(string); ok {
		if weights, known := providerWeighting[provider]; known {
			trace.VendorWeighting = normalizeWeights(weights)
		}
	}

	return trace
}

// alternativePaths returns the primary (given) ordering and, when distinct,
// a reversed alternative.
func alternativePaths(steps []apitypes.StepRecord) []apitypes.ReasoningPath {
	primary := apitypes.ReasoningPath{Name: "primary", Order: capabilityOrder(steps), Score: 0.7}
	if len(steps) < 2 {
		return []apitypes.ReasoningPath{primary}
	}

	reversed := make([]string, len(primary.Order))
	for i, cap := range primary.Order {
		reversed[len(primary.Order)-1-i] = cap
	}
	if equalOrder(primary.Order, reversed) {
		return []apitypes.ReasoningPath{primary}
	}

	return []apitypes.ReasoningPath{
		primary,
		{Name: "reversed", Order: reversed, Score: 0.5},
	}
}

func capabilityOrder(steps []apitypes.StepRecord) []string {
	order := make([]string, len(steps))
	for i, step := range steps {
		order[i] = step.Capability
	}
	return order
}

func equalOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// normalizeWeights re-normalizes weights to sum to 1.0, rounded to 4
// decimal places.
func normalizeWeights(weights map[string]float64) map[string]float64 {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(weights))
	for name, w := range weights {
		out[name] = math.Round((w/total)*10000) / 10000
	}
	return out
}
