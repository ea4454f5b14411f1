// Package apitypes holds the data model shared across the kernel's
// components: Goal, Plan, StepRecord, tool invocation shapes, events, and
// phase-kernel evidence. Component packages (planner, worker, memory,
// tools, phase, stream) depend on apitypes rather than on each other for
// these shapes, keeping the dependency graph a tree instead of a cycle.
package apitypes

import "time"

// Strategy selects how the Planner builds its reasoning trace.
type Strategy string

const (
	// ChainOfThought produces one linear thought per step.
	ChainOfThought Strategy = "chain-of-thought"
	// TreeOfThought produces a branch per step plus alternative orderings.
	TreeOfThought Strategy = "tree-of-thought"
)

// StepStatus tracks a StepRecord's lifecycle. Transitions from Pending are
// monotonic: Pending -> Completed or Pending -> Failed, never reversed.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// ToolKind classifies a tool invocation for routing and policy decisions.
type ToolKind string

const (
	ToolSearch     ToolKind = "search"
	ToolCodemod    ToolKind = "codemod"
	ToolValidation ToolKind = "validation"
	ToolAnalysis   ToolKind = "analysis"
)

type (
	// Goal is the immutable input to a planning run.
	Goal struct {
		SessionID string
		Objective string
		// RequiredCapabilities is ordered; the order is the canonical
		// execution order for the resulting plan's steps.
		RequiredCapabilities []string
		Input                map[string]any
		Strategy              Strategy
	}

	// StepRecord is the per-capability unit of a Plan. The Planner sets ID to
	// the step's capability when it builds the plan, so it is stable across
	// subsequent upserts of the same capability within a session.
	StepRecord struct {
		ID          string
		Capability  string
		WorkerName  string
		Status      StepStatus
		Input       map[string]any
		Output      any
		Error       string
		CompletedAt *time.Time
	}

	// ReasoningTrace records how the Planner arrived at a step ordering.
	ReasoningTrace struct {
		Strategy Strategy
		// Thoughts holds one entry per step for chain-of-thought, or one
		// entry per branch for tree-of-thought.
		Thoughts []string
		// AlternativePaths holds additional orderings considered under
		// tree-of-thought, each with a relative score. Empty under
		// chain-of-thought.
		AlternativePaths []ReasoningPath
		// VendorWeighting normalises model-vendor weights to sum 1.0,
		// rounded to 4 decimal places. Nil when goal.Input has no known
		// provider.
		VendorWeighting map[string]float64
	}

	// ReasoningPath is one candidate step ordering with a relative score.
	ReasoningPath struct {
		Name       string
		Order      []string
		Score      float64
	}

	// Plan is produced once per prepare(goal) call. Its Steps slice always
	// has the same length as Goal.RequiredCapabilities.
	Plan struct {
		Goal             Goal
		Steps            []StepRecord
		RetrievedContext []Document
		Reasoning        ReasoningTrace
	}

	// Document is a single piece of retrieved RAG context.
	Document struct {
		ID      string
		Content string
		Score   float64
		Source  string
	}

	// SessionState is the durable record the Memory Coordinator owns,
	// keyed by Goal.SessionID.
	SessionState struct {
		Steps       []StepRecord
		Facts       []string
		LastUpdated time.Time
		Reasoning   *ReasoningTrace
	}

	// ToolInvocationRequest is the input accepted by the Tool Router.
	ToolInvocationRequest struct {
		Tool    string
		Input   any
		Kind    ToolKind
		Context map[string]any
		// Budget overrides the Router's default token budget for this
		// invocation when non-zero.
		Budget int
	}

	// ToolInvocationResult is the output of a resolved tool invocation.
	// TokensUsed is always >= 1: either reported by the transport or
	// estimated by EstimateTokens.
	ToolInvocationResult struct {
		Tool       string
		Result     any
		TokensUsed int
		Metadata   map[string]string
	}

	// Event is the wire shape emitted on the Streaming Manager's bus.
	// Timestamp is set by the emitting component, never the subscriber.
	Event struct {
		Type      string
		Timestamp time.Time
		ThreadID  string
		Data      map[string]any
	}

	// Verdict is the outcome of a phase's validators.
	Verdict struct {
		Passed    bool
		Blockers  []string
		Majors    []string
		Evidence  []string
		Timestamp time.Time
	}

	// Evidence is an immutable record appended by Phase Kernel validators.
	Evidence struct {
		ID        string
		Type      string
		Source    string
		Content   string
		Timestamp time.Time
		Phase     string
	}

	// Decision is the Cerebrum's final promote/recycle call.
	Decision struct {
		Outcome    string
		Reasoning  string
		Confidence float64
	}
)

// EventType recognised on the bus per the external event schema. Producers
// are not limited to this set, but these are the names consumers key off.
const (
	EventStart      = "start"
	EventNodeStart  = "node_start"
	EventNodeFinish = "node_finish"
	EventToken      = "token"
	EventError      = "error"
	EventFinish     = "finish"
)

// EstimateTokens approximates a JSON payload's token count when a transport
// does not report one, per the heuristic ceil(len(json)/4) clamped to >= 1.
func EstimateTokens(jsonLen int) int {
	if jsonLen <= 0 {
		return 1
	}
	n := (jsonLen + 3) / 4
	if n < 1 {
		return 1
	}
	return n
}
