// Package phase implements the Phase Kernel: a PRP (strategy, build,
// evaluation) state machine that drives a review workflow on top of the
// engine abstraction, so the same transition logic can run in-memory for
// tests and local runs or on Temporal for durable production deployments.
package phase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/engine"
	"goa.design/agentkernel/kernelerrors"
	"goa.design/agentkernel/telemetry"
)

// State names a PRP phase. Transitions are strictly forward or terminal:
// strategy -> build|recycled, build -> evaluation|recycled,
// evaluation -> completed|recycled.
type State string

const (
	StateStrategy   State = "strategy"
	StateBuild      State = "build"
	StateEvaluation State = "evaluation"
	StateCompleted  State = "completed"
	StateRecycled   State = "recycled"
)

func (s State) terminal() bool {
	return s == StateCompleted || s == StateRecycled
}

// Blueprint is the immutable input to a phase run: the unit of work the
// PRP state machine reviews.
type Blueprint struct {
	ID          string
	Description string
	Metadata    map[string]any
}

// Snapshot is one append-only entry in a run's execution history, recorded
// on every transition.
type Snapshot struct {
	State     State
	Verdict   *apitypes.Verdict
	Timestamp time.Time
}

// Run tracks one phase run's mutable state: current PRP state and its
// append-only execution history.
type Run struct {
	ID        string
	Blueprint Blueprint

	mu          sync.Mutex
	state       State
	history     []Snapshot
	evidence    *EvidenceStore
	decision    *apitypes.Decision
	buildReport BuildReport
}

// SetBuildReport attaches the facts the evaluation phase's Gates check
// against. Callers populate this before the run transitions into
// StateEvaluation.
func (r *Run) SetBuildReport(report BuildReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buildReport = report
}

// BuildReport returns the run's attached evaluation-phase facts.
func (r *Run) BuildReport() BuildReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buildReport
}

// State returns the run's current PRP state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// History returns a copy of the run's execution history, oldest first.
func (r *Run) History() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, len(r.history))
	copy(out, r.history)
	return out
}

// Evidence returns the run's evidence store.
func (r *Run) Evidence() *EvidenceStore {
	return r.evidence
}

// Decision returns the run's Cerebrum decision, or nil if the run has not
// reached a terminal state.
func (r *Run) Decision() *apitypes.Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.decision == nil {
		return nil
	}
	d := *r.decision
	return &d
}

func (r *Run) append(state State, verdict *apitypes.Verdict, clock engine.Clock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.history = append(r.history, Snapshot{State: state, Verdict: verdict, Timestamp: clock.Now()})
}

func (r *Run) setDecision(d apitypes.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decision = &d
}

// Validators runs the checks gating a single PRP state's transition.
// Strategy and Build validators return a Verdict; Evaluation's validators
// are fixed (see Gates) and are not pluggable here.
type Validators interface {
	Validate(ctx context.Context, run *Run) (apitypes.Verdict, error)
}

// ValidatorFunc adapts a function to Validators.
type ValidatorFunc func(ctx context.Context, run *Run) (apitypes.Verdict, error)

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, run *Run) (apitypes.Verdict, error) {
	return f(ctx, run)
}

// Kernel drives the PRP state machine for one run at a time, transitioning
// strategy -> build -> evaluation -> completed|recycled per spec.
type Kernel struct {
	strategy Validators
	build    Validators
	gates    *Gates
	cerebrum *Cerebrum
	tracer   telemetry.Tracer
	metrics  telemetry.Metrics
}

// Options configures a Kernel. Strategy and Build are required; Gates and
// Cerebrum default to the standard evaluation-phase implementations when
// nil.
type Options struct {
	Strategy Validators
	Build    Validators
	Gates    *Gates
	Cerebrum *Cerebrum
}

// New constructs a Kernel.
func New(opts Options) (*Kernel, error) {
	if opts.Strategy == nil || opts.Build == nil {
		return nil, kernelerrors.ConfigInvalid("phase: strategy and build validators are required", nil)
	}
	gates := opts.Gates
	if gates == nil {
		gates = DefaultGates()
	}
	cerebrum := opts.Cerebrum
	if cerebrum == nil {
		cerebrum = DefaultCerebrum()
	}
	return &Kernel{
		strategy: opts.Strategy,
		build:    opts.Build,
		gates:    gates,
		cerebrum: cerebrum,
		tracer:   telemetry.NoopTracer{},
		metrics:  telemetry.NoopMetrics{},
	}, nil
}

// WithTelemetry attaches a Tracer and Metrics recorder, replacing the no-op
// defaults. It returns k for chaining at construction time.
func (k *Kernel) WithTelemetry(tracer telemetry.Tracer, metrics telemetry.Metrics) *Kernel {
	if tracer != nil {
		k.tracer = tracer
	}
	if metrics != nil {
		k.metrics = metrics
	}
	return k
}

// Start creates a fresh Run in StateStrategy for blueprint, with an empty
// execution history and evidence store.
func (k *Kernel) Start(id string, blueprint Blueprint) *Run {
	return &Run{
		ID:        id,
		Blueprint: blueprint,
		state:     StateStrategy,
		evidence:  newEvidenceStore(),
	}
}

// Transition drives run through exactly one state transition — running the
// current state's validators (or, from evaluation, the fixed Gates and
// Cerebrum) and appending the resulting snapshot to the run's history. It
// returns kernelerrors.ConfigInvalid if run is already terminal.
func (k *Kernel) Transition(wfCtx engine.WorkflowContext, run *Run) error {
	from := run.State()
	_, span := k.tracer.Start(wfCtx.Context(), "phase.Kernel.Transition")
	span.AddEvent("transition.start", "from", string(from), "runId", run.ID)
	defer span.End()

	err := k.transition(wfCtx, run, from)
	if err != nil {
		span.RecordError(err)
	}
	k.metrics.IncCounter("phase_transition_total", 1, "from="+string(from), "to="+string(run.State()))
	return err
}

func (k *Kernel) transition(wfCtx engine.WorkflowContext, run *Run, from State) error {
	switch from {
	case StateStrategy:
		verdict, err := k.strategy.Validate(wfCtx.Context(), run)
		if err != nil {
			verdict = recordValidatorFailure(run, from, err, wfCtx)
		}
		next := StateRecycled
		if verdict.Passed {
			next = StateBuild
		}
		run.append(next, &verdict, wfCtx)
		return nil

	case StateBuild:
		verdict, err := k.build.Validate(wfCtx.Context(), run)
		if err != nil {
			verdict = recordValidatorFailure(run, from, err, wfCtx)
		}
		next := StateRecycled
		if len(verdict.Blockers) == 0 && len(verdict.Majors) <= 3 {
			next = StateEvaluation
		}
		run.append(next, &verdict, wfCtx)
		return nil

	case StateEvaluation:
		verdict := k.gates.Evaluate(run)
		next := StateRecycled
		if verdict.Passed {
			next = StateCompleted
		}
		run.append(next, &verdict, wfCtx)
		run.setDecision(k.cerebrum.Decide(verdict))
		return nil

	default:
		return kernelerrors.ConfigInvalid("phase: run is already terminal", nil)
	}
}

// recordValidatorFailure appends a validator error to run's evidence and
// returns a failing verdict carrying it as a blocker, so the run recycles.
func recordValidatorFailure(run *Run, from State, err error, clock engine.Clock) apitypes.Verdict {
	failure := kernelerrors.ValidatorFailure(string(from)+" validation failed", err)
	content, _ := json.Marshal(map[string]string{"error": failure.Error()})
	id := fmt.Sprintf("%s-validator-failure-%d", from, run.Evidence().Len()+1)
	run.Evidence().Append(apitypes.Evidence{ID: id, Type: "validation", Source: string(from), Content: string(content), Timestamp: clock.Now(), Phase: string(from)})
	return apitypes.Verdict{Blockers: []string{failure.Error()}, Evidence: []string{id}}
}

// Run drives run to completion, calling Transition repeatedly until it
// reaches a terminal state.
func (k *Kernel) Run(wfCtx engine.WorkflowContext, run *Run) error {
	for !run.State().terminal() {
		if err := k.Transition(wfCtx, run); err != nil {
			return err
		}
	}
	return nil
}
