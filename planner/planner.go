// Package planner implements goal normalization, plan construction, and
// reasoning-trace computation ahead of Worker Runner dispatch.
package planner

import (
	"context"
	"time"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/kernelerrors"
	"goa.design/agentkernel/registry"
	"goa.design/agentkernel/telemetry"
)

// RegistryLookup is the subset of registry.Registry the Planner depends on.
type RegistryLookup interface {
	FindByCapability(capability string) (registry.Worker, bool)
}

// MemoryCoordinator is the subset of memory.Coordinator the Planner depends
// on: loading prior session context and persisting the computed plan.
type MemoryCoordinator interface {
	LoadState(ctx context.Context, goal apitypes.Goal) (apitypes.SessionState, []apitypes.Document, error)
	PersistPlan(ctx context.Context, plan apitypes.Plan) error
}

// Runner executes a prepared plan. worker.Runner implements this.
type Runner interface {
	Run(ctx context.Context, plan apitypes.Plan, contextDocuments []apitypes.Document) ([]apitypes.StepRecord, error)
}

// ExecutionResult is returned by Run: the goal, the executed steps, the
// retrieved context, and the reasoning trace behind the plan.
type ExecutionResult struct {
	Goal      apitypes.Goal
	Steps     []apitypes.StepRecord
	Context   []apitypes.Document
	Reasoning apitypes.ReasoningTrace
}

// Planner turns a Goal into a Plan (Prepare) and, optionally, executes it
// end to end via a Worker Runner (Run).
type Planner struct {
	registry RegistryLookup
	memory   MemoryCoordinator
	runner   Runner
	tracer   telemetry.Tracer
	metrics  telemetry.Metrics
}

// New constructs a Planner. runner may be nil if the caller only intends to
// call Prepare.
func New(registry RegistryLookup, memory MemoryCoordinator, runner Runner) *Planner {
	return &Planner{
		registry: registry,
		memory:   memory,
		runner:   runner,
		tracer:   telemetry.NoopTracer{},
		metrics:  telemetry.NoopMetrics{},
	}
}

// WithTelemetry attaches a Tracer and Metrics recorder, replacing the no-op
// defaults. It returns p for chaining at construction time.
func (p *Planner) WithTelemetry(tracer telemetry.Tracer, metrics telemetry.Metrics) *Planner {
	if tracer != nil {
		p.tracer = tracer
	}
	if metrics != nil {
		p.metrics = metrics
	}
	return p
}

// Prepare normalizes goal, builds one step per required capability bound to
// a registered worker, computes the reasoning trace, loads session context,
// and persists the resulting plan.
func (p *Planner) Prepare(ctx context.Context, goal apitypes.Goal) (apitypes.Plan, []apitypes.Document, error) {
	steps := make([]apitypes.StepRecord, len(goal.RequiredCapabilities))
	for i, capability := range goal.RequiredCapabilities {
		worker, ok := p.registry.FindByCapability(capability)
		if !ok {
			return apitypes.Plan{}, nil, kernelerrors.CapabilityUnassigned(capability)
		}
		steps[i] = apitypes.StepRecord{
			ID:         capability,
			Capability: capability,
			WorkerName: worker.Name,
			Status:     apitypes.StepPending,
		}
	}

	_, contextDocuments, err := p.memory.LoadState(ctx, goal)
	if err != nil {
		return apitypes.Plan{}, nil, err
	}

	reasoning := buildReasoning(goal, steps)

	plan := apitypes.Plan{
		Goal:             goal,
		Steps:            steps,
		RetrievedContext: contextDocuments,
		Reasoning:        reasoning,
	}

	if err := p.memory.PersistPlan(ctx, plan); err != nil {
		return apitypes.Plan{}, nil, err
	}

	return plan, contextDocuments, nil
}

// Run prepares goal and dispatches the resulting plan to the Worker Runner.
func (p *Planner) Run(ctx context.Context, goal apitypes.Goal) (ExecutionResult, error) {
	ctx, span := p.tracer.Start(ctx, "planner.Run")
	defer span.End()
	start := time.Now()

	plan, contextDocuments, err := p.Prepare(ctx, goal)
	if err != nil {
		span.RecordError(err)
		p.metrics.IncCounter("planner_run_total", 1, "outcome=prepare_error")
		return ExecutionResult{}, err
	}

	steps, err := p.runner.Run(ctx, plan, contextDocuments)
	p.metrics.RecordTimer("planner_run_duration", time.Since(start), "strategy="+string(plan.Reasoning.Strategy))
	if err != nil {
		span.RecordError(err)
		p.metrics.IncCounter("planner_run_total", 1, "outcome=error")
		return ExecutionResult{Goal: goal, Steps: steps, Context: contextDocuments, Reasoning: plan.Reasoning}, err
	}

	p.metrics.IncCounter("planner_run_total", 1, "outcome=ok")
	return ExecutionResult{
		Goal:      goal,
		Steps:     steps,
		Context:   contextDocuments,
		Reasoning: plan.Reasoning,
	}, nil
}
