// Package worker implements the Worker Runner: sequential execution of a
// Plan's steps, each gated by approval, resolved through the Worker
// Registry, and persisted after completion.
package worker

import (
	"context"
	"time"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/kernelerrors"
	"goa.design/agentkernel/policy"
	"goa.design/agentkernel/registry"
	"goa.design/agentkernel/telemetry"
)

// Handler executes one step. It receives the step's capability and input,
// plus runtime context: the tool router, the originating goal, the current
// session state, and any retrieved documents.
type Handler func(ctx context.Context, input StepInput, rt Runtime) (any, error)

// StepInput carries the capability and input for a single step invocation.
type StepInput struct {
	Capability string
	Input      map[string]any
}

// Runtime is passed to every Handler invocation.
type Runtime struct {
	Tools            ToolRouter
	Goal             apitypes.Goal
	Memory           apitypes.SessionState
	ContextDocuments []apitypes.Document
}

// ToolRouter is the subset of tools.Router a Handler may use.
type ToolRouter interface {
	Invoke(ctx context.Context, req apitypes.ToolInvocationRequest) (apitypes.ToolInvocationResult, error)
}

// RegistryLookup is the subset of registry.Registry the Runner depends on.
type RegistryLookup interface {
	GetWorker(name string) (registry.Worker, bool)
}

// ApprovalGate is the subset of policy.Gate the Runner depends on.
type ApprovalGate interface {
	Check(ctx context.Context, req policy.Request) error
}

// MemoryCoordinator is the subset of memory.Coordinator the Runner depends
// on: loading current session state before a step and persisting the
// step's result after it completes.
type MemoryCoordinator interface {
	LoadState(ctx context.Context, goal apitypes.Goal) (apitypes.SessionState, []apitypes.Document, error)
	PersistStep(ctx context.Context, goal apitypes.Goal, step apitypes.StepRecord) error
}

// Runner executes a Plan's steps strictly sequentially.
type Runner struct {
	registry RegistryLookup
	gate     ApprovalGate
	memory   MemoryCoordinator
	tools    ToolRouter
	tracer   telemetry.Tracer
	metrics  telemetry.Metrics
}

// New constructs a Runner. gate may be nil, in which case every step is
// approved without a check.
func New(registry RegistryLookup, gate ApprovalGate, memory MemoryCoordinator, tools ToolRouter) *Runner {
	return &Runner{
		registry: registry,
		gate:     gate,
		memory:   memory,
		tools:    tools,
		tracer:   telemetry.NoopTracer{},
		metrics:  telemetry.NoopMetrics{},
	}
}

// WithTelemetry attaches a Tracer and Metrics recorder, replacing the no-op
// defaults. It returns r for chaining at construction time.
func (r *Runner) WithTelemetry(tracer telemetry.Tracer, metrics telemetry.Metrics) *Runner {
	if tracer != nil {
		r.tracer = tracer
	}
	if metrics != nil {
		r.metrics = metrics
	}
	return r
}

// Run executes plan.Steps in order. A step failure — approval denial,
// missing worker, or handler error — aborts the run; no subsequent step
// runs, and the partially-completed steps are returned alongside the error.
func (r *Runner) Run(ctx context.Context, plan apitypes.Plan, contextDocuments []apitypes.Document) ([]apitypes.StepRecord, error) {
	ctx, span := r.tracer.Start(ctx, "worker.Runner.Run")
	defer span.End()

	results := make([]apitypes.StepRecord, 0, len(plan.Steps))

	for _, step := range plan.Steps {
		stepCtx, stepSpan := r.tracer.Start(ctx, "worker.step")
		stepSpan.AddEvent("step.start", "capability", step.Capability, "worker", step.WorkerName)
		stepStart := time.Now()

		result, err := r.runStep(stepCtx, plan, step, contextDocuments)
		r.metrics.RecordTimer("worker_step_duration", time.Since(stepStart), "capability="+step.Capability)
		if err != nil {
			stepSpan.RecordError(err)
			stepSpan.End()
			r.metrics.IncCounter("worker_step_total", 1, "capability="+step.Capability, "outcome=error")
			if result.Capability != "" {
				return append(results, result), err
			}
			return results, err
		}
		stepSpan.End()
		r.metrics.IncCounter("worker_step_total", 1, "capability="+step.Capability, "outcome=ok")
		results = append(results, result)
	}

	return results, nil
}

// runStep executes a single step: approval check, registry resolution,
// handler invocation, and persistence. The returned StepRecord reflects the
// step's outcome even on error, so the caller can append it to the partial
// results before propagating the failure. An empty-Capability zero value
// signals that the step never reached persistence (approval denial or an
// unresolvable worker) and should not be appended.
func (r *Runner) runStep(ctx context.Context, plan apitypes.Plan, step apitypes.StepRecord, contextDocuments []apitypes.Document) (apitypes.StepRecord, error) {
	if r.gate != nil {
		if err := r.gate.Check(ctx, policy.Request{
			SessionID:  plan.Goal.SessionID,
			Capability: step.Capability,
			Goal:       plan.Goal.Objective,
			Input:      step.Input,
		}); err != nil {
			return apitypes.StepRecord{}, err
		}
	}

	registered, ok := r.registry.GetWorker(step.WorkerName)
	if !ok {
		return apitypes.StepRecord{}, kernelerrors.NoWorkerForCapability(step.Capability)
	}
	handler, ok := registered.Handler.(Handler)
	if !ok {
		return apitypes.StepRecord{}, kernelerrors.ConfigInvalid("worker \""+registered.Name+"\" handler has the wrong type", nil)
	}

	state, _, err := r.memory.LoadState(ctx, plan.Goal)
	if err != nil {
		return apitypes.StepRecord{}, err
	}

	output, err := handler(ctx, StepInput{Capability: step.Capability, Input: step.Input}, Runtime{
		Tools:            r.tools,
		Goal:             plan.Goal,
		Memory:           state,
		ContextDocuments: contextDocuments,
	})

	result := step
	if err != nil {
		result.Status = apitypes.StepFailed
		result.Error = err.Error()
		if persistErr := r.memory.PersistStep(ctx, plan.Goal, result); persistErr != nil {
			return result, persistErr
		}
		return result, err
	}

	result.Status = apitypes.StepCompleted
	result.Output = output
	if err := r.memory.PersistStep(ctx, plan.Goal, result); err != nil {
		return result, err
	}

	return result, nil
}
