// Package engine abstracts the workflow/replay substrate the Phase Kernel
// runs on, so the same PRP state machine can execute against an in-memory
// backend for tests and local runs or a durable Temporal backend for
// long-running production workflows.
package engine

import (
	"context"
	"time"
)

// Clock is a replay-safe time source. Implementations must return
// deterministic results under replay: the in-memory deterministic clock
// derives timestamps from a monotonic counter; the Temporal adapter wraps
// workflow.Now, which Temporal itself guarantees is replay-stable.
type Clock interface {
	Now() time.Time
}

// WorkflowContext exposes the subset of engine operations the Phase Kernel
// needs: a replay-safe clock and cancellation-aware context, mirroring the
// teacher's engine.WorkflowContext without the activity-scheduling surface
// a chat-agent workflow needs but a phase state machine does not.
type WorkflowContext interface {
	Context() context.Context
	WorkflowID() string
	RunID() string
	Clock
}

// Engine registers and starts PRP workflow runs against a backend.
// Implementations translate WorkflowFunc into backend-specific primitives
// (a goroutine for engine/inmem, a Temporal workflow for engine/temporal).
type Engine interface {
	// RegisterWorkflow registers a workflow definition with the engine.
	RegisterWorkflow(ctx context.Context, def WorkflowDefinition) error
	// StartWorkflow starts a workflow run and returns a handle to it.
	StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error)
}

// WorkflowDefinition binds a workflow handler to a logical name.
type WorkflowDefinition struct {
	Name    string
	Handler WorkflowFunc
}

// WorkflowFunc is a workflow entry point. It must be deterministic: given
// the same input and the same sequence of WorkflowContext observations, it
// must produce the same result on replay.
type WorkflowFunc func(wfCtx WorkflowContext, input any) (any, error)

// WorkflowStartRequest describes how to launch a workflow run.
type WorkflowStartRequest struct {
	ID       string
	Workflow string
	Input    any
}

// WorkflowHandle lets a caller wait for a started workflow's result.
type WorkflowHandle interface {
	Wait(ctx context.Context, result any) error
}
