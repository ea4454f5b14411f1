// Package temporal adapts Temporal to the engine.Engine surface, so the
// Phase Kernel can run as a durable, replay-safe workflow in production
// instead of the in-memory backend used for local runs and tests.
package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"goa.design/agentkernel/engine"
)

// Options configures the Temporal engine adapter.
type Options struct {
	// Client is a pre-configured Temporal client. Required.
	Client client.Client
	// TaskQueue is the queue workflows are registered and started on.
	TaskQueue string
}

// Engine implements engine.Engine on top of a Temporal client and a single
// worker for Options.TaskQueue. It registers one Temporal workflow per
// engine.WorkflowDefinition, wrapping def.Handler so it observes the
// engine.WorkflowContext abstraction instead of a raw workflow.Context.
type Engine struct {
	client client.Client
	queue  string

	mu        sync.Mutex
	worker    worker.Worker
	workflows map[string]engine.WorkflowDefinition
}

// New constructs a Temporal-backed Engine. The returned worker is not
// started; call Start once all workflows are registered.
func New(opts Options) (*Engine, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("temporal: client is required")
	}
	if opts.TaskQueue == "" {
		return nil, fmt.Errorf("temporal: task queue is required")
	}
	return &Engine{
		client:    opts.Client,
		queue:     opts.TaskQueue,
		worker:    worker.New(opts.Client, opts.TaskQueue, worker.Options{}),
		workflows: make(map[string]engine.WorkflowDefinition),
	}, nil
}

// Start starts the underlying Temporal worker. Call after all workflows
// have been registered.
func (e *Engine) Start() error {
	return e.worker.Start()
}

// Stop stops the underlying Temporal worker.
func (e *Engine) Stop() {
	e.worker.Stop()
}

// RegisterWorkflow registers def with the Temporal worker, wrapping its
// handler so it runs against a temporalWorkflowContext.
func (e *Engine) RegisterWorkflow(_ context.Context, def engine.WorkflowDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return fmt.Errorf("temporal: invalid workflow definition")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.workflows[def.Name]; dup {
		return fmt.Errorf("temporal: workflow %q already registered", def.Name)
	}
	e.workflows[def.Name] = def

	e.worker.RegisterWorkflowWithOptions(func(tctx workflow.Context, input any) (any, error) {
		return def.Handler(newWorkflowContext(tctx), input)
	}, workflow.RegisterOptions{Name: def.Name})

	return nil
}

// StartWorkflow starts a registered workflow on Temporal and returns a
// handle for waiting on its result.
func (e *Engine) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	e.mu.Lock()
	_, ok := e.workflows[req.Workflow]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("temporal: workflow %q not registered", req.Workflow)
	}

	run, err := e.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        req.ID,
		TaskQueue: e.queue,
	}, req.Workflow, req.Input)
	if err != nil {
		return nil, err
	}
	return &workflowHandle{client: e.client, run: run}, nil
}

type workflowHandle struct {
	client client.Client
	run    client.WorkflowRun
}

func (h *workflowHandle) Wait(ctx context.Context, result any) error {
	return h.run.Get(ctx, result)
}

type workflowContext struct {
	ctx workflow.Context
}

func newWorkflowContext(ctx workflow.Context) engine.WorkflowContext {
	return &workflowContext{ctx: ctx}
}

func (w *workflowContext) Context() context.Context {
	return context.Background()
}

func (w *workflowContext) WorkflowID() string {
	return workflow.GetInfo(w.ctx).WorkflowExecution.ID
}

func (w *workflowContext) RunID() string {
	return workflow.GetInfo(w.ctx).WorkflowExecution.RunID
}

func (w *workflowContext) Now() time.Time {
	return workflow.Now(w.ctx)
}
