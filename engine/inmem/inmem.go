// Package inmem provides an in-memory implementation of the workflow
// engine for local runs and tests. It is not replay-safe: timestamps come
// from the wall clock unless the caller starts a workflow with a
// deterministic context via NewDeterministicContext.
package inmem

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"goa.design/agentkernel/engine"
)

type eng struct {
	mu        sync.RWMutex
	workflows map[string]engine.WorkflowDefinition
}

// New returns an in-memory Engine suitable for local development and
// tests: StartWorkflow runs each handler on its own goroutine, and the
// returned handle's Wait blocks until it finishes.
func New() engine.Engine {
	return &eng{workflows: make(map[string]engine.WorkflowDefinition)}
}

func (e *eng) RegisterWorkflow(_ context.Context, def engine.WorkflowDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("inmem: invalid workflow definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.workflows[def.Name]; dup {
		return fmt.Errorf("inmem: workflow %q already registered", def.Name)
	}
	e.workflows[def.Name] = def
	return nil
}

func (e *eng) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	e.mu.RLock()
	def, ok := e.workflows[req.Workflow]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("inmem: workflow %q not registered", req.Workflow)
	}
	if req.ID == "" {
		return nil, errors.New("inmem: workflow id is required")
	}

	wfCtx := &runContext{ctx: ctx, id: req.ID, runID: req.ID, clock: WallClock{}}
	h := &handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		result, err := def.Handler(wfCtx, req.Input)
		h.mu.Lock()
		h.result, h.err = result, err
		h.mu.Unlock()
	}()
	return h, nil
}

// WallClock returns real wall-clock time. Used by the in-memory engine
// outside of deterministic runs.
type WallClock struct{}

// Now returns time.Now().UTC().
func (WallClock) Now() time.Time { return time.Now().UTC() }

// DeterministicClock derives timestamps from a monotonic counter seeded at
// construction, guaranteeing that two runs over the same sequence of Now()
// calls produce byte-identical timestamps.
type DeterministicClock struct {
	mu      sync.Mutex
	seed    time.Time
	counter int
}

// NewDeterministicClock seeds a clock at a fixed instant.
func NewDeterministicClock(seed time.Time) *DeterministicClock {
	return &DeterministicClock{seed: seed.UTC()}
}

// Now returns seed + counter seconds, incrementing the counter on every
// call, so repeated calls in the same sequence always yield the same
// series of timestamps.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.seed.Add(time.Duration(c.counter) * time.Second)
	c.counter++
	return t
}

type runContext struct {
	ctx   context.Context
	id    string
	runID string
	clock engine.Clock
}

func (r *runContext) Context() context.Context { return r.ctx }
func (r *runContext) WorkflowID() string       { return r.id }
func (r *runContext) RunID() string            { return r.runID }
func (r *runContext) Now() time.Time           { return r.clock.Now() }

// NewDeterministicContext builds a WorkflowContext backed by a
// DeterministicClock, for callers that want to drive the Phase Kernel in
// deterministic mode without going through Engine.StartWorkflow.
func NewDeterministicContext(ctx context.Context, id string, clock *DeterministicClock) engine.WorkflowContext {
	return &runContext{ctx: ctx, id: id, runID: id, clock: clock}
}

type handle struct {
	mu     sync.Mutex
	done   chan struct{}
	result any
	err    error
}

func (h *handle) Wait(ctx context.Context, result any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	if result == nil || h.result == nil {
		return nil
	}
	out := reflect.ValueOf(result)
	if out.Kind() != reflect.Ptr || out.IsNil() {
		return fmt.Errorf("inmem: Wait result must be a non-nil pointer")
	}
	val := reflect.ValueOf(h.result)
	if !val.Type().AssignableTo(out.Elem().Type()) {
		return fmt.Errorf("inmem: cannot assign %s into %s", val.Type(), out.Elem().Type())
	}
	out.Elem().Set(val)
	return nil
}
