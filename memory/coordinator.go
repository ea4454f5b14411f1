package memory

import (
	"context"
	"strings"
	"time"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/kernelerrors"
	"goa.design/agentkernel/telemetry"
)

// Coordinator implements the Memory Coordinator's three operations on top
// of a Store and an optional RAGAdapter.
type Coordinator struct {
	store  Store
	rag    RAGAdapter
	policy WritePolicy
	logger telemetry.Logger
}

// Options configures a Coordinator. Store is required; RAG, Policy, and
// Logger are optional and default to nil / allow-all / telemetry.NoopLogger{}.
type Options struct {
	Store  Store
	RAG    RAGAdapter
	Policy WritePolicy
	Logger telemetry.Logger
}

// New constructs a Coordinator. Panics if opts.Store is nil: the Memory
// Coordinator cannot exist without somewhere to persist to.
func New(opts Options) *Coordinator {
	if opts.Store == nil {
		panic("memory: Options.Store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Coordinator{store: opts.Store, rag: opts.RAG, policy: opts.Policy, logger: logger}
}

// checkWrite consults the configured WritePolicy, if any, returning
// kernelerrors.PolicyDenied when the policy rejects the write.
func (c *Coordinator) checkWrite(ctx context.Context, sessionID string, kind WriteKind) error {
	if c.policy == nil {
		return nil
	}
	if allowed, reason := c.policy.Allow(ctx, sessionID, kind); !allowed {
		return kernelerrors.PolicyDenied(reason)
	}
	return nil
}

// LoadState returns the persisted SessionState for goal.SessionID (or a
// fresh one) together with up to 5 RAG documents retrieved for the query
// "{objective} {capabilities joined by space}". RAG failures are logged
// and degrade to an empty context; a nil RAGAdapter yields an empty
// context silently.
func (c *Coordinator) LoadState(ctx context.Context, goal apitypes.Goal) (apitypes.SessionState, []apitypes.Document, error) {
	state, exists, err := c.store.LoadState(ctx, goal.SessionID)
	if err != nil {
		return apitypes.SessionState{}, nil, err
	}
	if !exists {
		state = apitypes.SessionState{LastUpdated: time.Now()}
	}

	if c.rag == nil {
		return state, nil, nil
	}

	query := strings.TrimSpace(goal.Objective + " " + strings.Join(goal.RequiredCapabilities, " "))
	docs, err := c.rag.Retrieve(ctx, query, ragRetrieveLimit)
	if err != nil {
		c.logger.Warn(ctx, "rag retrieval failed", "sessionId", goal.SessionID, "error", err)
		return state, nil, nil
	}
	return state, docs, nil
}

// PersistPlan writes plan.Steps and plan.Reasoning into Session State,
// bumps LastUpdated, and appends a plan-created event carrying the ordered
// capability list.
func (c *Coordinator) PersistPlan(ctx context.Context, plan apitypes.Plan) error {
	sessionID := plan.Goal.SessionID
	if err := c.checkWrite(ctx, sessionID, WritePlan); err != nil {
		return err
	}
	state, _, err := c.store.LoadState(ctx, sessionID)
	if err != nil {
		return err
	}
	state.Steps = plan.Steps
	reasoning := plan.Reasoning
	state.Reasoning = &reasoning
	state.LastUpdated = time.Now()

	if err := c.store.SaveState(ctx, sessionID, state); err != nil {
		return err
	}

	caps := make([]string, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		caps = append(caps, s.Capability)
	}
	return c.store.AppendSessionEvent(ctx, sessionID, SessionEvent{
		Type:      "plan-created",
		Payload:   map[string]any{"steps": caps},
		Timestamp: time.Now(),
	})
}

// PersistStep upserts the step record for stepResult.Capability: first
// persist appends the record, subsequent persists overwrite Status,
// WorkerName, Output, and CompletedAt. Appends a step-completed event.
func (c *Coordinator) PersistStep(ctx context.Context, goal apitypes.Goal, stepResult apitypes.StepRecord) error {
	sessionID := goal.SessionID
	if err := c.checkWrite(ctx, sessionID, WriteStep); err != nil {
		return err
	}
	state, _, err := c.store.LoadState(ctx, sessionID)
	if err != nil {
		return err
	}

	completedAt := time.Now()
	stepResult.CompletedAt = &completedAt

	found := false
	for i := range state.Steps {
		if state.Steps[i].Capability == stepResult.Capability {
			state.Steps[i].Status = stepResult.Status
			state.Steps[i].WorkerName = stepResult.WorkerName
			state.Steps[i].Output = stepResult.Output
			state.Steps[i].Error = stepResult.Error
			state.Steps[i].CompletedAt = stepResult.CompletedAt
			found = true
			break
		}
	}
	if !found {
		state.Steps = append(state.Steps, stepResult)
	}
	state.LastUpdated = completedAt

	if err := c.store.SaveState(ctx, sessionID, state); err != nil {
		return err
	}

	return c.store.AppendSessionEvent(ctx, sessionID, SessionEvent{
		Type: "step-completed",
		Payload: map[string]any{
			"capability": stepResult.Capability,
			"workerName": stepResult.WorkerName,
			"status":     stepResult.Status,
		},
		Timestamp: completedAt,
	})
}
