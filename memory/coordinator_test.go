package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/kernelerrors"
	"goa.design/agentkernel/memory"
	"goa.design/agentkernel/memory/inmem"
	"goa.design/agentkernel/telemetry"
)

type denyPolicy struct{ reason string }

func (d denyPolicy) Allow(context.Context, string, memory.WriteKind) (bool, string) {
	return false, d.reason
}

type allowPolicy struct{}

func (allowPolicy) Allow(context.Context, string, memory.WriteKind) (bool, string) {
	return true, ""
}

type failingRAG struct{}

func (failingRAG) Retrieve(context.Context, string, int) ([]apitypes.Document, error) {
	return nil, errors.New("rag unavailable")
}

type fixedRAG struct{ docs []apitypes.Document }

func (f fixedRAG) Retrieve(context.Context, string, int) ([]apitypes.Document, error) {
	return f.docs, nil
}

type warnCounter struct {
	telemetry.NoopLogger
	warns int
}

func (w *warnCounter) Warn(context.Context, string, ...any) { w.warns++ }

func TestLoadStateFreshSessionHasNoRAGWarningWithoutAdapter(t *testing.T) {
	store := inmem.New()
	logger := &warnCounter{}
	coord := memory.New(memory.Options{Store: store, Logger: logger})

	goal := apitypes.Goal{SessionID: "s1", Objective: "write docs", RequiredCapabilities: []string{"draft"}}
	state, docs, err := coord.LoadState(context.Background(), goal)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, state.Steps)
	assert.Zero(t, logger.warns)
}

func TestLoadStateRAGFailureDegradesToEmptyContext(t *testing.T) {
	store := inmem.New()
	coord := memory.New(memory.Options{Store: store, RAG: failingRAG{}})

	goal := apitypes.Goal{SessionID: "s1", Objective: "write docs", RequiredCapabilities: []string{"draft"}}
	_, docs, err := coord.LoadState(context.Background(), goal)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLoadStateReturnsRAGDocuments(t *testing.T) {
	store := inmem.New()
	want := []apitypes.Document{{ID: "d1", Content: "hello"}}
	coord := memory.New(memory.Options{Store: store, RAG: fixedRAG{docs: want}})

	goal := apitypes.Goal{SessionID: "s1", Objective: "write docs", RequiredCapabilities: []string{"draft"}}
	_, docs, err := coord.LoadState(context.Background(), goal)
	require.NoError(t, err)
	assert.Equal(t, want, docs)
}

func TestPersistPlanWritesStepsAndAppendsEvent(t *testing.T) {
	store := inmem.New()
	coord := memory.New(memory.Options{Store: store})

	goal := apitypes.Goal{SessionID: "s1", Objective: "write docs", RequiredCapabilities: []string{"draft", "review"}}
	plan := apitypes.Plan{
		Goal: goal,
		Steps: []apitypes.StepRecord{
			{Capability: "draft", WorkerName: "A", Status: apitypes.StepPending},
			{Capability: "review", WorkerName: "B", Status: apitypes.StepPending},
		},
		Reasoning: apitypes.ReasoningTrace{Strategy: apitypes.ChainOfThought},
	}
	require.NoError(t, coord.PersistPlan(context.Background(), plan))

	state, exists, err := store.LoadState(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, exists)
	require.Len(t, state.Steps, 2)
	require.NotNil(t, state.Reasoning)
	assert.Equal(t, apitypes.ChainOfThought, state.Reasoning.Strategy)

	events := store.Events("s1")
	require.Len(t, events, 1)
	assert.Equal(t, "plan-created", events[0].Type)
	assert.Equal(t, []string{"draft", "review"}, events[0].Payload["steps"])
}

func TestPersistStepUpsertsExistingRecord(t *testing.T) {
	store := inmem.New()
	coord := memory.New(memory.Options{Store: store})
	goal := apitypes.Goal{SessionID: "s1", RequiredCapabilities: []string{"draft"}}

	first := apitypes.StepRecord{Capability: "draft", WorkerName: "A", Status: apitypes.StepPending}
	require.NoError(t, coord.PersistStep(context.Background(), goal, first))

	second := apitypes.StepRecord{Capability: "draft", WorkerName: "A", Status: apitypes.StepCompleted, Output: "done"}
	require.NoError(t, coord.PersistStep(context.Background(), goal, second))

	state, _, err := store.LoadState(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, state.Steps, 1)
	assert.Equal(t, apitypes.StepCompleted, state.Steps[0].Status)
	assert.Equal(t, "done", state.Steps[0].Output)
	assert.NotNil(t, state.Steps[0].CompletedAt)

	events := store.Events("s1")
	require.Len(t, events, 2)
	assert.Equal(t, "step-completed", events[1].Type)
}

func TestPersistPlanDeniedByWritePolicy(t *testing.T) {
	store := inmem.New()
	coord := memory.New(memory.Options{Store: store, Policy: denyPolicy{reason: "session frozen"}})

	goal := apitypes.Goal{SessionID: "s1", RequiredCapabilities: []string{"draft"}}
	plan := apitypes.Plan{Goal: goal, Steps: []apitypes.StepRecord{{Capability: "draft"}}}

	err := coord.PersistPlan(context.Background(), plan)
	require.Error(t, err)
	var target *kernelerrors.Error
	require.ErrorAs(t, err, &target)
	assert.Equal(t, kernelerrors.KindPolicyDenied, target.Code())

	_, exists, err := store.LoadState(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPersistStepAllowedByWritePolicy(t *testing.T) {
	store := inmem.New()
	coord := memory.New(memory.Options{Store: store, Policy: allowPolicy{}})

	goal := apitypes.Goal{SessionID: "s1", RequiredCapabilities: []string{"draft"}}
	step := apitypes.StepRecord{Capability: "draft", WorkerName: "A", Status: apitypes.StepCompleted}

	require.NoError(t, coord.PersistStep(context.Background(), goal, step))

	state, exists, err := store.LoadState(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, exists)
	require.Len(t, state.Steps, 1)
}
