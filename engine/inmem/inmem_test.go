package inmem_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentkernel/engine"
	"goa.design/agentkernel/engine/inmem"
)

func TestEngineRunsRegisteredWorkflowAndReturnsResult(t *testing.T) {
	e := inmem.New()
	require.NoError(t, e.RegisterWorkflow(context.Background(), engine.WorkflowDefinition{
		Name: "echo",
		Handler: func(wfCtx engine.WorkflowContext, input any) (any, error) {
			return input, nil
		},
	}))

	h, err := e.StartWorkflow(context.Background(), engine.WorkflowStartRequest{
		ID:       "run-1",
		Workflow: "echo",
		Input:    "hello",
	})
	require.NoError(t, err)

	var out string
	require.NoError(t, h.Wait(context.Background(), &out))
	assert.Equal(t, "hello", out)
}

func TestEnginePropagatesHandlerError(t *testing.T) {
	e := inmem.New()
	boom := errors.New("boom")
	require.NoError(t, e.RegisterWorkflow(context.Background(), engine.WorkflowDefinition{
		Name:    "fail",
		Handler: func(engine.WorkflowContext, any) (any, error) { return nil, boom },
	}))

	h, err := e.StartWorkflow(context.Background(), engine.WorkflowStartRequest{ID: "run-1", Workflow: "fail"})
	require.NoError(t, err)
	err = h.Wait(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestEngineRejectsDuplicateWorkflowName(t *testing.T) {
	e := inmem.New()
	def := engine.WorkflowDefinition{Name: "dup", Handler: func(engine.WorkflowContext, any) (any, error) { return nil, nil }}
	require.NoError(t, e.RegisterWorkflow(context.Background(), def))
	assert.Error(t, e.RegisterWorkflow(context.Background(), def))
}

func TestEngineRejectsUnregisteredWorkflow(t *testing.T) {
	e := inmem.New()
	_, err := e.StartWorkflow(context.Background(), engine.WorkflowStartRequest{ID: "run-1", Workflow: "ghost"})
	assert.Error(t, err)
}

func TestDeterministicClockProducesStableSequence(t *testing.T) {
	seed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clockA := inmem.NewDeterministicClock(seed)
	clockB := inmem.NewDeterministicClock(seed)

	for i := 0; i < 5; i++ {
		assert.Equal(t, clockA.Now(), clockB.Now())
	}
}

func TestWorkflowContextExposesClockAndIdentity(t *testing.T) {
	clock := inmem.NewDeterministicClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	wfCtx := inmem.NewDeterministicContext(context.Background(), "run-1", clock)
	assert.Equal(t, "run-1", wfCtx.WorkflowID())
	assert.Equal(t, "run-1", wfCtx.RunID())
	first := wfCtx.Now()
	second := wfCtx.Now()
	assert.True(t, second.After(first))
}
