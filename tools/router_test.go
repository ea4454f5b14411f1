package tools_test

import (
	"context"
	"errors"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/kernelerrors"
	"goa.design/agentkernel/tools"
)

type fakeHub struct {
	result apitypes.ToolInvocationResult
	err    error
	called bool
}

func (h *fakeHub) Invoke(_ context.Context, req apitypes.ToolInvocationRequest) (apitypes.ToolInvocationResult, error) {
	h.called = true
	return h.result, h.err
}

func TestRouterPrefersLocalHandlerOverHub(t *testing.T) {
	hub := &fakeHub{}
	router := tools.NewRouter(hub)
	require.NoError(t, router.Register(tools.ToolSpec{
		Name: "draft",
		Handler: func(_ context.Context, req apitypes.ToolInvocationRequest) (apitypes.ToolInvocationResult, error) {
			return apitypes.ToolInvocationResult{Tool: req.Tool, Result: "local"}, nil
		},
	}))

	result, err := router.Invoke(context.Background(), apitypes.ToolInvocationRequest{Tool: "draft"})
	require.NoError(t, err)
	assert.Equal(t, "local", result.Result)
	assert.False(t, hub.called)
}

func TestRouterFallsBackToHub(t *testing.T) {
	hub := &fakeHub{result: apitypes.ToolInvocationResult{Tool: "search", Result: "remote"}}
	router := tools.NewRouter(hub)

	result, err := router.Invoke(context.Background(), apitypes.ToolInvocationRequest{Tool: "search"})
	require.NoError(t, err)
	assert.True(t, hub.called)
	assert.Equal(t, "remote", result.Result)
}

func TestRouterWithoutHubFailsForUnknownTool(t *testing.T) {
	router := tools.NewRouter(nil)
	_, err := router.Invoke(context.Background(), apitypes.ToolInvocationRequest{Tool: "search"})
	require.Error(t, err)
	var target *kernelerrors.Error
	require.ErrorAs(t, err, &target)
	assert.Equal(t, kernelerrors.KindNoMcpClients, target.Code())
}

func TestRouterRejectsDuplicateRegistration(t *testing.T) {
	router := tools.NewRouter(nil)
	spec := tools.ToolSpec{Name: "draft", Handler: func(context.Context, apitypes.ToolInvocationRequest) (apitypes.ToolInvocationResult, error) {
		return apitypes.ToolInvocationResult{}, nil
	}}
	require.NoError(t, router.Register(spec))
	require.Error(t, router.Register(spec))
}

func TestRouterValidatesInputAgainstSchema(t *testing.T) {
	compiler := jsonschema.NewCompiler()
	require.NoError(t, compiler.AddResource("draft.json", map[string]any{
		"type":     "object",
		"required": []any{"topic"},
	}))
	schema, err := compiler.Compile("draft.json")
	require.NoError(t, err)

	router := tools.NewRouter(nil)
	require.NoError(t, router.Register(tools.ToolSpec{
		Name:   "draft",
		Schema: schema,
		Handler: func(context.Context, apitypes.ToolInvocationRequest) (apitypes.ToolInvocationResult, error) {
			return apitypes.ToolInvocationResult{}, nil
		},
	}))

	_, err = router.Invoke(context.Background(), apitypes.ToolInvocationRequest{Tool: "draft", Input: map[string]any{}})
	require.Error(t, err)
	var target *kernelerrors.Error
	require.ErrorAs(t, err, &target)
	assert.Equal(t, kernelerrors.KindSizeMismatch, target.Code())
}

func TestRouterRejectsResultOverDefaultBudget(t *testing.T) {
	hub := &fakeHub{result: apitypes.ToolInvocationResult{Tool: "search", TokensUsed: 500}}
	router := tools.NewRouter(hub, tools.WithTokenBudget(100))

	_, err := router.Invoke(context.Background(), apitypes.ToolInvocationRequest{Tool: "search"})
	require.Error(t, err)
	var target *kernelerrors.Error
	require.ErrorAs(t, err, &target)
	assert.Equal(t, kernelerrors.KindTokenBudgetExceeded, target.Code())
}

func TestRouterPerRequestBudgetOverridesDefault(t *testing.T) {
	hub := &fakeHub{result: apitypes.ToolInvocationResult{Tool: "search", TokensUsed: 500}}
	router := tools.NewRouter(hub, tools.WithTokenBudget(100))

	result, err := router.Invoke(context.Background(), apitypes.ToolInvocationRequest{Tool: "search", Budget: 1000})
	require.NoError(t, err)
	assert.Equal(t, 500, result.TokensUsed)
}

func TestInvokeAllCollectsAllResultsIncludingFailures(t *testing.T) {
	router := tools.NewRouter(nil)
	require.NoError(t, router.Register(tools.ToolSpec{
		Name: "ok",
		Handler: func(_ context.Context, req apitypes.ToolInvocationRequest) (apitypes.ToolInvocationResult, error) {
			return apitypes.ToolInvocationResult{Tool: req.Tool}, nil
		},
	}))
	require.NoError(t, router.Register(tools.ToolSpec{
		Name: "broken",
		Handler: func(context.Context, apitypes.ToolInvocationRequest) (apitypes.ToolInvocationResult, error) {
			return apitypes.ToolInvocationResult{}, errors.New("boom")
		},
	}))

	results := router.InvokeAll(context.Background(), []apitypes.ToolInvocationRequest{
		{Tool: "ok"},
		{Tool: "broken"},
	})
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
}
