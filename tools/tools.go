// Package tools implements the Tool Router: two-step resolution between
// locally registered handlers and the MCP Client Hub.
package tools

import (
	"context"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/kernelerrors"
)

// Handler executes a local tool invocation.
type Handler func(ctx context.Context, req apitypes.ToolInvocationRequest) (apitypes.ToolInvocationResult, error)

// HubInvoker is the subset of mcp.Hub the Router depends on.
type HubInvoker interface {
	Invoke(ctx context.Context, req apitypes.ToolInvocationRequest) (apitypes.ToolInvocationResult, error)
}

// ToolSpec describes a locally registered tool: its handler and an
// optional JSON Schema used to validate invocation input before the
// handler runs.
type ToolSpec struct {
	Name        string
	Description string
	Handler     Handler
	Schema      *jsonschema.Schema
}

// Router resolves a ToolInvocationRequest to a local handler or, failing
// that, the MCP Hub.
type Router struct {
	mu            sync.RWMutex
	tools         map[string]ToolSpec
	hub           HubInvoker
	defaultBudget int
}

// RouterOption configures a Router at construction time.
type RouterOption func(*Router)

// WithTokenBudget sets the default per-invocation token budget. A result
// whose TokensUsed exceeds the budget in effect fails with
// kernelerrors.TokenBudgetExceeded instead of being returned. A budget of
// 0 (the default) disables enforcement.
func WithTokenBudget(tokens int) RouterOption {
	return func(r *Router) {
		r.defaultBudget = tokens
	}
}

// NewRouter constructs a Router over the given MCP Hub. hub may be nil if
// no MCP clients are configured; any request that doesn't match a local
// tool then fails with NoMcpClients.
func NewRouter(hub HubInvoker, opts ...RouterOption) *Router {
	r := &Router{tools: make(map[string]ToolSpec), hub: hub}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a local tool. A duplicate name is rejected.
func (r *Router) Register(spec ToolSpec) error {
	if spec.Name == "" {
		return kernelerrors.ConfigInvalid("tool spec requires a name", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[spec.Name]; exists {
		return kernelerrors.ConfigInvalid("tool \""+spec.Name+"\" already registered", nil)
	}
	r.tools[spec.Name] = spec
	return nil
}

// Invoke resolves req.Tool against the local handler table first; if no
// local handler matches, it dispatches to the MCP Hub. The result's
// TokensUsed is checked against the request's Budget override, or the
// Router's default budget if Budget is 0; exceeding it fails with
// kernelerrors.TokenBudgetExceeded even though the underlying call
// succeeded.
func (r *Router) Invoke(ctx context.Context, req apitypes.ToolInvocationRequest) (apitypes.ToolInvocationResult, error) {
	r.mu.RLock()
	spec, ok := r.tools[req.Tool]
	r.mu.RUnlock()

	var (
		result apitypes.ToolInvocationResult
		err    error
	)
	if !ok {
		if r.hub == nil {
			return apitypes.ToolInvocationResult{}, kernelerrors.NoMcpClients()
		}
		result, err = r.hub.Invoke(ctx, req)
	} else {
		if spec.Schema != nil {
			if verr := spec.Schema.Validate(req.Input); verr != nil {
				return apitypes.ToolInvocationResult{}, kernelerrors.SizeMismatch("tool \"" + req.Tool + "\" input failed schema validation: " + verr.Error())
			}
		}
		result, err = spec.Handler(ctx, req)
	}
	if err != nil {
		return result, err
	}

	budget := r.defaultBudget
	if req.Budget > 0 {
		budget = req.Budget
	}
	if budget > 0 && result.TokensUsed > budget {
		return result, kernelerrors.TokenBudgetExceeded(result.TokensUsed, budget)
	}
	return result, nil
}

// InvocationResult pairs a request with its eventual outcome, used by
// InvokeAll to report allSettled-style results.
type InvocationResult struct {
	Result apitypes.ToolInvocationResult
	Err    error
}

// InvokeAll fans requests out concurrently and gathers every result,
// mirroring the allSettled semantics a batch tool call needs: a failure
// in one invocation never prevents the others from completing.
func (r *Router) InvokeAll(ctx context.Context, reqs []apitypes.ToolInvocationRequest) []InvocationResult {
	results := make([]InvocationResult, len(reqs))
	var wg sync.WaitGroup
	wg.Add(len(reqs))
	for i, req := range reqs {
		go func(i int, req apitypes.ToolInvocationRequest) {
			defer wg.Done()
			result, err := r.Invoke(ctx, req)
			results[i] = InvocationResult{Result: result, Err: err}
		}(i, req)
	}
	wg.Wait()
	return results
}

// EstimateTokens implements the ceil(len(json)/4) heuristic for payloads
// that don't carry an explicit token count.
func EstimateTokens(jsonLen int) int {
	return apitypes.EstimateTokens(jsonLen)
}
