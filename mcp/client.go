// Package mcp implements the MCP Client Hub and Transport Bridge: transport-
// agnostic invocation of tools hosted by child-process (stdio) or remote
// (streaming HTTP) providers, with ordered failover, plus a bridge that
// fronts one transport while proxying to another.
package mcp

import (
	"context"

	"goa.design/agentkernel/apitypes"
)

// requestIDContextKey is the ToolInvocationRequest.Context key a Transport
// Bridge source client uses to thread its per-forwarded-call request ID
// through to the underlying tool transport.
const requestIDContextKey = "requestId"

// Client invokes a single tool over one transport. Implementations are the
// Hub's failover units: stdio child processes and streaming-HTTP endpoints.
type Client interface {
	// Name identifies the client for failover bookkeeping and result
	// metadata; it matches the configured client name.
	Name() string
	// Invoke performs one tool call over this client's transport.
	Invoke(ctx context.Context, req apitypes.ToolInvocationRequest) (apitypes.ToolInvocationResult, error)
}

// toolPayload is the wire body exchanged with both stdio and HTTP
// transports, per the bridge wire protocol in the external interfaces
// section: {"tool", "input", "kind", "requestId"} out, {"result"?,
// "tokensUsed"?} in. RequestID carries the per-forwarded-call correlation
// ID the Transport Bridge generates; it is empty for direct (non-bridged)
// Hub invocations.
type toolPayload struct {
	Tool      string `json:"tool"`
	Input     any    `json:"input"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}
