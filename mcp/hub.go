package mcp

import (
	"context"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/kernelerrors"
	"goa.design/agentkernel/telemetry"
)

// Hub holds an ordered list of transport-backed clients and invokes them in
// configuration order, failing over on error. There is no health-based
// reordering: failover order is always the configured order.
type Hub struct {
	clients []Client
	tracer  telemetry.Tracer
	metrics telemetry.Metrics
}

// NewHub constructs a Hub over the given clients, preserving their order.
func NewHub(clients ...Client) *Hub {
	return &Hub{clients: clients, tracer: telemetry.NoopTracer{}, metrics: telemetry.NoopMetrics{}}
}

// WithTelemetry attaches a Tracer and Metrics recorder, replacing the no-op
// defaults. It returns h for chaining at construction time.
func (h *Hub) WithTelemetry(tracer telemetry.Tracer, metrics telemetry.Metrics) *Hub {
	if tracer != nil {
		h.tracer = tracer
	}
	if metrics != nil {
		h.metrics = metrics
	}
	return h
}

// Invoke tries each client in order until one succeeds. An empty client
// list fails with NoMcpClients; if every client fails, the aggregate error
// lists each per-client cause in configuration order.
func (h *Hub) Invoke(ctx context.Context, req apitypes.ToolInvocationRequest) (apitypes.ToolInvocationResult, error) {
	ctx, span := h.tracer.Start(ctx, "mcp.Hub.Invoke")
	defer span.End()

	if len(h.clients) == 0 {
		err := kernelerrors.NoMcpClients()
		span.RecordError(err)
		return apitypes.ToolInvocationResult{}, err
	}

	var failures []kernelerrors.ClientFailure
	for _, client := range h.clients {
		result, err := client.Invoke(ctx, req)
		if err == nil {
			span.AddEvent("client.succeeded", "client", client.Name())
			h.metrics.IncCounter("mcp_hub_invoke_total", 1, "tool="+req.Tool, "outcome=ok")
			return result, nil
		}
		span.AddEvent("client.failed", "client", client.Name(), "error", err)
		failures = append(failures, kernelerrors.ClientFailure{Client: client.Name(), Err: err})
	}

	err := kernelerrors.AllMcpClientsFailed(failures)
	span.RecordError(err)
	h.metrics.IncCounter("mcp_hub_invoke_total", 1, "tool="+req.Tool, "outcome=error")
	return apitypes.ToolInvocationResult{}, err
}
