// Package kernel is the composition root: it wires the Worker Registry,
// Memory Coordinator, Tool Router, MCP Client Hub, Approval Gate, Planner,
// Worker Runner, Phase Kernel, and Streaming Manager into one runnable
// multi-agent workflow kernel, the way the teacher's runtime.New wires its
// own subsystems together from an Options struct.
package kernel

import (
	"context"
	"fmt"
	"time"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/config"
	"goa.design/agentkernel/engine"
	engineinmem "goa.design/agentkernel/engine/inmem"
	"goa.design/agentkernel/kernelerrors"
	"goa.design/agentkernel/mcp"
	"goa.design/agentkernel/memory"
	"goa.design/agentkernel/phase"
	"goa.design/agentkernel/planner"
	"goa.design/agentkernel/policy"
	"goa.design/agentkernel/registry"
	"goa.design/agentkernel/stream"
	"goa.design/agentkernel/telemetry"
	"goa.design/agentkernel/tools"
	"goa.design/agentkernel/worker"
)

// Bindings supplies the Go implementations a loaded config.Config refers to
// by name: worker handlers, local tool handlers, and an approval decider.
// config.Config is declarative; Bindings is where the actual code lives.
type Bindings struct {
	// WorkerHandlers maps a config.WorkerConfig.Handler binding name to the
	// Go function the Worker Runner invokes for that worker's steps.
	WorkerHandlers map[string]worker.Handler
	// ToolHandlers maps a config.Tools entry to its local implementation.
	ToolHandlers map[string]tools.Handler
	// ToolSchemas optionally attaches a JSON Schema to a local tool, keyed
	// the same as ToolHandlers.
	ToolSchemas map[string]tools.ToolSpec
	// ApprovalDecider is required when cfg.Approvals.Require is true.
	ApprovalDecider policy.Decider
	// RateLimiter is an optional collaborator consulted by the Approval
	// Gate ahead of ApprovalDecider.
	RateLimiter policy.RateLimiter
	// MemoryStore backs the Memory Coordinator. Required.
	MemoryStore memory.Store
	// RAG is an optional RAG adapter for the Memory Coordinator.
	RAG memory.RAGAdapter
	// WritePolicy optionally gates every Session State write the Memory
	// Coordinator makes.
	WritePolicy memory.WritePolicy
	// StrategyValidator and BuildValidator implement the Phase Kernel's
	// pluggable strategy/build gates.
	StrategyValidator phase.Validators
	BuildValidator    phase.Validators
}

// Options configures Kernel construction. Config and Bindings are
// required; the rest default to no-op or in-memory implementations.
type Options struct {
	Config   *config.Config
	Bindings Bindings

	Engine  engine.Engine
	Gates   *phase.Gates
	Cerebrum *phase.Cerebrum

	BufferSize    int
	FlushInterval time.Duration

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
}

// Kernel is the assembled multi-agent workflow kernel: every component
// reachable from a single composition root, ready to accept goals and
// drive them through planning, execution, and phase review.
type Kernel struct {
	Registry *registry.Registry
	Memory   *memory.Coordinator
	Gate     *policy.Gate
	Hub      *mcp.Hub
	Tools    *tools.Router
	Planner  *planner.Planner
	Worker   *worker.Runner
	Phase    *phase.Kernel
	Engine   engine.Engine
	Bus      *stream.Bus
	Stream   *stream.Manager

	logger telemetry.Logger
}

const phaseWorkflowName = "phase-review"

// New assembles a Kernel from cfg and bindings, failing fast with
// kernelerrors.ConfigInvalid on any missing binding a worker, tool, or
// approval gate requires.
func New(opts Options) (*Kernel, error) {
	if opts.Config == nil {
		return nil, kernelerrors.ConfigInvalid("kernel: Options.Config is required", nil)
	}
	if opts.Bindings.MemoryStore == nil {
		return nil, kernelerrors.ConfigInvalid("kernel: Options.Bindings.MemoryStore is required", nil)
	}
	if opts.Bindings.StrategyValidator == nil || opts.Bindings.BuildValidator == nil {
		return nil, kernelerrors.ConfigInvalid("kernel: Options.Bindings.StrategyValidator and BuildValidator are required", nil)
	}

	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NoopTracer{}
	}

	reg := registry.New()
	for _, w := range opts.Config.Workers {
		handler, ok := opts.Bindings.WorkerHandlers[w.Handler]
		if !ok {
			return nil, kernelerrors.ConfigInvalid(fmt.Sprintf("kernel: worker %q references unbound handler %q", w.Name, w.Handler), nil)
		}
		if err := reg.Register(registry.Worker{
			Name:         w.Name,
			Description:  w.Description,
			Capabilities: w.Capabilities,
			Handler:      handler,
		}); err != nil {
			return nil, err
		}
	}

	memCoord := memory.New(memory.Options{Store: opts.Bindings.MemoryStore, RAG: opts.Bindings.RAG, Policy: opts.Bindings.WritePolicy, Logger: logger})

	var gate *policy.Gate
	if opts.Config.Approvals != nil && opts.Config.Approvals.Require {
		if opts.Bindings.ApprovalDecider == nil {
			return nil, kernelerrors.ConfigInvalid("kernel: approvals.require is true but no ApprovalDecider binding was supplied", nil)
		}
		g, err := policy.NewGate(true, opts.Bindings.ApprovalDecider, opts.Bindings.RateLimiter)
		if err != nil {
			return nil, err
		}
		gate = g
	}

	hub, err := buildHub(opts.Config.MCP, logger)
	if err != nil {
		return nil, err
	}
	hub.WithTelemetry(tracer, metrics)

	router := tools.NewRouter(hub, tools.WithTokenBudget(opts.Config.MaxToolTokens))
	for _, name := range opts.Config.Tools {
		handler, ok := opts.Bindings.ToolHandlers[name]
		if !ok {
			return nil, kernelerrors.ConfigInvalid(fmt.Sprintf("kernel: tool %q references unbound handler", name), nil)
		}
		spec := tools.ToolSpec{Name: name, Handler: handler}
		if bound, ok := opts.Bindings.ToolSchemas[name]; ok {
			spec.Description = bound.Description
			spec.Schema = bound.Schema
		}
		if err := router.Register(spec); err != nil {
			return nil, err
		}
	}

	wr := worker.New(reg, gate, memCoord, router).WithTelemetry(tracer, metrics)
	pl := planner.New(reg, memCoord, wr).WithTelemetry(tracer, metrics)

	ph, err := phase.New(phase.Options{
		Strategy: opts.Bindings.StrategyValidator,
		Build:    opts.Bindings.BuildValidator,
		Gates:    opts.Gates,
		Cerebrum: opts.Cerebrum,
	})
	if err != nil {
		return nil, err
	}
	ph.WithTelemetry(tracer, metrics)

	eng := opts.Engine
	if eng == nil {
		eng = engineinmem.New()
	}

	bus := stream.NewBus()
	mgr := stream.New(stream.Options{
		Bus:           bus,
		BufferSize:    opts.BufferSize,
		FlushInterval: opts.FlushInterval,
		Logger:        logger,
	})

	k := &Kernel{
		Registry: reg,
		Memory:   memCoord,
		Gate:     gate,
		Hub:      hub,
		Tools:    router,
		Planner:  pl,
		Worker:   wr,
		Phase:    ph,
		Engine:   eng,
		Bus:      bus,
		Stream:   mgr,
		logger:   logger,
	}

	if err := eng.RegisterWorkflow(context.Background(), engine.WorkflowDefinition{
		Name:    phaseWorkflowName,
		Handler: k.runPhaseWorkflow,
	}); err != nil {
		return nil, err
	}

	return k, nil
}

func buildHub(cfg config.MCPConfig, logger telemetry.Logger) (*mcp.Hub, error) {
	var clients []mcp.Client
	for _, s := range cfg.Stdio {
		clients = append(clients, mcp.NewStdioClient(mcp.StdioClientConfig{
			Name:    s.Name,
			Command: s.Command,
			Args:    s.Args,
			Dir:     s.Dir,
		}))
	}
	for _, h := range cfg.StreamableHTTP {
		client, err := mcp.NewHTTPClient(mcp.HTTPClientConfig{
			Name:    h.Name,
			URL:     h.URL,
			Headers: h.Headers,
		})
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	if len(clients) == 0 {
		logger.Info(context.Background(), "kernel: no mcp clients configured, tool router will fail over to local tools only")
	}
	return mcp.NewHub(clients...), nil
}

// Run executes goal end to end: plan construction, sequential worker
// dispatch, and step persistence.
func (k *Kernel) Run(ctx context.Context, goal apitypes.Goal) (planner.ExecutionResult, error) {
	return k.Planner.Run(ctx, goal)
}

// StartPhaseReview starts a Phase Kernel run for blueprint on the
// configured Engine and returns the resulting run once it reaches a
// terminal state.
func (k *Kernel) StartPhaseReview(ctx context.Context, id string, blueprint phase.Blueprint) (*phase.Run, error) {
	handle, err := k.Engine.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:       id,
		Workflow: phaseWorkflowName,
		Input:    blueprint,
	})
	if err != nil {
		return nil, err
	}
	var run *phase.Run
	if err := handle.Wait(ctx, &run); err != nil {
		return nil, err
	}
	return run, nil
}

func (k *Kernel) runPhaseWorkflow(wfCtx engine.WorkflowContext, input any) (any, error) {
	blueprint, ok := input.(phase.Blueprint)
	if !ok {
		return nil, kernelerrors.ConfigInvalid("kernel: phase workflow input must be a phase.Blueprint", nil)
	}
	run := k.Phase.Start(wfCtx.WorkflowID(), blueprint)
	if err := k.Phase.Run(wfCtx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Emit publishes event through the Streaming Manager, applying every
// registered transformer and any per-thread buffering.
func (k *Kernel) Emit(ctx context.Context, event apitypes.Event) error {
	return k.Stream.Emit(ctx, event)
}

// Subscribe registers sub on the kernel's event bus.
func (k *Kernel) Subscribe(sub stream.Subscriber) (stream.Subscription, error) {
	return k.Bus.Register(sub)
}

// NewBridge constructs a Transport Bridge over sourceKind/targetKind,
// applying the retry/logging options from the kernel's loaded
// configuration. The bridge's own transport endpoints (stdio command,
// target HTTP address) are supplied by the caller: config.Config's MCP
// section describes the Hub's inbound clients, not the Bridge's
// source/target pairing.
func (k *Kernel) NewBridge(cfg *config.Config, sourceKind, targetKind mcp.TransportKind, sourceStdio mcp.StdioClientConfig, sourceHTTP mcp.HTTPClientConfig, targetHTTPAddr string) (*mcp.Bridge, error) {
	return mcp.NewBridge(mcp.BridgeConfig{
		SourceKind:     sourceKind,
		TargetKind:     targetKind,
		SourceStdio:    sourceStdio,
		SourceHTTP:     sourceHTTP,
		TargetHTTPAddr: targetHTTPAddr,
		Options: mcp.BridgeOptions{
			Timeout: cfg.BridgeTimeout(),
			Retries: cfg.BridgeRetries(),
			Logging: cfg.Bridge.Logging,
		},
	}, k.logger)
}
