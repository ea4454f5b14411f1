package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/kernelerrors"
	"goa.design/agentkernel/telemetry"
)

// TransportKind names one side of a Transport Bridge.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

// sourceClient forwards a JSON-RPC call to the bridge's source transport.
// requestID is the per-forwarded-call correlation ID the bridge generates;
// implementations attach it to the underlying transport call.
type sourceClient interface {
	Call(ctx context.Context, method string, requestID string, params any) (json.RawMessage, error)
	Close() error
}

// targetServer exposes the bridge's target transport, dispatching every
// inbound call to the given proxy handler.
type targetServer interface {
	Start(ctx context.Context, handler ProxyHandler) error
	Stop(ctx context.Context) error
}

// ProxyHandler forwards one JSON-RPC method call and returns the raw result.
type ProxyHandler func(ctx context.Context, method string, params any) (json.RawMessage, error)

// BridgeOptions configures retry and logging behaviour for the
// source-connect and target-start steps: Timeout bounds each attempt, and
// Retries is the number of retries allowed after the first attempt.
type BridgeOptions struct {
	Timeout time.Duration
	Retries uint64
	Logging bool
}

func (o BridgeOptions) withDefaults() BridgeOptions {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// BridgeConfig describes the source and target transports to bridge.
// Source and Target kinds must differ: same-type bridging is rejected at
// construction.
type BridgeConfig struct {
	SourceKind TransportKind
	TargetKind TransportKind

	// Source transport settings.
	SourceStdio StdioClientConfig
	SourceHTTP  HTTPClientConfig

	// Target transport settings.
	TargetHTTPAddr string

	Options BridgeOptions
}

// Bridge exposes one transport (the target) while proxying requests to
// another (the source).
type Bridge struct {
	cfg    BridgeConfig
	logger telemetry.Logger

	mu      sync.Mutex
	running bool
	client  sourceClient
	server  targetServer
}

// NewBridge validates cfg and constructs a Bridge. Logger defaults to a
// no-op implementation.
func NewBridge(cfg BridgeConfig, logger telemetry.Logger) (*Bridge, error) {
	if cfg.SourceKind == cfg.TargetKind {
		return nil, kernelerrors.ConfigInvalid("bridge source and target transports must differ", nil)
	}
	if cfg.SourceKind == TransportHTTP && !strings.HasPrefix(cfg.SourceHTTP.URL, "https://") {
		return nil, kernelerrors.ConfigInvalid("bridge http source must use https", nil)
	}
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	cfg.Options = cfg.Options.withDefaults()
	return &Bridge{cfg: cfg, logger: logger}, nil
}

// Start connects the source client and starts the target server. A second
// call while already running fails with AlreadyRunning. A failure during
// start triggers cleanup, which closes any partially initialised client
// and server, swallowing and logging their errors.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return kernelerrors.AlreadyRunning()
	}

	client, err := b.connectSourceWithRetry(ctx)
	if err != nil {
		return err
	}

	server, err := b.startTargetWithRetry(ctx, client)
	if err != nil {
		b.cleanup(ctx, client, nil)
		return err
	}

	b.client = client
	b.server = server
	b.running = true
	return nil
}

// Stop is idempotent: stopping a bridge that isn't running is a no-op.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return nil
	}
	b.cleanup(ctx, b.client, b.server)
	b.client = nil
	b.server = nil
	b.running = false
	return nil
}

// cleanup closes client and server, swallowing and logging their errors.
func (b *Bridge) cleanup(ctx context.Context, client sourceClient, server targetServer) {
	if server != nil {
		if err := server.Stop(ctx); err != nil {
			b.logger.Warn(ctx, "bridge target server stop failed during cleanup", "error", err)
		}
	}
	if client != nil {
		if err := client.Close(); err != nil {
			b.logger.Warn(ctx, "bridge source client close failed during cleanup", "error", err)
		}
	}
}

// Health reports the bridge's running state and transport kinds.
type Health struct {
	Running         bool
	SourceType      TransportKind
	TargetType      TransportKind
	ClientConnected bool
}

// Healthy reports true iff the bridge is running and its source client is
// connected.
func (h Health) Healthy() bool { return h.Running && h.ClientConnected }

// Health returns the bridge's current health snapshot.
func (b *Bridge) Health() Health {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Health{
		Running:         b.running,
		SourceType:      b.cfg.SourceKind,
		TargetType:      b.cfg.TargetKind,
		ClientConnected: b.client != nil,
	}
}

func (b *Bridge) connectSourceWithRetry(ctx context.Context) (sourceClient, error) {
	var client sourceClient
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, b.cfg.Options.Timeout)
		defer cancel()
		c, err := b.connectSource(callCtx)
		if err != nil {
			return err
		}
		client = c
		return nil
	}
	if err := retryWithBudget(ctx, op, b.cfg.Options.Retries); err != nil {
		return nil, kernelerrors.TransportError("connect bridge source", err)
	}
	return client, nil
}

func (b *Bridge) startTargetWithRetry(ctx context.Context, client sourceClient) (targetServer, error) {
	handler := b.proxyHandler(client)
	var server targetServer
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, b.cfg.Options.Timeout)
		defer cancel()
		s := b.newTargetServer()
		if err := s.Start(callCtx, handler); err != nil {
			return err
		}
		server = s
		return nil
	}
	if err := retryWithBudget(ctx, op, b.cfg.Options.Retries); err != nil {
		return nil, kernelerrors.TransportError("start bridge target", err)
	}
	return server, nil
}

func (b *Bridge) connectSource(ctx context.Context) (sourceClient, error) {
	switch b.cfg.SourceKind {
	case TransportStdio:
		return newStdioSourceClient(ctx, b.cfg.SourceStdio)
	case TransportHTTP:
		return newHTTPSourceClient(b.cfg.SourceHTTP)
	default:
		return nil, kernelerrors.ConfigInvalid(fmt.Sprintf("unsupported bridge source kind %q", b.cfg.SourceKind), nil)
	}
}

func (b *Bridge) newTargetServer() targetServer {
	switch b.cfg.TargetKind {
	case TransportHTTP:
		return newHTTPTargetServer(b.cfg.TargetHTTPAddr)
	case TransportStdio:
		return newStdioTargetServer()
	default:
		return nil
	}
}

// proxyHandler forwards every call for the fixed bridgeMethods set to the
// source client verbatim, generating a fresh request ID per call.
func (b *Bridge) proxyHandler(client sourceClient) ProxyHandler {
	return func(ctx context.Context, method string, params any) (json.RawMessage, error) {
		if !isBridgeMethod(method) {
			return nil, kernelerrors.TransportError(fmt.Sprintf("unsupported bridge method %q", method), nil)
		}
		requestID := uuid.NewString()
		return client.Call(ctx, method, requestID, params)
	}
}

func isBridgeMethod(method string) bool {
	for _, m := range bridgeMethods {
		if m == method {
			return true
		}
	}
	return false
}

// retryWithBudget runs op up to retries+1 times using an exponential
// backoff, stopping early on ctx cancellation.
func retryWithBudget(ctx context.Context, op func() error, retries uint64) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
	return backoff.Retry(op, bo)
}

// --- stdio source client: one child process per forwarded call, no session ---

type stdioSourceClient struct {
	cfg StdioClientConfig
}

func newStdioSourceClient(_ context.Context, cfg StdioClientConfig) (sourceClient, error) {
	if cfg.Command == "" {
		return nil, kernelerrors.ConfigInvalid("bridge stdio source requires a command", nil)
	}
	return &stdioSourceClient{cfg: cfg}, nil
}

// Call spawns the configured command for this single JSON-RPC call. The
// bridge does not require session-level state from the source beyond the
// response to each forwarded call.
func (c *stdioSourceClient) Call(ctx context.Context, method string, requestID string, params any) (json.RawMessage, error) {
	client := NewStdioClient(c.cfg)
	result, err := client.Invoke(ctx, apitypes.ToolInvocationRequest{
		Tool:    method,
		Input:   params,
		Context: map[string]any{requestIDContextKey: requestID},
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result.Result)
}

func (c *stdioSourceClient) Close() error { return nil }

// --- http source client: JSON-RPC 2.0 over HTTPS ---

type httpSourceClient struct {
	cfg    HTTPClientConfig
	client *http.Client
}

func newHTTPSourceClient(cfg HTTPClientConfig) (sourceClient, error) {
	if !strings.HasPrefix(cfg.URL, "https://") {
		return nil, kernelerrors.ConfigInvalid("bridge http source must use https", nil)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &httpSourceClient{cfg: cfg, client: client}, nil
}

func (c *httpSourceClient) Call(ctx context.Context, method string, requestID string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, ID: requestID, Params: params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, kernelerrors.TransportError(fmt.Sprintf("bridge http source returned HttpStatus(%d)", resp.StatusCode), nil)
	}
	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, err
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

func (c *httpSourceClient) Close() error { return nil }
