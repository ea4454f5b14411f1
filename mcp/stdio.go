package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/kernelerrors"
)

// StdioClientConfig configures a child-process tool provider.
type StdioClientConfig struct {
	Name    string
	Command string
	Args    []string
	Dir     string
}

// StdioClient invokes a tool by spawning the configured command fresh for
// every call: it writes one JSON line to the child's stdin, closes stdin,
// and reads stdout until the child exits. There is no persistent session;
// each invocation is self-contained per the concurrency model's "new child
// process per stdio invocation" rule.
type StdioClient struct {
	cfg StdioClientConfig
}

// NewStdioClient constructs a StdioClient from its configuration.
func NewStdioClient(cfg StdioClientConfig) *StdioClient {
	return &StdioClient{cfg: cfg}
}

// Name returns the configured client name.
func (c *StdioClient) Name() string { return c.cfg.Name }

// Invoke spawns the child, sends the request, and parses its stdout.
func (c *StdioClient) Invoke(ctx context.Context, req apitypes.ToolInvocationRequest) (apitypes.ToolInvocationResult, error) {
	var requestID string
	if v, ok := req.Context[requestIDContextKey]; ok {
		requestID, _ = v.(string)
	}
	body, err := json.Marshal(toolPayload{Tool: req.Tool, Input: req.Input, Kind: string(req.Kind), RequestID: requestID})
	if err != nil {
		return apitypes.ToolInvocationResult{}, kernelerrors.TransportError("encode stdio request", err)
	}
	body = append(body, '\n')

	cmd := exec.CommandContext(ctx, c.cfg.Command, c.cfg.Args...)
	// On cancellation the child gets an interrupt first and is killed if it
	// has not exited 5s later.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 5 * time.Second
	if c.cfg.Dir != "" {
		cmd.Dir = c.cfg.Dir
	}
	cmd.Stdin = bytes.NewReader(body)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return apitypes.ToolInvocationResult{}, kernelerrors.TransportError(
			fmt.Sprintf("stdio client %q exited with error", c.cfg.Name), fmt.Errorf("%s", msg))
	}

	result, tokens, err := parseResult(stdout.Bytes())
	if err != nil {
		return apitypes.ToolInvocationResult{}, kernelerrors.TransportError("decode stdio response", err)
	}

	return apitypes.ToolInvocationResult{
		Tool:       req.Tool,
		Result:     result,
		TokensUsed: tokens,
		Metadata:   map[string]string{"transport": "stdio", "client": c.cfg.Name},
	}, nil
}
