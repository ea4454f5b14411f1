package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/kernelerrors"
)

// HTTPClientConfig configures a streaming-HTTP tool provider. URL must use
// the https scheme; plaintext http is rejected at construction time.
type HTTPClientConfig struct {
	Name    string
	URL     string
	Headers map[string]string
	Client  *http.Client
}

// HTTPClient invokes a tool by POSTing the request body with an X-Tool
// header identifying the tool, per the streaming-HTTP wire protocol.
type HTTPClient struct {
	cfg    HTTPClientConfig
	client *http.Client
}

// NewHTTPClient validates cfg and constructs an HTTPClient.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if !strings.HasPrefix(cfg.URL, "https://") {
		return nil, kernelerrors.ConfigInvalid(fmt.Sprintf("streaming-http client %q must use https", cfg.Name), nil)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{cfg: cfg, client: client}, nil
}

// Name returns the configured client name.
func (c *HTTPClient) Name() string { return c.cfg.Name }

// Invoke POSTs the tool payload and parses the response body.
func (c *HTTPClient) Invoke(ctx context.Context, req apitypes.ToolInvocationRequest) (apitypes.ToolInvocationResult, error) {
	body, err := json.Marshal(toolPayload{Tool: req.Tool, Input: req.Input, Kind: string(req.Kind)})
	if err != nil {
		return apitypes.ToolInvocationResult{}, kernelerrors.TransportError("encode http request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return apitypes.ToolInvocationResult{}, kernelerrors.TransportError("build http request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tool", req.Tool)
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return apitypes.ToolInvocationResult{}, kernelerrors.TransportError(
			fmt.Sprintf("streaming-http client %q request failed", c.cfg.Name), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apitypes.ToolInvocationResult{}, kernelerrors.TransportError("read http response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apitypes.ToolInvocationResult{}, kernelerrors.TransportError(
			fmt.Sprintf("streaming-http client %q returned HttpStatus(%d)", c.cfg.Name, resp.StatusCode), nil)
	}

	result, tokens, err := parseResult(respBody)
	if err != nil {
		return apitypes.ToolInvocationResult{}, kernelerrors.TransportError("decode http response", err)
	}

	return apitypes.ToolInvocationResult{
		Tool:       req.Tool,
		Result:     result,
		TokensUsed: tokens,
		Metadata:   map[string]string{"transport": "streamable-http", "client": c.cfg.Name},
	}, nil
}
