package mcp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/mcp"
)

func TestStdioClientInvokeParsesResultEnvelope(t *testing.T) {
	client := mcp.NewStdioClient(mcp.StdioClientConfig{
		Name:    "echo-tool",
		Command: "sh",
		Args:    []string{"-c", `printf '%s' '{"result":{"answer":42},"tokensUsed":12}'`},
	})

	result, err := client.Invoke(context.Background(), apitypes.ToolInvocationRequest{Tool: "search"})
	require.NoError(t, err)
	assert.Equal(t, 12, result.TokensUsed)
	assert.Equal(t, "search", result.Tool)
	assert.Equal(t, "stdio", result.Metadata["transport"])
	assert.Equal(t, "echo-tool", result.Metadata["client"])
}

func TestStdioClientInvokeWithoutEnvelopeEstimatesTokens(t *testing.T) {
	client := mcp.NewStdioClient(mcp.StdioClientConfig{
		Name:    "raw-tool",
		Command: "sh",
		Args:    []string{"-c", `printf '"plain-string-result"'`},
	})

	result, err := client.Invoke(context.Background(), apitypes.ToolInvocationRequest{Tool: "search"})
	require.NoError(t, err)
	assert.Equal(t, "plain-string-result", result.Result)
	assert.Greater(t, result.TokensUsed, 0)
}

func TestStdioClientInvokeClampsReportedZeroTokens(t *testing.T) {
	client := mcp.NewStdioClient(mcp.StdioClientConfig{
		Name:    "zero-tool",
		Command: "sh",
		Args:    []string{"-c", `printf '%s' '{"result":"ok","tokensUsed":0}'`},
	})

	result, err := client.Invoke(context.Background(), apitypes.ToolInvocationRequest{Tool: "search"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TokensUsed)
}

func TestStdioClientNonZeroExitFailsWithStderr(t *testing.T) {
	client := mcp.NewStdioClient(mcp.StdioClientConfig{
		Name:    "failing-tool",
		Command: "sh",
		Args:    []string{"-c", `echo "boom" >&2; exit 1`},
	})

	_, err := client.Invoke(context.Background(), apitypes.ToolInvocationRequest{Tool: "search"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
