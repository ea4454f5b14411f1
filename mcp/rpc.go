package mcp

import (
	"encoding/json"
	"fmt"
)

// rpcRequest and rpcResponse are the Transport Bridge's internal JSON-RPC
// 2.0 envelope for the fixed proxy method set.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      string `json:"id"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      string          `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("mcp rpc error %d: %s", e.Code, e.Message)
}

// bridgeMethods is the fixed method set the Transport Bridge proxies.
var bridgeMethods = []string{
	"tools/list",
	"tools/call",
	"resources/list",
	"resources/read",
	"prompts/list",
	"prompts/get",
}
