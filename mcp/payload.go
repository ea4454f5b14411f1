package mcp

import (
	"encoding/json"

	"goa.design/agentkernel/apitypes"
)

// parseResult decodes a transport response body. If the payload has a
// "result" key, that value is the result; otherwise the entire decoded
// payload is the result. tokensUsed comes from a numeric "tokensUsed" key
// when present, else is estimated from the payload length.
func parseResult(raw []byte) (result any, tokensUsed int, err error) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		// Not a JSON object: treat the whole payload as the result value.
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, 0, err
		}
		return v, apitypes.EstimateTokens(len(raw)), nil
	}

	tokens := apitypes.EstimateTokens(len(raw))
	if rawTokens, ok := generic["tokensUsed"]; ok {
		var n float64
		if err := json.Unmarshal(rawTokens, &n); err == nil {
			tokens = int(n)
		}
	}
	if tokens < 1 {
		tokens = 1
	}

	if rawResult, ok := generic["result"]; ok {
		var v any
		if err := json.Unmarshal(rawResult, &v); err != nil {
			return nil, 0, err
		}
		return v, tokens, nil
	}

	var whole any
	if err := json.Unmarshal(raw, &whole); err != nil {
		return nil, 0, err
	}
	return whole, tokens, nil
}
