package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"goa.design/agentkernel/kernelerrors"
)

// capabilities advertised by a Transport Bridge target server, per the
// fixed method set it proxies. A client sends the "initialize" method
// before any proxied call; both target servers answer it directly rather
// than forwarding it to the proxy handler.
var capabilities = map[string]bool{
	"tools":     true,
	"resources": true,
	"prompts":   true,
	"logging":   true,
}

const initializeMethod = "initialize"

// httpTargetServer exposes the bridge over HTTP: a single endpoint that
// accepts a JSON-RPC 2.0 request body and dispatches it to the proxy
// handler.
type httpTargetServer struct {
	addr   string
	server *http.Server
}

func newHTTPTargetServer(addr string) *httpTargetServer {
	return &httpTargetServer{addr: addr}
}

func (s *httpTargetServer) Start(ctx context.Context, handler ProxyHandler) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json-rpc request", http.StatusBadRequest)
			return
		}
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
		if req.Method == initializeMethod {
			raw, _ := json.Marshal(map[string]any{"capabilities": capabilities})
			resp.Result = raw
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
			return
		}
		result, err := handler(r.Context(), req.Method, req.Params)
		if err != nil {
			resp.Error = &rpcError{Code: -32000, Message: err.Error()}
		} else {
			resp.Result = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	s.server = &http.Server{Addr: s.addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return kernelerrors.TransportError(fmt.Sprintf("bridge target http server failed to bind %q", s.addr), err)
	default:
		return nil
	}
}

func (s *httpTargetServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// stdioTargetServer exposes the bridge's fixed method set to whatever code
// is embedding it, without taking ownership of a concrete stdin/stdout
// loop: callers that need a real child-process-facing stdio server invoke
// Dispatch directly from their own read loop.
type stdioTargetServer struct {
	mu      sync.Mutex
	running bool
	handler ProxyHandler
}

func newStdioTargetServer() *stdioTargetServer {
	return &stdioTargetServer{}
}

func (s *stdioTargetServer) Start(ctx context.Context, handler ProxyHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
	s.running = true
	return nil
}

func (s *stdioTargetServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.handler = nil
	return nil
}

// Dispatch forwards one decoded JSON-RPC request to the proxy handler. The
// "initialize" method is answered directly with the advertised capability
// set rather than forwarded.
func (s *stdioTargetServer) Dispatch(ctx context.Context, req rpcRequest) rpcResponse {
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}

	if req.Method == initializeMethod {
		raw, _ := json.Marshal(map[string]any{"capabilities": capabilities})
		resp.Result = raw
		return resp
	}

	s.mu.Lock()
	handler := s.handler
	running := s.running
	s.mu.Unlock()

	if !running || handler == nil {
		resp.Error = &rpcError{Code: -32000, Message: "bridge target not running"}
		return resp
	}
	result, err := handler(ctx, req.Method, req.Params)
	if err != nil {
		resp.Error = &rpcError{Code: -32000, Message: err.Error()}
		return resp
	}
	resp.Result = result
	return resp
}
