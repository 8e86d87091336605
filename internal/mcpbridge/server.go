// Package mcpbridge implements a Model Context Protocol (MCP) server that
// exposes the risk posture analyses as MCP tools.
//
// The server speaks JSON-RPC 2.0 over stdio, the standard transport for
// local MCP hosts.
package mcpbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	protocolVersion = "2024-11-05"
	jsonrpcVersion  = "2.0"
	serverName      = "riskctl"

	// maxMessage bounds a single newline-delimited message.
	maxMessage = 1 << 20
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

var nullID = json.RawMessage(`null`)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"` // absent on notifications
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func errorf(code int, msg string) *rpcError { return &rpcError{Code: code, Message: msg} }

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type toolsListResult struct {
	Tools []ToolDefinition `json:"tools"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolCallResult struct {
	Content []textContent `json:"content"`
	IsError bool          `json:"isError"`
}

// method answers one request with a result or an error.
type method func(ctx context.Context, params json.RawMessage) (any, *rpcError)

// Server is a stdio MCP server. Requests are newline-delimited JSON-RPC 2.0
// messages; responses go to the writer given to NewServer, one per line.
type Server struct {
	tools   *ToolRegistry
	version string
	methods map[string]method
	logger  *zap.Logger

	mu  sync.Mutex // guards enc
	enc *json.Encoder

	inflight sync.WaitGroup
}

// NewServer creates an MCP server that writes responses to w. The logger
// must not write to w.
func NewServer(w io.Writer, tools *ToolRegistry, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		tools:   tools,
		version: version,
		logger:  logger,
		enc:     json.NewEncoder(w),
	}
	s.methods = map[string]method{
		"initialize": s.initialize,
		"ping":       func(context.Context, json.RawMessage) (any, *rpcError) { return struct{}{}, nil },
		"tools/list": s.listTools,
		"tools/call": s.callTool,
	}
	return s
}

// Serve handles messages from r until EOF or until ctx is cancelled. Tool
// calls run concurrently since each one queries the upstream API; every
// other method is answered in arrival order. Serve returns once all
// in-flight tool calls have answered.
func (s *Server) Serve(ctx context.Context, r io.Reader) error {
	defer s.inflight.Wait()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, maxMessage), maxMessage)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(sc.Bytes()) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
			s.reply(nullID, nil, errorf(codeParseError, "parse error"))
			continue
		}
		if len(req.ID) == 0 {
			continue // notification
		}
		if req.JSONRPC != jsonrpcVersion {
			s.reply(req.ID, nil, errorf(codeInvalidRequest, "jsonrpc must be \"2.0\""))
			continue
		}

		if req.Method != "tools/call" {
			s.handle(ctx, req)
			continue
		}
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.handle(ctx, req)
		}()
	}
	return sc.Err()
}

func (s *Server) handle(ctx context.Context, req rpcRequest) {
	m, ok := s.methods[req.Method]
	if !ok {
		s.reply(req.ID, nil, errorf(codeMethodNotFound, "method not found: "+req.Method))
		return
	}
	result, rpcErr := m(ctx, req.Params)
	s.reply(req.ID, result, rpcErr)
}

func (s *Server) initialize(context.Context, json.RawMessage) (any, *rpcError) {
	return initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{"tools": struct{}{}},
		ServerInfo:      serverInfo{Name: serverName, Version: s.version},
	}, nil
}

func (s *Server) listTools(context.Context, json.RawMessage) (any, *rpcError) {
	return toolsListResult{Tools: s.tools.Definitions()}, nil
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, *rpcError) {
	var call struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &call); err != nil || call.Name == "" {
		return nil, errorf(codeInvalidParams, "invalid params: tools/call needs a tool name")
	}

	start := time.Now()
	text, isErr := s.tools.Call(ctx, call.Name, call.Arguments)
	s.logger.Info("tool call",
		zap.String("tool", call.Name),
		zap.Bool("is_error", isErr),
		zap.Duration("elapsed", time.Since(start)),
	)
	return toolCallResult{Content: []textContent{{Type: "text", Text: text}}, IsError: isErr}, nil
}

func (s *Server) reply(id json.RawMessage, result any, rpcErr *rpcError) {
	resp := rpcResponse{JSONRPC: jsonrpcVersion, ID: id, Error: rpcErr}
	if rpcErr == nil {
		resp.Result = result
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(resp); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}
