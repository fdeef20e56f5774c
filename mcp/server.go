package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/toolwire/toolwire/jsonrpc"
	"github.com/toolwire/toolwire/rpc"
)

// ErrToolNotFound is returned by a ToolSet when the requested tool is
// not registered. The server maps it onto the wire as an internal-error
// response whose data names the missing tool.
var ErrToolNotFound = errors.New("tool not found")

// ToolSet is the worker-side registry consulted by the server. The
// tools package provides the standard implementation.
type ToolSet interface {
	// Descriptors returns the published tool descriptors in a stable
	// order.
	Descriptors() []Tool
	// Call invokes the named tool. It returns ErrToolNotFound (possibly
	// wrapped) for an unregistered name.
	Call(ctx context.Context, name string, args map[string]any) ([]Content, error)
}

// Server exposes a ToolSet over a framed channel, typically the
// worker's own stdin/stdout.
type Server struct {
	info  Implementation
	tools ToolSet
	trace func(string)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerTrace routes worker-side diagnostics to fn. The worker must
// never write non-protocol bytes to its stdout, so diagnostics go to a
// trace sink or stderr.
func WithServerTrace(fn func(string)) ServerOption {
	return func(s *Server) {
		if fn != nil {
			s.trace = fn
		}
	}
}

// NewServer builds a worker server publishing the given tool set.
func NewServer(name, version string, tools ToolSet, opts ...ServerOption) *Server {
	s := &Server{
		info:  Implementation{Name: name, Version: version},
		tools: tools,
		trace: func(string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve handles requests on conn until the stream ends: initialize,
// tools/list and tools/call, with anything else answered as method not
// found by the dispatcher.
func (s *Server) Serve(ctx context.Context, conn *jsonrpc.Conn) error {
	dispatcher := rpc.NewServer(rpc.WithServerTrace(s.trace))
	dispatcher.Register(MethodInitialize, s.handleInitialize)
	dispatcher.Register(MethodListTools, s.handleListTools)
	dispatcher.Register(MethodCallTool, s.handleCallTool)
	return dispatcher.Serve(ctx, conn)
}

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (any, *jsonrpc.ErrorObject) {
	var p InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "invalid initialize params: %v", err)
		}
	}
	version := p.ProtocolVersion
	if version == "" {
		version = ProtocolVersion
	}
	return InitializeResult{
		ProtocolVersion: version,
		ServerInfo:      s.info,
		Capabilities:    map[string]any{"tools": map[string]any{}},
	}, nil
}

func (s *Server) handleListTools(ctx context.Context, params json.RawMessage) (any, *jsonrpc.ErrorObject) {
	return ListToolsResult{Tools: s.tools.Descriptors()}, nil
}

func (s *Server) handleCallTool(ctx context.Context, params json.RawMessage) (any, *jsonrpc.ErrorObject) {
	var p CallToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "invalid tools/call params: %v", err)
	}
	if p.Name == "" {
		return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "tools/call requires a tool name")
	}

	content, err := s.tools.Call(ctx, p.Name, p.Arguments)
	if err != nil {
		errObj := jsonrpc.Errorf(jsonrpc.CodeInternalError, "tool execution failed: %v", err)
		if errors.Is(err, ErrToolNotFound) {
			errObj = jsonrpc.Errorf(jsonrpc.CodeInternalError, "tool not found: %s", p.Name)
		}
		if data, merr := json.Marshal(map[string]string{"tool": p.Name}); merr == nil {
			errObj.Data = data
		}
		return nil, errObj
	}
	return CallToolResult{Content: content}, nil
}
