package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/toolwire/toolwire/jsonrpc"
)

// HandlerFunc processes a request's params and returns a result value
// or a structured error. Exactly one of the two is non-nil.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, *jsonrpc.ErrorObject)

// Server routes inbound messages on one connection by method name.
type Server struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	trace    func(string)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerTrace routes serving diagnostics to fn.
func WithServerTrace(fn func(string)) ServerOption {
	return func(s *Server) {
		if fn != nil {
			s.trace = fn
		}
	}
}

// NewServer constructs a server with no methods registered.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		handlers: make(map[string]HandlerFunc),
		trace:    func(string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register installs a handler for a method, replacing any previous one.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

// Serve reads messages from conn until the stream ends or ctx is
// cancelled. Every request with an id gets exactly one response; a
// failing or panicking handler, an unknown method or a malformed frame
// produces an error response and the loop keeps serving.
func (s *Server) Serve(ctx context.Context, conn *jsonrpc.Conn) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := conn.Receive()
		if err != nil {
			if errors.Is(err, jsonrpc.ErrMalformed) {
				s.trace(fmt.Sprintf("Serve: malformed frame: %v", err))
				// No id is recoverable from an unparseable frame, so
				// the response carries a null id per JSON-RPC 2.0.
				_ = conn.Send(&jsonrpc.Response{
					Error: jsonrpc.Errorf(jsonrpc.CodeParseError, "parse error"),
				})
				continue
			}
			if err == io.EOF {
				s.trace("Serve: end of stream")
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		switch m := msg.(type) {
		case *jsonrpc.Request:
			s.trace(fmt.Sprintf("Serve: request %q id=%s", m.Method, m.ID))
			result, errObj := s.invoke(ctx, m.Method, m.Params)
			resp := &jsonrpc.Response{ID: m.ID}
			if errObj != nil {
				resp.Error = errObj
			} else {
				raw, err := jsonrpc.MarshalParams(result)
				if err != nil {
					resp.Error = jsonrpc.Errorf(jsonrpc.CodeInternalError, "failed to serialize result: %v", err)
				} else if raw == nil {
					resp.Result = json.RawMessage("null")
				} else {
					resp.Result = raw
				}
			}
			if err := conn.Send(resp); err != nil {
				return fmt.Errorf("failed to send response: %w", err)
			}
		case *jsonrpc.Notification:
			// Routed like a request, but the outcome stays local.
			s.trace(fmt.Sprintf("Serve: notification %q", m.Method))
			if _, errObj := s.invoke(ctx, m.Method, m.Params); errObj != nil {
				s.trace(fmt.Sprintf("Serve: notification %q failed: %s", m.Method, errObj.Message))
			}
		case *jsonrpc.Response:
			s.trace(fmt.Sprintf("Serve: ignoring response with id %s", m.ID))
		}
	}
}

// invoke looks up and runs the handler for method, converting a panic
// into an internal error so one bad request cannot kill the loop.
func (s *Server) invoke(ctx context.Context, method string, params json.RawMessage) (result any, errObj *jsonrpc.ErrorObject) {
	s.mu.RLock()
	handler, ok := s.handlers[method]
	s.mu.RUnlock()
	if !ok {
		return nil, jsonrpc.Errorf(jsonrpc.CodeMethodNotFound, "method not found: %s", method)
	}

	defer func() {
		if r := recover(); r != nil {
			s.trace(fmt.Sprintf("invoke: handler for %q panicked: %v", method, r))
			result = nil
			errObj = jsonrpc.Errorf(jsonrpc.CodeInternalError, "internal error in %s handler", method)
		}
	}()
	return handler(ctx, params)
}
