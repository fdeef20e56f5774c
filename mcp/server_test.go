package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/toolwire/toolwire/jsonrpc"
	"github.com/toolwire/toolwire/rpc"
)

// stubToolSet serves a single weather-alert tool without any real
// registry behind it.
type stubToolSet struct {
	failWith error
}

func (s *stubToolSet) Descriptors() []Tool {
	return []Tool{
		{
			Name:        "get-alerts",
			Description: "Get weather alerts for a US state.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"state":{"type":"string"}},"required":["state"]}`),
		},
	}
}

func (s *stubToolSet) Call(ctx context.Context, name string, args map[string]any) ([]Content, error) {
	if name != "get-alerts" {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if s.failWith != nil {
		return nil, s.failWith
	}
	state, _ := args["state"].(string)
	return []Content{NewTextContent(fmt.Sprintf("Active alerts for %s: none", state))}, nil
}

// startWorker runs a Server over an in-memory channel and returns an
// rpc client connected to it.
func startWorker(t *testing.T, tools ToolSet) *rpc.Client {
	t.Helper()
	workerReader, hostWriter := io.Pipe()
	hostReader, workerWriter := io.Pipe()
	workerConn := jsonrpc.NewConn(workerReader, workerWriter)
	hostConn := jsonrpc.NewConn(hostReader, hostWriter)

	server := NewServer("toolworker", "0.3.0", tools)
	go func() {
		if err := server.Serve(context.Background(), workerConn); err != nil {
			t.Errorf("Serve stopped with an error: %v", err)
		}
	}()

	client := rpc.NewClient(hostConn)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestServerInitialize(t *testing.T) {
	client := startWorker(t, &stubToolSet{})

	raw, err := client.Call(context.Background(), MethodInitialize, InitializeParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      Implementation{Name: "test-host", Version: "0.0.1"},
	})
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	var res InitializeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("initialize result did not decode: %v", err)
	}
	if res.ProtocolVersion != ProtocolVersion {
		t.Errorf("Expected protocol version %s, got %s", ProtocolVersion, res.ProtocolVersion)
	}
	if res.ServerInfo.Name != "toolworker" {
		t.Errorf("Expected server name 'toolworker', got '%s'", res.ServerInfo.Name)
	}
	if _, ok := res.Capabilities["tools"]; !ok {
		t.Error("Expected a tools capability in the initialize result")
	}
}

func TestServerListTools(t *testing.T) {
	client := startWorker(t, &stubToolSet{})

	raw, err := client.Call(context.Background(), MethodListTools, nil)
	if err != nil {
		t.Fatalf("tools/list failed: %v", err)
	}

	var res ListToolsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("tools/list result did not decode: %v", err)
	}
	if len(res.Tools) != 1 {
		t.Fatalf("Expected 1 tool, got %d", len(res.Tools))
	}
	if res.Tools[0].Name != "get-alerts" {
		t.Errorf("Expected tool 'get-alerts', got '%s'", res.Tools[0].Name)
	}
	if len(res.Tools[0].InputSchema) == 0 {
		t.Error("Expected the tool descriptor to carry an input schema")
	}
}

func TestServerCallTool(t *testing.T) {
	client := startWorker(t, &stubToolSet{})

	raw, err := client.Call(context.Background(), MethodCallTool, CallToolParams{
		Name:      "get-alerts",
		Arguments: map[string]any{"state": "CA"},
	})
	if err != nil {
		t.Fatalf("tools/call failed: %v", err)
	}

	var res CallToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("tools/call result did not decode: %v", err)
	}
	if res.IsError {
		t.Error("Expected a successful result")
	}
	if !strings.Contains(res.Text(), "CA") {
		t.Errorf("Expected the result to mention CA, got %q", res.Text())
	}
}

func TestServerCallUnknownTool(t *testing.T) {
	client := startWorker(t, &stubToolSet{})

	_, err := client.Call(context.Background(), MethodCallTool, CallToolParams{Name: "bogus"})
	if err == nil {
		t.Fatal("Expected an error for an unknown tool")
	}

	var errObj *jsonrpc.ErrorObject
	if !errors.As(err, &errObj) {
		t.Fatalf("Expected *jsonrpc.ErrorObject, got %T: %v", err, err)
	}
	if errObj.Code != jsonrpc.CodeInternalError {
		t.Errorf("Expected code %d, got %d", jsonrpc.CodeInternalError, errObj.Code)
	}
	if !strings.Contains(errObj.Message, "tool not found") {
		t.Errorf("Expected a tool-not-found message, got %q", errObj.Message)
	}

	var data map[string]string
	if err := json.Unmarshal(errObj.Data, &data); err != nil || data["tool"] != "bogus" {
		t.Errorf("Expected error data naming the tool, got %s", errObj.Data)
	}
}

func TestServerCallToolFailure(t *testing.T) {
	client := startWorker(t, &stubToolSet{failWith: errors.New("upstream unavailable")})

	_, err := client.Call(context.Background(), MethodCallTool, CallToolParams{
		Name:      "get-alerts",
		Arguments: map[string]any{"state": "CA"},
	})
	if err == nil {
		t.Fatal("Expected an error from a failing tool")
	}

	var errObj *jsonrpc.ErrorObject
	if !errors.As(err, &errObj) {
		t.Fatalf("Expected *jsonrpc.ErrorObject, got %T: %v", err, err)
	}
	if errObj.Code != jsonrpc.CodeInternalError {
		t.Errorf("Expected code %d, got %d", jsonrpc.CodeInternalError, errObj.Code)
	}
	if !strings.Contains(errObj.Message, "tool execution failed") {
		t.Errorf("Expected a tool-execution-failed message, got %q", errObj.Message)
	}
}

func TestServerCallToolRequiresName(t *testing.T) {
	client := startWorker(t, &stubToolSet{})

	_, err := client.Call(context.Background(), MethodCallTool, CallToolParams{})
	var errObj *jsonrpc.ErrorObject
	if !errors.As(err, &errObj) {
		t.Fatalf("Expected *jsonrpc.ErrorObject, got %v", err)
	}
	if errObj.Code != jsonrpc.CodeInvalidParams {
		t.Errorf("Expected code %d, got %d", jsonrpc.CodeInvalidParams, errObj.Code)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	client := startWorker(t, &stubToolSet{})

	_, err := client.Call(context.Background(), "resources/list", nil)
	var errObj *jsonrpc.ErrorObject
	if !errors.As(err, &errObj) {
		t.Fatalf("Expected *jsonrpc.ErrorObject, got %v", err)
	}
	if errObj.Code != jsonrpc.CodeMethodNotFound {
		t.Errorf("Expected code %d, got %d", jsonrpc.CodeMethodNotFound, errObj.Code)
	}

	// The connection keeps serving afterwards.
	if _, err := client.Call(context.Background(), MethodListTools, nil); err != nil {
		t.Errorf("Expected tools/list to succeed after unknown method, got %v", err)
	}
}

func TestCallToolResultText(t *testing.T) {
	res := &CallToolResult{Content: []Content{
		NewTextContent("part one "),
		{Type: "image"},
		NewTextContent("part two"),
	}}
	if res.Text() != "part one part two" {
		t.Errorf("Expected concatenated text blocks, got %q", res.Text())
	}
}
