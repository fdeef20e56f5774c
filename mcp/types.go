// Package mcp defines the tool-protocol schema spoken between the host
// and its workers, the host-side client that drives a worker over
// stdio, and the worker-side server that exposes a tool set. The wire
// format is JSON-RPC 2.0, one message per line, with three methods:
// initialize, tools/list and tools/call.
package mcp

import "encoding/json"

// ProtocolVersion is echoed between host and worker during the
// initialize handshake.
const ProtocolVersion = "2024-11-05"

// Method names exposed by a worker.
const (
	MethodInitialize = "initialize"
	MethodListTools  = "tools/list"
	MethodCallTool   = "tools/call"
)

// Implementation identifies one end of a connection.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Tool describes one action a worker can perform: a registry-unique
// name, a human description and a JSON schema for its arguments.
// Descriptors are immutable once published; the host caches the listing
// once per connection.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Content is one typed block of a tool result. Only text blocks are
// produced by the shipped tools, but the shape leaves room for more.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// NewTextContent wraps s as a text content block.
func NewTextContent(s string) Content {
	return Content{Type: "text", Text: s}
}

// InitializeParams is sent by the host as the first request on a
// connection.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ClientInfo      Implementation `json:"clientInfo"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
}

// InitializeResult is the worker's half of the handshake.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      Implementation `json:"serverInfo"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
}

// ListToolsResult carries the worker's descriptor snapshot in
// registration order.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams names the tool to invoke and its arguments.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResult is the outcome of one invocation.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Text concatenates the text blocks of a result.
func (r *CallToolResult) Text() string {
	var out string
	for _, c := range r.Content {
		if c.Type == "text" {
			out += c.Text
		}
	}
	return out
}
