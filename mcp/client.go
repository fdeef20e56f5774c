package mcp

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/toolwire/toolwire/errors"
	"github.com/toolwire/toolwire/jsonrpc"
	"github.com/toolwire/toolwire/proc"
	"github.com/toolwire/toolwire/rpc"
)

const terminateGrace = 5 * time.Second

// Client is the host's handle on one worker connection: the spawned
// process, the correlating RPC client over its stdio, and the tool
// descriptor snapshot taken at connect time.
type Client struct {
	Name string

	worker *proc.Worker
	rpc    *rpc.Client
	tools  []Tool
	server Implementation
}

// ConnectOption configures a connection.
type ConnectOption func(*connectConfig)

type connectConfig struct {
	args   []string
	stderr io.Writer
	trace  func(string)
}

// WithArgs forwards extra arguments to the worker command line.
func WithArgs(args ...string) ConnectOption {
	return func(c *connectConfig) { c.args = args }
}

// WithStderr redirects the worker's diagnostic stream. It defaults to
// the host's own stderr.
func WithStderr(w io.Writer) ConnectOption {
	return func(c *connectConfig) { c.stderr = w }
}

// WithTrace routes host-side protocol diagnostics to fn.
func WithTrace(fn func(string)) ConnectOption {
	return func(c *connectConfig) {
		if fn != nil {
			c.trace = fn
		}
	}
}

// Connect spawns the worker for scriptPath, performs the initialize
// handshake and caches the tools/list snapshot. The worker is torn down
// again if any step fails. ctx bounds only the handshake; the worker
// itself lives until Close.
func Connect(ctx context.Context, name, scriptPath string, opts ...ConnectOption) (*Client, error) {
	cfg := connectConfig{stderr: os.Stderr, trace: func(string) {}}
	for _, opt := range opts {
		opt(&cfg)
	}

	worker, err := proc.Spawn(scriptPath, cfg.args, cfg.stderr)
	if err != nil {
		return nil, err
	}

	conn := jsonrpc.NewConn(worker.Stdout(), worker.Stdin())
	rpcClient := rpc.NewClient(conn, rpc.WithTrace(cfg.trace))

	// Worker death surfaces as end-of-stream to the reader, which
	// fails pending calls on its own; closing here just makes sure the
	// pipes are released promptly too.
	go func() {
		<-worker.Done()
		rpcClient.Close()
	}()

	client := &Client{Name: name, worker: worker, rpc: rpcClient}
	if err := client.handshake(ctx); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to connect to worker '%s'", name)
	}
	return client, nil
}

func (c *Client) handshake(ctx context.Context) error {
	raw, err := c.rpc.Call(ctx, MethodInitialize, InitializeParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      Implementation{Name: "toolwire", Version: "0.3.0"},
	})
	if err != nil {
		return errors.Wrapf(err, "initialize failed")
	}
	var initRes InitializeResult
	if err := json.Unmarshal(raw, &initRes); err != nil {
		return errors.Wrapf(err, "invalid initialize result")
	}
	c.server = initRes.ServerInfo

	raw, err = c.rpc.Call(ctx, MethodListTools, nil)
	if err != nil {
		return errors.Wrapf(err, "tools/list failed")
	}
	var listRes ListToolsResult
	if err := json.Unmarshal(raw, &listRes); err != nil {
		return errors.Wrapf(err, "invalid tools/list result")
	}
	c.tools = listRes.Tools
	return nil
}

// Tools returns the descriptor snapshot taken at connect time. The
// snapshot is read-only for the life of the connection.
func (c *Client) Tools() []Tool {
	out := make([]Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// ServerInfo reports the worker's self-identification from initialize.
func (c *Client) ServerInfo() Implementation { return c.server }

// Alive reports whether the worker process is still running.
func (c *Client) Alive() bool { return c.worker.Alive() }

// CallTool invokes a named tool on the worker and waits for its result.
// A protocol-level error from the worker (unknown tool, handler
// failure) comes back as the *jsonrpc.ErrorObject the worker sent; a
// dead worker comes back as rpc.ErrTransportClosed.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallToolResult, error) {
	raw, err := c.rpc.Call(ctx, MethodCallTool, CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	var res CallToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, errors.Wrapf(err, "invalid tools/call result for '%s'", name)
	}
	return &res, nil
}

// Close fails any outstanding calls and terminates the worker, waiting
// a bounded time before forcing it.
func (c *Client) Close() error {
	c.rpc.Close()
	ctx, cancel := context.WithTimeout(context.Background(), terminateGrace)
	defer cancel()
	return c.worker.Terminate(ctx)
}
