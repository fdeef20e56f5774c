package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/toolwire/toolwire/jsonrpc"
)

// ErrTransportClosed resolves every call that was still pending when
// the channel or the worker behind it went away, and fails any call
// issued afterwards. Callers must treat it as a terminal condition for
// the connection, not for the tool that happened to be in flight.
var ErrTransportClosed = errors.New("rpc: transport closed")

// Client issues requests over a framed channel and matches the
// responses back to their callers. One Client is scoped to one
// connection; concurrent Call invocations are safe and may resolve in
// any order relative to each other.
type Client struct {
	conn  *jsonrpc.Conn
	trace func(string)

	mu       sync.Mutex
	nextID   int64
	pending  map[string]chan *jsonrpc.Response
	closed   bool
	closeErr error

	done chan struct{}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTrace routes protocol diagnostics (unmatched ids, malformed
// frames) to fn. Diagnostics never go to the channel itself.
func WithTrace(fn func(string)) ClientOption {
	return func(c *Client) {
		if fn != nil {
			c.trace = fn
		}
	}
}

// NewClient starts the background reader for conn and returns a client
// ready to issue calls.
func NewClient(conn *jsonrpc.Conn, opts ...ClientOption) *Client {
	c := &Client{
		conn:    conn,
		trace:   func(string) {},
		pending: make(map[string]chan *jsonrpc.Response),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c
}

// Call sends a request and suspends the caller until the matching
// response arrives, the context expires, or the transport closes. On a
// context deadline the pending entry is removed immediately; the
// request already written is not retracted, and a late response for it
// is discarded as unmatched.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	rawParams, err := jsonrpc.MarshalParams(params)
	if err != nil {
		return nil, err
	}

	id, ch, err := c.register()
	if err != nil {
		return nil, err
	}

	req := &jsonrpc.Request{ID: id, Method: method, Params: rawParams}
	if err := c.conn.Send(req); err != nil {
		c.unregister(string(id))
		return nil, fmt.Errorf("failed to send %q request: %w", method, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, c.transportErr()
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.unregister(string(id))
		return nil, ctx.Err()
	}
}

// Notify sends a notification and returns as soon as the frame is
// written; nothing is registered and no reply is expected.
func (c *Client) Notify(method string, params any) error {
	rawParams, err := jsonrpc.MarshalParams(params)
	if err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return c.transportErr()
	}
	return c.conn.Send(&jsonrpc.Notification{Method: method, Params: rawParams})
}

// Close tears down the channel. The reader observes the closed stream
// and fails all pending calls with ErrTransportClosed.
func (c *Client) Close() error {
	err := c.conn.Close()
	c.fail(nil)
	return err
}

// Done is closed once the reader has stopped and all pending calls are
// resolved.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// register allocates an id unique among outstanding requests and a
// one-shot resolution slot for it.
func (c *Client) register() (json.RawMessage, chan *jsonrpc.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, c.closeErrLocked()
	}
	c.nextID++
	id := json.RawMessage(strconv.FormatInt(c.nextID, 10))
	ch := make(chan *jsonrpc.Response, 1)
	c.pending[string(id)] = ch
	return id, ch, nil
}

func (c *Client) unregister(key string) {
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	for {
		msg, err := c.conn.Receive()
		if err != nil {
			if errors.Is(err, jsonrpc.ErrMalformed) {
				// A frame we cannot parse is a peer defect, not a
				// reason to drop every pending call.
				c.trace(fmt.Sprintf("readLoop: skipping malformed frame: %v", err))
				continue
			}
			if err != io.EOF {
				c.trace(fmt.Sprintf("readLoop: read error: %v", err))
			}
			c.fail(err)
			return
		}

		switch m := msg.(type) {
		case *jsonrpc.Response:
			c.resolve(m)
		case *jsonrpc.Request:
			// Server-to-client requests are outside this protocol
			// subset; answer so the peer does not hang.
			c.trace(fmt.Sprintf("readLoop: unexpected request %q from peer", m.Method))
			_ = c.conn.Send(&jsonrpc.Response{
				ID:    m.ID,
				Error: jsonrpc.Errorf(jsonrpc.CodeMethodNotFound, "client does not serve requests"),
			})
		case *jsonrpc.Notification:
			c.trace(fmt.Sprintf("readLoop: ignoring notification %q", m.Method))
		}
	}
}

// resolve fulfils the pending call matching resp, exactly once. An
// unmatched id is a protocol anomaly, logged and discarded.
func (c *Client) resolve(resp *jsonrpc.Response) {
	key := string(resp.ID)
	c.mu.Lock()
	ch, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()
	if !ok {
		c.trace(fmt.Sprintf("resolve: discarding response with unmatched id %s", key))
		return
	}
	ch <- resp
}

// fail marks the client closed and resolves every pending call with a
// transport failure.
func (c *Client) fail(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if cause != nil && cause != io.EOF {
		c.closeErr = cause
	}
	orphans := c.pending
	c.pending = make(map[string]chan *jsonrpc.Response)
	c.mu.Unlock()

	for _, ch := range orphans {
		close(ch)
	}
	close(c.done)
}

func (c *Client) transportErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErrLocked()
}

func (c *Client) closeErrLocked() error {
	if c.closeErr != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, c.closeErr)
	}
	return ErrTransportClosed
}
