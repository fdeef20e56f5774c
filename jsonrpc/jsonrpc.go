package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version stamped on every outgoing message.
const Version = "2.0"

// JSON-RPC 2.0 error codes used by this implementation. Tool-level
// failures (tool not found, tool execution failure) share
// CodeInternalError and carry the distinguishing detail in the error
// message and data.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// ErrMalformed marks a payload that could not be classified as a valid
// JSON-RPC message. It is a per-frame condition: the channel that
// produced it remains usable.
var ErrMalformed = errors.New("malformed JSON-RPC message")

// Message is the closed union of JSON-RPC message kinds. Only *Request,
// *Response and *Notification satisfy it.
type Message interface {
	message()
}

// Request is a method invocation expecting exactly one Response with a
// matching ID. The ID is kept as raw JSON so string and integer ids
// round-trip byte-exact for correlation.
type Request struct {
	ID     json.RawMessage
	Method string
	Params json.RawMessage
}

// Notification is a method invocation that expects no reply.
type Notification struct {
	Method string
	Params json.RawMessage
}

// Response answers exactly one prior Request. Exactly one of Result and
// Error is set; Decode enforces this and Encode emits "result": null
// for a successful response with no payload.
type Response struct {
	ID     json.RawMessage
	Result json.RawMessage
	Error  *ErrorObject
}

func (*Request) message()      {}
func (*Notification) message() {}
func (*Response) message()     {}

// ErrorObject is the JSON-RPC error payload. It implements error so a
// carried failure can propagate directly to a caller.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ErrorObject) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Errorf builds an ErrorObject with a formatted message and no data.
func Errorf(code int, format string, a ...any) *ErrorObject {
	return &ErrorObject{Code: code, Message: fmt.Sprintf(format, a...)}
}

// wireMessage is the loose on-the-wire shape shared by all three
// message kinds. Raw fields stay nil when absent, which lets Decode
// distinguish a missing "result" from an explicit null.
type wireMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

var nullID = json.RawMessage("null")

func idPresent(id json.RawMessage) bool {
	return len(id) > 0 && !bytes.Equal(id, nullID)
}

// Encode serializes a message to a single JSON object without a
// trailing delimiter.
func Encode(m Message) ([]byte, error) {
	w := wireMessage{JSONRPC: Version}
	switch msg := m.(type) {
	case *Request:
		if !idPresent(msg.ID) {
			return nil, fmt.Errorf("request %q has no id", msg.Method)
		}
		w.ID = msg.ID
		w.Method = msg.Method
		w.Params = msg.Params
	case *Notification:
		w.Method = msg.Method
		w.Params = msg.Params
	case *Response:
		if (msg.Result != nil) == (msg.Error != nil) {
			return nil, fmt.Errorf("response must carry exactly one of result or error")
		}
		w.ID = msg.ID
		if len(w.ID) == 0 {
			w.ID = nullID
		}
		w.Result = msg.Result
		w.Error = msg.Error
	default:
		return nil, fmt.Errorf("unknown message type %T", m)
	}
	return json.Marshal(w)
}

// Decode parses a single frame payload and classifies it into exactly
// one message kind. Any payload that fits none of them is reported as
// ErrMalformed with detail.
func Decode(payload []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.JSONRPC != Version {
		return nil, fmt.Errorf("%w: jsonrpc version %q", ErrMalformed, w.JSONRPC)
	}
	switch {
	case w.Method != "" && w.Result == nil && w.Error == nil:
		if idPresent(w.ID) {
			return &Request{ID: w.ID, Method: w.Method, Params: w.Params}, nil
		}
		return &Notification{Method: w.Method, Params: w.Params}, nil
	case w.Method == "" && len(w.ID) > 0:
		if (w.Result != nil) == (w.Error != nil) {
			return nil, fmt.Errorf("%w: response with both or neither of result and error", ErrMalformed)
		}
		return &Response{ID: w.ID, Result: w.Result, Error: w.Error}, nil
	default:
		return nil, fmt.Errorf("%w: neither request, notification nor response", ErrMalformed)
	}
}

// MarshalParams converts a params value into raw JSON for embedding in
// a Request or Notification. A nil value yields nil (params omitted).
func MarshalParams(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize params: %w", err)
	}
	return b, nil
}
