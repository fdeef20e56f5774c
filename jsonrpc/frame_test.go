package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkReader delivers its payload in fixed-size pieces so frames cross
// read boundaries.
type chunkReader struct {
	data []byte
	size int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.size
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func TestConnSendReceive(t *testing.T) {
	var buf bytes.Buffer
	sender := NewConn(strings.NewReader(""), &buf)

	req := &Request{ID: json.RawMessage(`1`), Method: "tools/list"}
	if err := sender.Send(req); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
		t.Error("Expected frame to end with a newline")
	}
	if bytes.Count(buf.Bytes(), []byte("\n")) != 1 {
		t.Errorf("Expected exactly one newline in frame, got %d", bytes.Count(buf.Bytes(), []byte("\n")))
	}

	receiver := NewConn(bytes.NewReader(buf.Bytes()), io.Discard)
	msg, err := receiver.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	got, ok := msg.(*Request)
	if !ok {
		t.Fatalf("Expected *Request, got %T", msg)
	}
	if got.Method != "tools/list" {
		t.Errorf("Expected method 'tools/list', got '%s'", got.Method)
	}
}

func TestConnReassemblesSplitFrames(t *testing.T) {
	// Two frames delivered one byte at a time must come out as two
	// whole messages.
	var buf bytes.Buffer
	sender := NewConn(strings.NewReader(""), &buf)
	if err := sender.Send(&Request{ID: json.RawMessage(`1`), Method: "first"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := sender.Send(&Request{ID: json.RawMessage(`2`), Method: "second"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	receiver := NewConn(&chunkReader{data: buf.Bytes(), size: 1}, io.Discard)
	for _, want := range []string{"first", "second"} {
		msg, err := receiver.Receive()
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if got := msg.(*Request).Method; got != want {
			t.Errorf("Expected method '%s', got '%s'", want, got)
		}
	}
	if _, err := receiver.Receive(); err != io.EOF {
		t.Errorf("Expected io.EOF after last frame, got %v", err)
	}
}

func TestConnEscapesEmbeddedNewlines(t *testing.T) {
	// A newline inside a string value must be escaped by the encoder,
	// never emitted raw, or it would split the frame.
	var buf bytes.Buffer
	sender := NewConn(strings.NewReader(""), &buf)

	params, err := MarshalParams(map[string]string{"text": "line one\nline two"})
	if err != nil {
		t.Fatalf("MarshalParams failed: %v", err)
	}
	if err := sender.Send(&Request{ID: json.RawMessage(`1`), Method: "echo", Params: params}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	frame := buf.Bytes()
	if bytes.Count(frame, []byte("\n")) != 1 {
		t.Fatalf("Embedded newline leaked into the frame: %q", frame)
	}

	receiver := NewConn(bytes.NewReader(frame), io.Discard)
	msg, err := receiver.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(msg.(*Request).Params, &decoded); err != nil {
		t.Fatalf("Params did not round-trip: %v", err)
	}
	if decoded["text"] != "line one\nline two" {
		t.Errorf("Expected embedded newline preserved, got %q", decoded["text"])
	}
}

func TestConnSkipsBlankLines(t *testing.T) {
	input := "\n" + `{"jsonrpc": "2.0", "method": "ping", "id": 1}` + "\n\r\n"
	receiver := NewConn(strings.NewReader(input), io.Discard)

	msg, err := receiver.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if msg.(*Request).Method != "ping" {
		t.Errorf("Expected 'ping', got '%s'", msg.(*Request).Method)
	}
	if _, err := receiver.Receive(); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestConnFinalUnterminatedLine(t *testing.T) {
	// A stream that ends without a trailing newline still yields the
	// last frame.
	input := `{"jsonrpc": "2.0", "method": "ping", "id": 1}`
	receiver := NewConn(strings.NewReader(input), io.Discard)

	msg, err := receiver.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if msg.(*Request).Method != "ping" {
		t.Errorf("Expected 'ping', got '%s'", msg.(*Request).Method)
	}
}

func TestConnSurvivesMalformedFrame(t *testing.T) {
	input := "not json at all\n" + `{"jsonrpc": "2.0", "method": "ping", "id": 1}` + "\n"
	receiver := NewConn(strings.NewReader(input), io.Discard)

	_, err := receiver.Receive()
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("Expected ErrMalformed, got %v", err)
	}

	// The next frame is still readable.
	msg, err := receiver.Receive()
	if err != nil {
		t.Fatalf("Receive after malformed frame failed: %v", err)
	}
	if msg.(*Request).Method != "ping" {
		t.Errorf("Expected 'ping', got '%s'", msg.(*Request).Method)
	}
}
