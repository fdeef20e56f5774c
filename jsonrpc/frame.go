package jsonrpc

import (
	"bufio"
	"fmt"
	"io"
	"sync"
)

// Conn frames messages over a byte stream pair: one JSON object per
// newline-terminated line. Reads are buffered so a frame split across
// arbitrary byte boundaries is reassembled before parsing; writes are
// serialized under a mutex and flushed per frame so a reader can never
// observe a partial frame as complete.
type Conn struct {
	reader *bufio.Reader

	writeMu sync.Mutex
	writer  *bufio.Writer

	closers []io.Closer
}

// NewConn wraps a reader/writer pair. If either end also implements
// io.Closer it is closed by Close.
func NewConn(r io.Reader, w io.Writer) *Conn {
	c := &Conn{
		reader: bufio.NewReader(r),
		writer: bufio.NewWriter(w),
	}
	if wc, ok := w.(io.Closer); ok {
		c.closers = append(c.closers, wc)
	}
	if rc, ok := r.(io.Closer); ok {
		c.closers = append(c.closers, rc)
	}
	return c
}

// Send writes one framed message and flushes it.
func (c *Conn) Send(m Message) error {
	payload, err := Encode(m)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.writer.Write(payload); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := c.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write frame delimiter: %w", err)
	}
	return c.writer.Flush()
}

// Receive returns the next complete message. It reports io.EOF when the
// stream ends with no further data, and an error wrapping ErrMalformed
// for a line that is not a valid message; the Conn stays usable after a
// malformed frame, so the caller decides whether to skip or give up.
func (c *Conn) Receive() (Message, error) {
	for {
		line, err := c.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		payload := trimLine(line)
		if len(payload) == 0 {
			if err == io.EOF {
				return nil, io.EOF
			}
			// Blank line between frames; nothing to parse.
			continue
		}
		// A final unterminated line at EOF still counts as a whole
		// frame: the closed stream is the delimiter.
		return Decode(payload)
	}
}

// Close releases the underlying stream ends. Closing the write side of
// a worker channel signals end-of-input to the peer.
func (c *Conn) Close() error {
	var first error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func trimLine(line []byte) []byte {
	for len(line) > 0 {
		switch line[len(line)-1] {
		case '\n', '\r', ' ', '\t':
			line = line[:len(line)-1]
		default:
			return line
		}
	}
	return line
}
