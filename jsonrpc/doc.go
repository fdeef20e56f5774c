// Package jsonrpc implements the JSON-RPC 2.0 message model and the
// newline-delimited framing used on worker stdio channels.
//
// Messages are modeled as a closed union: *Request, *Response and
// *Notification are the only types satisfying the Message interface.
// Decode classifies an incoming payload into exactly one of them, so
// invalid shapes (a response carrying both a result and an error, or
// neither) are rejected at the boundary instead of leaking inward.
//
// A Conn turns a raw reader/writer pair into a sequence of whole
// messages: one JSON object per line, UTF-8, flushed after every send.
// JSON string escaping guarantees that a newline inside a payload value
// can never be mistaken for a frame boundary.
package jsonrpc
