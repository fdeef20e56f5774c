// Package rpc builds request/response semantics on a jsonrpc.Conn.
//
// The Client side correlates asynchronous responses with the calls that
// produced them: each outgoing request gets an id unique among the
// requests still in flight, a background reader drains the channel, and
// every pending call is resolved exactly once. A call resolves with
// its result, with the error the peer carried, with the caller's
// context error, or with ErrTransportClosed when the stream or worker
// dies. Responses may
// arrive in any order; correlation is by id, never by position.
//
// The Server side routes inbound requests by method name to registered
// handlers. A handler failure, panic or unknown method becomes an error
// response on that request's id; the serving loop itself never dies on
// a bad request. Notifications are routed the same way but produce no
// reply regardless of outcome.
package rpc
