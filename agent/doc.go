// Package agent drives the conversation loop between the user, the
// reasoning engine and the connected tool workers.
//
// One user query runs as: append the user turn, ask the LLM with the
// cached tool descriptor snapshot, execute any requested tool calls in
// the order the engine emitted them over the worker connections, record
// each outcome as its own tool turn (a failed call does not abort the
// rest of the batch), then ask the LLM once more to synthesize the
// final answer. The number of tool rounds honored per query is bounded
// by configuration; the default is one round plus the synthesis turn.
//
// The ProcessCallbacks structure lets an interaction mode (the terminal
// REPL, or anything else driving the agent) decide how assistant text,
// tool activity and confirmations are surfaced, while the processing
// logic stays shared.
package agent
