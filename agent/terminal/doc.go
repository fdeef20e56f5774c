// Package terminal implements the interactive command-line mode for
// the Toolwire agent.
//
// Users converse with the agent through text prompts; the terminal
// displays assistant replies, surfaces tool activity at the configured
// verbosity, asks for confirmation before tool execution in prompt
// mode, and ends the session on /quit, /exit or end of input.
package terminal
