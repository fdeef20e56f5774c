// Package llm abstracts the reasoning engine behind the conversation
// loop: given the conversation so far and the tool descriptors cached
// from the workers, a client returns the assistant's next turn, which
// may request tool invocations.
package llm

import (
	"context"
	"fmt"

	"github.com/toolwire/toolwire/mcp"
	"github.com/toolwire/toolwire/session"
)

// LLMClient is the interface for interacting with a Large Language Model.
type LLMClient interface {
	Chat(ctx context.Context, messages []session.Message, availableTools []mcp.Tool) (*session.Message, error)
}

// MockLLMClient is a scriptable stand-in for tests and offline runs.
// Each Chat call pops the next scripted reply; with an empty script it
// parrots the last message back.
type MockLLMClient struct {
	Script []*session.Message
	Calls  int
}

func (m *MockLLMClient) Chat(ctx context.Context, messages []session.Message, availableTools []mcp.Tool) (*session.Message, error) {
	m.Calls++
	if len(m.Script) > 0 {
		reply := m.Script[0]
		m.Script = m.Script[1:]
		return reply, nil
	}

	if len(messages) == 0 {
		return &session.Message{Role: "assistant", Content: "I am a mock LLM."}, nil
	}
	last := messages[len(messages)-1].Content
	return &session.Message{
		Role:    "assistant",
		Content: fmt.Sprintf("I am a mock LLM. You said: '%s'.", last),
	}, nil
}
