package agent

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/toolwire/toolwire/config"
	"github.com/toolwire/toolwire/errors"
	"github.com/toolwire/toolwire/llm"
	"github.com/toolwire/toolwire/mcp"
	"github.com/toolwire/toolwire/session"
)

type Mode string

const (
	ModeAuto   Mode = "auto"
	ModePrompt Mode = "prompt"
)

type ToolVerbosity string

const (
	ToolVerbosityNone ToolVerbosity = "none"
	ToolVerbosityInfo ToolVerbosity = "info"
	ToolVerbosityAll  ToolVerbosity = "all"
)

// ProcessCallbacks lets an interaction mode customize how agent events
// are surfaced without owning the processing logic.
type ProcessCallbacks struct {
	OnAssistantMessage func(message string)
	OnToolCall         func(toolCall session.ToolCall)
	OnToolResult       func(toolCall session.ToolCall, result string)
	ShouldExecuteTool  func(toolCall session.ToolCall) bool
	OnWarning          func(warning string)
}

// Agent owns one conversation: the session state, the reasoning engine,
// and the worker connections whose tool snapshot the engine sees.
type Agent struct {
	Config    *config.Config
	Session   *session.Session
	LLMClient llm.LLMClient
	Mode      Mode
	Verbosity ToolVerbosity

	maxToolRounds int
	tools         []mcp.Tool
	routes        map[string]*mcp.Client
}

// New assembles an agent over the given worker connections. The tool
// descriptor snapshot is taken here, filtered by the selected toolset,
// and stays fixed for the session.
func New(cfg *config.Config, sess *session.Session, toolset string, mode Mode, client llm.LLMClient, verbosity ToolVerbosity, workers []*mcp.Client) (*Agent, error) {
	ts := cfg.GetToolset(toolset)

	a := &Agent{
		Config:        cfg,
		Session:       sess,
		LLMClient:     client,
		Mode:          mode,
		Verbosity:     verbosity,
		maxToolRounds: cfg.MaxToolRounds,
		routes:        make(map[string]*mcp.Client),
	}
	if a.maxToolRounds <= 0 {
		a.maxToolRounds = 1
	}

	for _, w := range workers {
		for _, tool := range w.Tools() {
			if !toolsetAllows(ts, w.Name, tool.Name) {
				continue
			}
			if _, taken := a.routes[tool.Name]; taken {
				return nil, errors.New("tool '%s' is exposed by more than one worker", tool.Name)
			}
			a.routes[tool.Name] = w
			a.tools = append(a.tools, tool)
		}
	}
	return a, nil
}

// toolsetAllows matches a tool against the toolset's glob patterns,
// both by bare name and by worker-qualified name.
func toolsetAllows(ts *config.Toolset, workerName, toolName string) bool {
	qualified := workerName + "." + toolName
	for _, pattern := range ts.Tools {
		if ok, err := doublestar.Match(pattern, toolName); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pattern, qualified); err == nil && ok {
			return true
		}
	}
	return false
}

// AvailableTools returns the agent's tool descriptor snapshot.
func (a *Agent) AvailableTools() []mcp.Tool {
	out := make([]mcp.Tool, len(a.tools))
	copy(out, a.tools)
	return out
}

// ProcessUserInput runs one query cycle: the user turn, up to the
// configured number of tool rounds, and the final synthesis turn.
func (a *Agent) ProcessUserInput(ctx context.Context, userInput string, callbacks ProcessCallbacks) error {
	a.Session.AddMessage(session.Message{Role: "user", Content: userInput})

	for round := 0; ; round++ {
		reply, err := a.LLMClient.Chat(ctx, a.Session.Messages, a.tools)
		if err != nil {
			return errors.Wrapf(err, "LLM chat failed")
		}
		a.Session.AddMessage(*reply)

		if reply.Content != "" && callbacks.OnAssistantMessage != nil {
			callbacks.OnAssistantMessage(reply.Content)
		}

		if len(reply.ToolCalls) == 0 {
			break
		}
		if round >= a.maxToolRounds {
			// The engine asked for another round past the configured
			// bound; its text stands as the final answer.
			if callbacks.OnWarning != nil {
				callbacks.OnWarning(fmt.Sprintf("ignoring %d tool call(s) beyond the %d-round limit", len(reply.ToolCalls), a.maxToolRounds))
			}
			break
		}

		// Each requested call is attempted in the order the engine
		// emitted it and its outcome recorded independently.
		for _, toolCall := range reply.ToolCalls {
			if callbacks.OnToolCall != nil {
				callbacks.OnToolCall(toolCall)
			}

			var result string
			if callbacks.ShouldExecuteTool != nil && !callbacks.ShouldExecuteTool(toolCall) {
				result = fmt.Sprintf("Tool call %s was declined by the user.", toolCall.Name)
			} else if output, err := a.executeToolCall(ctx, toolCall); err != nil {
				result = fmt.Sprintf("Error executing tool %s: %v", toolCall.Name, err)
			} else {
				result = output
			}

			if callbacks.OnToolResult != nil {
				callbacks.OnToolResult(toolCall, result)
			}
			a.Session.AddMessage(session.Message{
				Role:    "tool",
				Content: result,
				ToolCalls: []session.ToolCall{
					{ToolCallID: toolCall.ToolCallID, Name: toolCall.Name},
				},
			})
		}

		if err := a.Session.Save(); err != nil && callbacks.OnWarning != nil {
			callbacks.OnWarning(fmt.Sprintf("failed to save session after tools: %v", err))
		}
	}

	if err := a.Session.Save(); err != nil && callbacks.OnWarning != nil {
		callbacks.OnWarning(fmt.Sprintf("failed to save session: %v", err))
	}
	return nil
}

// executeToolCall routes one call to the worker that published the
// tool and flattens its content blocks to text.
func (a *Agent) executeToolCall(ctx context.Context, toolCall session.ToolCall) (string, error) {
	worker, ok := a.routes[toolCall.Name]
	if !ok {
		return "", errors.New("tool '%s' is not in the active toolset", toolCall.Name)
	}

	result, err := worker.CallTool(ctx, toolCall.Name, toolCall.Args)
	if err != nil {
		return "", err
	}
	if result.IsError {
		return "", errors.New("tool '%s' reported failure: %s", toolCall.Name, result.Text())
	}
	return result.Text(), nil
}
