package session

import (
	"os"
	"testing"
)

// chdirTemp moves the test into a scratch directory so session files
// land under a throwaway .toolwire/.
func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func TestNewSessionGeneratesName(t *testing.T) {
	chdirTemp(t)

	s, err := New("")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Name == "" {
		t.Error("Expected a generated session name")
	}
	if len(s.Messages) != 0 {
		t.Errorf("Expected an empty history, got %d messages", len(s.Messages))
	}
}

func TestSessionSaveLoadRoundTrip(t *testing.T) {
	chdirTemp(t)

	s, err := New("roundtrip")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.Mode = "auto"
	s.Toolset = "default"
	s.ToolVerbosity = "info"
	s.AddMessage(Message{Role: "user", Content: "What alerts are active in CA?"})
	s.AddMessage(Message{
		Role:    "assistant",
		Content: "Let me check.",
		ToolCalls: []ToolCall{
			{ToolCallID: "call_1", Name: "get-alerts", Args: map[string]any{"state": "CA"}},
		},
	})
	s.AddMessage(Message{
		Role:      "tool",
		Content:   "No active alerts for CA.",
		ToolCalls: []ToolCall{{ToolCallID: "call_1", Name: "get-alerts"}},
	})

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load("roundtrip")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Name != "roundtrip" {
		t.Errorf("Expected name 'roundtrip', got '%s'", loaded.Name)
	}
	if loaded.Mode != "auto" || loaded.Toolset != "default" || loaded.ToolVerbosity != "info" {
		t.Errorf("Session settings did not survive: %+v", loaded)
	}
	if len(loaded.Messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(loaded.Messages))
	}
	if loaded.Messages[1].ToolCalls[0].ToolCallID != "call_1" {
		t.Errorf("Tool call id did not survive: %+v", loaded.Messages[1])
	}
	if loaded.Messages[2].Role != "tool" {
		t.Errorf("Expected a tool turn, got role '%s'", loaded.Messages[2].Role)
	}

	// A loaded session can keep accumulating and saving.
	loaded.AddMessage(Message{Role: "assistant", Content: "All clear in CA."})
	if err := loaded.Save(); err != nil {
		t.Fatalf("Save after load failed: %v", err)
	}
	again, err := Load("roundtrip")
	if err != nil {
		t.Fatalf("Second load failed: %v", err)
	}
	if len(again.Messages) != 4 {
		t.Errorf("Expected 4 messages after resume, got %d", len(again.Messages))
	}
}

func TestLoadMissingSession(t *testing.T) {
	chdirTemp(t)

	if _, err := Load("no-such-session"); err == nil {
		t.Fatal("Expected an error loading a missing session")
	}
}
