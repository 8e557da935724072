package models

import "testing"

func TestMessageText(t *testing.T) {
	m := &Message{Parts: []ContentPart{
		{Type: PartText, Text: "hello "},
		{Type: PartToolCall, ToolCallID: "c1", ToolName: "echo"},
		{Type: PartText, Text: "world"},
	}}
	if got := m.Text(); got != "hello world" {
		t.Errorf("Text() = %q, want %q", got, "hello world")
	}
}

func TestMessageToolCallsAndResults(t *testing.T) {
	m := &Message{Parts: []ContentPart{
		{Type: PartToolCall, ToolCallID: "c1", ToolName: "echo"},
		{Type: PartToolResult, ToolCallID: "c1", ToolResultText: "hi"},
	}}
	if len(m.ToolCalls()) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(m.ToolCalls()))
	}
	if len(m.ToolResults()) != 1 {
		t.Fatalf("expected 1 tool result, got %d", len(m.ToolResults()))
	}
}

func TestMessageValidate(t *testing.T) {
	bad := &Message{Parts: []ContentPart{{Type: PartToolResult}}}
	if err := bad.Validate(); err == nil {
		t.Error("expected validation error for tool-result with no call id")
	}

	good := &Message{Parts: []ContentPart{{Type: PartToolResult, ToolCallID: "c1"}}}
	if err := good.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestNewTextMessage(t *testing.T) {
	m := NewTextMessage(RoleUser, "hi")
	if m.Role != RoleUser || m.Text() != "hi" {
		t.Errorf("unexpected message: %+v", m)
	}
}
