package models

import "time"

// AgentEventType identifies the kind of event the agent loop (C11)
// broadcasts. The set is exactly the one spec.md §4.11 names.
type AgentEventType string

const (
	EventThinking        AgentEventType = "thinking"
	EventToolCall        AgentEventType = "tool_call"
	EventApprovalPending AgentEventType = "approval_pending"
	EventToolResult      AgentEventType = "tool_result"
	EventResponse        AgentEventType = "response"
	EventError           AgentEventType = "error"
)

// AgentEvent is one entry in the agent loop's broadcast event stream.
// Exactly one payload field is populated for a given Type; the broadcast
// channel has a fixed capacity and drops the oldest event for a slow
// subscriber rather than blocking the loop (spec.md §5 back-pressure).
type AgentEvent struct {
	Type AgentEventType `json:"type"`
	Time time.Time      `json:"time"`

	// Thinking
	Prompt string `json:"prompt,omitempty"`

	// ToolCall / ApprovalPending / ToolResult
	Tool   string `json:"tool,omitempty"`
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`

	// Response
	Content string `json:"content,omitempty"`

	// Error
	Message string `json:"message,omitempty"`
}
