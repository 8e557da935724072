// Package models defines the wire- and memory-level data model shared by
// every subsystem: messages, tool definitions, documents, and the typed
// event envelopes the agent loop broadcasts.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role indicates the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType discriminates a ContentPart's shape. It is marshalled as the
// part's explicit "type" field; a part's type is not inferred from which
// fields are present.
type PartType string

const (
	PartText       PartType = "text"
	PartImage      PartType = "image"
	PartToolCall   PartType = "tool_call"
	PartToolResult PartType = "tool_result"
)

// ContentPart is one element of a Message's content. Exactly one of the
// type-specific fields is populated, selected by Type.
type ContentPart struct {
	Type PartType `json:"type"`

	// Text carries PartText content.
	Text string `json:"text,omitempty"`

	// Image carries PartImage content: either a base64 payload or a URL,
	// never both.
	ImageData     string `json:"image_data,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`
	ImageMimeType string `json:"image_mime_type,omitempty"`

	// ToolCall carries PartToolCall content.
	ToolCallID   string          `json:"tool_call_id,omitempty"`
	ToolName     string          `json:"tool_name,omitempty"`
	ToolArgsJSON json.RawMessage `json:"tool_args,omitempty"`

	// ToolResult carries PartToolResult content; ToolCallID above is
	// reused as the referenced call's id.
	ToolResultText  string `json:"tool_result_text,omitempty"`
	ToolResultError bool   `json:"tool_result_error,omitempty"`
}

// Message is a tuple of (role, content, optional name). Content is always
// an ordered list of parts; a plain text message is a single text part
// (see NewTextMessage).
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Name      string         `json:"name,omitempty"`
	Parts     []ContentPart  `json:"parts"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewTextMessage builds a single-part text message.
func NewTextMessage(role Role, text string) *Message {
	return &Message{
		Role:      role,
		Parts:     []ContentPart{{Type: PartText, Text: text}},
		CreatedAt: time.Now(),
	}
}

// Text returns the concatenation of this message's text parts only.
// Tool-call and tool-result parts are never rendered here — callers that
// need the tool surface must inspect Parts directly.
func (m *Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// ToolCalls returns every tool-call part in this message, in order.
func (m *Message) ToolCalls() []ContentPart {
	var out []ContentPart
	for _, p := range m.Parts {
		if p.Type == PartToolCall {
			out = append(out, p)
		}
	}
	return out
}

// ToolResults returns every tool-result part in this message, in order.
func (m *Message) ToolResults() []ContentPart {
	var out []ContentPart
	for _, p := range m.Parts {
		if p.Type == PartToolResult {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the structural invariant that every tool-result part
// names a non-empty referenced call id. Cross-message referential
// integrity (the call id must appear in a prior assistant message) is the
// context manager's concern, not this type's.
func (m *Message) Validate() error {
	for i, p := range m.Parts {
		if p.Type == PartToolResult && p.ToolCallID == "" {
			return fmt.Errorf("message %s: part %d is a tool-result with no referenced call id", m.ID, i)
		}
		if p.Type == PartToolCall && p.ToolCallID == "" {
			return fmt.Errorf("message %s: part %d is a tool-call with no call id", m.ID, i)
		}
	}
	return nil
}
