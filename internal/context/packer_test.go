package context

import (
	"testing"

	"github.com/aagt-run/aagtcore/pkg/models"
)

func TestPacker_RespectsMessageCap(t *testing.T) {
	p, err := NewPacker(PackOptions{MaxMessages: 2, MaxTokens: 100000})
	if err != nil {
		t.Fatalf("NewPacker: %v", err)
	}
	history := []*models.Message{
		models.NewTextMessage(models.RoleUser, "one"),
		models.NewTextMessage(models.RoleAssistant, "two"),
		models.NewTextMessage(models.RoleUser, "three"),
	}
	incoming := models.NewTextMessage(models.RoleUser, "incoming")

	packed := p.Pack(history, incoming, nil)
	// MaxMessages=2 reserves one slot for incoming, leaving room for one
	// history message (the most recent).
	if len(packed) != 2 {
		t.Fatalf("expected 2 packed messages, got %d", len(packed))
	}
	if packed[0].Text() != "three" {
		t.Fatalf("expected newest history message selected, got %q", packed[0].Text())
	}
	if packed[1].Text() != "incoming" {
		t.Fatalf("expected incoming last, got %q", packed[1].Text())
	}
}

func TestPacker_SkipsSummaryMarkedMessages(t *testing.T) {
	p, err := NewPacker(DefaultPackOptions())
	if err != nil {
		t.Fatalf("NewPacker: %v", err)
	}
	marked := models.NewTextMessage(models.RoleAssistant, "old summary")
	marked.Metadata = map[string]any{SummaryMetadataKey: true}
	history := []*models.Message{marked, models.NewTextMessage(models.RoleUser, "kept")}

	packed := p.Pack(history, nil, nil)
	if len(packed) != 1 || packed[0].Text() != "kept" {
		t.Fatalf("expected summary-marked message filtered out, got %+v", packed)
	}
}

func TestPacker_TruncatesLongToolResults(t *testing.T) {
	p, err := NewPacker(PackOptions{MaxMessages: 10, MaxTokens: 100000, MaxToolResultTokens: 5})
	if err != nil {
		t.Fatalf("NewPacker: %v", err)
	}
	msg := &models.Message{Role: models.RoleTool, Parts: []models.ContentPart{
		{Type: models.PartToolResult, ToolCallID: "call_1", ToolResultText: "this is a very long tool result that exceeds the token budget by a wide margin"},
	}}
	packed := p.Pack([]*models.Message{msg}, nil, nil)
	if len(packed) != 1 {
		t.Fatalf("expected 1 packed message, got %d", len(packed))
	}
	results := packed[0].ToolResults()
	if len(results) != 1 {
		t.Fatalf("expected 1 tool result, got %d", len(results))
	}
	if results[0].ToolResultText == msg.Parts[0].ToolResultText {
		t.Fatal("expected tool result to be truncated")
	}
}
