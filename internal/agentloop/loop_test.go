package agentloop

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	agentcontext "github.com/aagt-run/aagtcore/internal/context"
	"github.com/aagt-run/aagtcore/internal/providers"
	"github.com/aagt-run/aagtcore/internal/stream"
	"github.com/aagt-run/aagtcore/internal/tools"
	"github.com/aagt-run/aagtcore/pkg/models"
)

type echoTool struct{}

func (echoTool) Name() string { return "echo" }
func (echoTool) Definition() tools.Definition {
	return tools.Definition{Name: "echo", Description: "echoes its input"}
}
func (echoTool) Call(ctx context.Context, args string) (string, error) {
	return "echoed: " + args, nil
}

// recordingProvider wraps a ScriptedProvider and keeps every request it
// is sent, so a test can inspect what the loop put in front of the model.
type recordingProvider struct {
	*providers.ScriptedProvider
	requests []providers.Request
}

func (p *recordingProvider) StreamCompletion(ctx context.Context, req providers.Request) (providers.StreamHandle, error) {
	p.requests = append(p.requests, req)
	return p.ScriptedProvider.StreamCompletion(ctx, req)
}

func newPacker(t *testing.T) *agentcontext.Packer {
	t.Helper()
	p, err := agentcontext.NewPacker(agentcontext.DefaultPackOptions())
	if err != nil {
		t.Fatalf("NewPacker: %v", err)
	}
	return p
}

func newRegistry(t *testing.T, ts ...tools.Tool) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	for _, tl := range ts {
		if err := r.Add(tl); err != nil {
			t.Fatalf("Add tool: %v", err)
		}
	}
	return r
}

func TestLoop_NoToolCallsReturnsTextImmediately(t *testing.T) {
	provider := &providers.ScriptedProvider{
		NameStr: "fake",
		Scripts: [][]stream.Delta{
			{{Type: stream.DeltaText, Text: "hello there"}, {Type: stream.DeltaDone}},
		},
	}

	loop := New(provider, newRegistry(t), newPacker(t), DefaultConfig())
	out, err := loop.Run(context.Background(), nil, models.NewTextMessage(models.RoleUser, "hi"), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "hello there" {
		t.Fatalf("want %q, got %q", "hello there", out)
	}
	if provider.Calls() != 1 {
		t.Fatalf("expected exactly one model round-trip, got %d", provider.Calls())
	}
}

func TestLoop_ToolCallThenFinalResponse(t *testing.T) {
	provider := &providers.ScriptedProvider{
		NameStr: "fake",
		Scripts: [][]stream.Delta{
			{
				{Type: stream.DeltaToolCall, ToolCall: stream.ToolCallDelta{ID: "1", Name: "echo", Args: json.RawMessage(`"ping"`)}},
				{Type: stream.DeltaDone},
			},
			{{Type: stream.DeltaText, Text: "done"}, {Type: stream.DeltaDone}},
		},
	}

	loop := New(provider, newRegistry(t, echoTool{}), newPacker(t), DefaultConfig())
	out, err := loop.Run(context.Background(), nil, models.NewTextMessage(models.RoleUser, "use echo"), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "done" {
		t.Fatalf("want %q, got %q", "done", out)
	}
	if provider.Calls() != 2 {
		t.Fatalf("expected two model round-trips, got %d", provider.Calls())
	}
}

func TestLoop_MaxStepsExhausted(t *testing.T) {
	script := []stream.Delta{
		{Type: stream.DeltaToolCall, ToolCall: stream.ToolCallDelta{ID: "1", Name: "echo", Args: json.RawMessage(`"x"`)}},
		{Type: stream.DeltaDone},
	}
	provider := &providers.ScriptedProvider{NameStr: "fake"}
	for i := 0; i < 3; i++ {
		provider.Scripts = append(provider.Scripts, script)
	}

	cfg := DefaultConfig()
	cfg.MaxSteps = 3
	loop := New(provider, newRegistry(t, echoTool{}), newPacker(t), cfg)

	_, err := loop.Run(context.Background(), nil, models.NewTextMessage(models.RoleUser, "loop forever"), nil)
	if !IsMaxSteps(err) {
		t.Fatalf("expected ErrMaxSteps, got %v", err)
	}
}

func TestLoop_DisabledToolYieldsErrorResult(t *testing.T) {
	provider := &recordingProvider{ScriptedProvider: &providers.ScriptedProvider{
		NameStr: "fake",
		Scripts: [][]stream.Delta{
			{
				{Type: stream.DeltaToolCall, ToolCall: stream.ToolCallDelta{ID: "1", Name: "echo", Args: json.RawMessage(`"x"`)}},
				{Type: stream.DeltaDone},
			},
			{{Type: stream.DeltaText, Text: "final"}, {Type: stream.DeltaDone}},
		},
	}}

	cfg := DefaultConfig()
	cfg.Policy = PolicyTable{Default: PolicyAuto, Overrides: map[string]Policy{"echo": PolicyDisabled}}
	loop := New(provider, newRegistry(t, echoTool{}), newPacker(t), cfg)

	sub, cancel := loop.Events().Subscribe()
	defer cancel()

	out, err := loop.Run(context.Background(), nil, models.NewTextMessage(models.RoleUser, "use echo"), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "final" {
		t.Fatalf("want %q, got %q", "final", out)
	}

	sawToolCall := false
drain:
	for {
		select {
		case ev := <-sub:
			if ev.Type == models.EventToolCall {
				sawToolCall = true
			}
		default:
			break drain
		}
	}
	if !sawToolCall {
		t.Fatal("expected a tool_call event to have been broadcast")
	}

	if len(provider.requests) != 2 {
		t.Fatalf("expected two model round-trips, got %d", len(provider.requests))
	}
	var results []models.ContentPart
	for _, m := range provider.requests[1].Messages {
		results = append(results, m.ToolResults()...)
	}
	if len(results) != 1 || !results[0].ToolResultError || !strings.Contains(results[0].ToolResultText, "disabled") {
		t.Fatalf("expected one error tool result naming the disabled policy, got %+v", results)
	}
}

func TestLoop_RequiresApprovalDenied(t *testing.T) {
	provider := &providers.ScriptedProvider{
		NameStr: "fake",
		Scripts: [][]stream.Delta{
			{
				{Type: stream.DeltaToolCall, ToolCall: stream.ToolCallDelta{ID: "1", Name: "echo", Args: json.RawMessage(`"x"`)}},
				{Type: stream.DeltaDone},
			},
			{{Type: stream.DeltaText, Text: "ok"}, {Type: stream.DeltaDone}},
		},
	}

	cfg := DefaultConfig()
	cfg.Policy = PolicyTable{Default: PolicyAuto, Overrides: map[string]Policy{"echo": PolicyRequiresApproval}}
	cfg.Approve = RejectAll
	loop := New(provider, newRegistry(t, echoTool{}), newPacker(t), cfg)

	out, err := loop.Run(context.Background(), nil, models.NewTextMessage(models.RoleUser, "use echo"), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "ok" {
		t.Fatalf("want %q, got %q", "ok", out)
	}
}

func TestLoop_EmptyHistoryRejected(t *testing.T) {
	loop := New(&providers.ScriptedProvider{}, newRegistry(t), newPacker(t), DefaultConfig())
	_, err := loop.Run(context.Background(), nil, nil, nil)
	if err != ErrEmptyHistory {
		t.Fatalf("expected ErrEmptyHistory, got %v", err)
	}
}
