package coordinator

import (
	"context"
	"testing"

	agentcontext "github.com/aagt-run/aagtcore/internal/context"
	"github.com/aagt-run/aagtcore/internal/agentloop"
	"github.com/aagt-run/aagtcore/internal/providers"
	"github.com/aagt-run/aagtcore/internal/stream"
	"github.com/aagt-run/aagtcore/internal/tools"
)

func TestLoopAgent_ProcessRunsUnderlyingLoop(t *testing.T) {
	provider := &providers.ScriptedProvider{
		NameStr: "fake",
		Scripts: [][]stream.Delta{
			{{Type: stream.DeltaText, Text: "summary complete"}, {Type: stream.DeltaDone}},
		},
	}
	packer, err := agentcontext.NewPacker(agentcontext.DefaultPackOptions())
	if err != nil {
		t.Fatalf("NewPacker: %v", err)
	}
	loop := agentloop.New(provider, tools.NewRegistry(), packer, agentloop.DefaultConfig())

	agent := NewLoopAgent("summarizer", loop)
	resp, err := agent.Process(context.Background(), Message{From: "scheduler", Content: "summarize this doc"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.Type != MsgResponse || resp.Content != "summary complete" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
