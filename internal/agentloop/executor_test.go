package agentloop

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aagt-run/aagtcore/internal/stream"
	"github.com/aagt-run/aagtcore/internal/tools"
)

func newTestDispatcher(t *testing.T, pt PolicyTable, approve ApprovalFunc, maxOutputChars int) *dispatcher {
	t.Helper()
	r := tools.NewRegistry()
	if err := r.Add(echoTool{}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return &dispatcher{
		registry:       r,
		policy:         pt,
		approve:        approve,
		maxConcurrency: 4,
		maxOutputChars: maxOutputChars,
		events:         NewBroadcaster(),
	}
}

func TestDispatcher_AutoRunsTool(t *testing.T) {
	d := newTestDispatcher(t, PolicyTable{Default: PolicyAuto}, nil, 0)
	out := d.dispatchAll(context.Background(), []stream.ToolCallDelta{
		{ID: "1", Name: "echo", Args: json.RawMessage(`"x"`)},
	})
	if len(out) != 1 || out[0].isError || out[0].output != `echoed: "x"` {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestDispatcher_DisabledRejectsWithoutCallingTool(t *testing.T) {
	d := newTestDispatcher(t, PolicyTable{Default: PolicyDisabled}, nil, 0)
	out := d.dispatchAll(context.Background(), []stream.ToolCallDelta{{ID: "1", Name: "echo"}})
	if !out[0].isError || !strings.Contains(out[0].output, "disabled") {
		t.Fatalf("expected disabled rejection, got %+v", out[0])
	}
}

func TestDispatcher_RequiresApprovalWithNoHandlerDenies(t *testing.T) {
	d := newTestDispatcher(t, PolicyTable{Default: PolicyRequiresApproval}, nil, 0)
	out := d.dispatchAll(context.Background(), []stream.ToolCallDelta{{ID: "1", Name: "echo"}})
	if !out[0].isError {
		t.Fatal("expected denial when no approval handler is configured")
	}
}

func TestDispatcher_RequiresApprovalGranted(t *testing.T) {
	d := newTestDispatcher(t, PolicyTable{Default: PolicyRequiresApproval}, ApproveAll, 0)
	out := d.dispatchAll(context.Background(), []stream.ToolCallDelta{
		{ID: "1", Name: "echo", Args: json.RawMessage(`"y"`)},
	})
	if out[0].isError {
		t.Fatalf("expected approved call to succeed, got %+v", out[0])
	}
}

func TestDispatcher_TruncatesLongOutput(t *testing.T) {
	d := newTestDispatcher(t, PolicyTable{Default: PolicyAuto}, nil, 5)
	out := d.dispatchAll(context.Background(), []stream.ToolCallDelta{
		{ID: "1", Name: "echo", Args: json.RawMessage(`"0123456789"`)},
	})
	if !strings.Contains(out[0].output, "truncated") {
		t.Fatalf("expected truncation notice, got %q", out[0].output)
	}
}

func TestDispatcher_PreservesInputOrder(t *testing.T) {
	d := newTestDispatcher(t, PolicyTable{Default: PolicyAuto}, nil, 0)
	calls := []stream.ToolCallDelta{
		{ID: "1", Name: "echo", Args: json.RawMessage(`"a"`)},
		{ID: "2", Name: "echo", Args: json.RawMessage(`"b"`)},
		{ID: "3", Name: "echo", Args: json.RawMessage(`"c"`)},
	}
	out := d.dispatchAll(context.Background(), calls)
	for i, o := range out {
		if o.call.ID != calls[i].ID {
			t.Fatalf("order mismatch at %d: got %s, want %s", i, o.call.ID, calls[i].ID)
		}
	}
}
