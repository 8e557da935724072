package agentloop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aagt-run/aagtcore/internal/stream"
	"github.com/aagt-run/aagtcore/internal/tools"
	"github.com/aagt-run/aagtcore/pkg/models"
)

// toolOutcome is one tool call's resolved output, ready to be threaded
// back into history as a tool-result part.
type toolOutcome struct {
	call    stream.ToolCallDelta
	output  string
	isError bool
}

// dispatcher fans a batch of tool calls out across a bounded pool of
// goroutines, gating each one on the configured policy and approval
// handler before calling into the tool registry.
type dispatcher struct {
	registry       *tools.Registry
	policy         PolicyTable
	approve        ApprovalFunc
	maxConcurrency int
	maxOutputChars int
	events         *Broadcaster
}

// dispatchAll resolves every call in calls, preserving input order in the
// returned slice regardless of completion order.
func (d *dispatcher) dispatchAll(ctx context.Context, calls []stream.ToolCallDelta) []toolOutcome {
	if len(calls) == 0 {
		return nil
	}

	results := make([]toolOutcome, len(calls))
	sem := make(chan struct{}, max(1, d.maxConcurrency))
	var wg sync.WaitGroup

	for i, c := range calls {
		wg.Add(1)
		go func(idx int, call stream.ToolCallDelta) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = d.dispatchOne(ctx, call)
		}(i, c)
	}
	wg.Wait()
	return results
}

// dispatchOne runs the policy gate (Disabled / RequiresApproval / Auto)
// for a single call, then invokes the registry and truncates the output
// to the configured character budget.
func (d *dispatcher) dispatchOne(ctx context.Context, call stream.ToolCallDelta) toolOutcome {
	d.events.emit(models.AgentEvent{Type: models.EventToolCall, Time: time.Now(), Tool: call.Name, Input: string(call.Args)})

	switch d.policy.For(call.Name) {
	case PolicyDisabled:
		return errorOutcome(call, fmt.Sprintf("Error: tool %q is disabled by policy", call.Name))

	case PolicyRequiresApproval:
		d.events.emit(models.AgentEvent{Type: models.EventApprovalPending, Time: time.Now(), Tool: call.Name, Input: string(call.Args)})
		if d.approve == nil {
			return errorOutcome(call, fmt.Sprintf("Error: tool %q requires approval but no approval handler is configured", call.Name))
		}
		ok, err := d.approve(ctx, call.Name, call.Args)
		if err != nil {
			return errorOutcome(call, fmt.Sprintf("Error: approval check for %q failed: %v", call.Name, err))
		}
		if !ok {
			return errorOutcome(call, fmt.Sprintf("Error: tool %q was not approved", call.Name))
		}
	}

	out, err := d.registry.Call(ctx, call.Name, string(call.Args))
	if err != nil {
		return errorOutcome(call, fmt.Sprintf("Error: %v", err))
	}

	out = d.truncate(out)
	d.events.emit(models.AgentEvent{Type: models.EventToolResult, Time: time.Now(), Tool: call.Name, Output: out})
	return toolOutcome{call: call, output: out}
}

// truncate caps out at maxOutputChars, appending a human-readable notice
// stating the original and truncated sizes so the model (and a human
// reading the transcript) knows content was cut.
func (d *dispatcher) truncate(out string) string {
	if d.maxOutputChars <= 0 || len(out) <= d.maxOutputChars {
		return out
	}
	truncated := out[:d.maxOutputChars]
	return fmt.Sprintf("%s\n\n[truncated: %d chars -> %d chars]", truncated, len(out), d.maxOutputChars)
}

func errorOutcome(call stream.ToolCallDelta, msg string) toolOutcome {
	return toolOutcome{call: call, output: msg, isError: true}
}
