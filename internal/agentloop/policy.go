package agentloop

import (
	"context"
	"encoding/json"
	"strings"
)

// Policy is the gate controlling whether a tool invocation runs.
type Policy string

const (
	// PolicyAuto runs the tool without any further check.
	PolicyAuto Policy = "auto"
	// PolicyRequiresApproval routes the call through the configured
	// ApprovalFunc before running it.
	PolicyRequiresApproval Policy = "requires_approval"
	// PolicyDisabled always rejects the call.
	PolicyDisabled Policy = "disabled"
)

// PolicyTable resolves a default policy plus per-tool overrides. A glob
// suffix of "*" on an override key matches any tool name sharing that
// prefix (e.g. "mcp:*").
type PolicyTable struct {
	Default   Policy
	Overrides map[string]Policy
}

// DefaultPolicyTable allows every tool to run without approval.
func DefaultPolicyTable() PolicyTable {
	return PolicyTable{Default: PolicyAuto}
}

// For resolves the effective policy for a tool name.
func (t PolicyTable) For(name string) Policy {
	for pattern, p := range t.Overrides {
		if matchesTool(pattern, name) {
			return p
		}
	}
	if t.Default == "" {
		return PolicyAuto
	}
	return t.Default
}

func matchesTool(pattern, name string) bool {
	if pattern == name {
		return true
	}
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// ApprovalFunc decides whether a pending tool call may run. A nil
// ApprovalFunc with a PolicyRequiresApproval tool always denies, since
// there is no handler to ask.
type ApprovalFunc func(ctx context.Context, tool string, args json.RawMessage) (bool, error)

// RejectAll is an ApprovalFunc that denies every request.
func RejectAll(ctx context.Context, tool string, args json.RawMessage) (bool, error) {
	return false, nil
}

// ApproveAll is an ApprovalFunc that allows every request, useful for
// tests and non-interactive automation that trusts its own tool set.
func ApproveAll(ctx context.Context, tool string, args json.RawMessage) (bool, error) {
	return true, nil
}
