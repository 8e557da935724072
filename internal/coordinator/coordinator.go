// Package coordinator implements the multi-agent registry and routing
// contract (C13): a shared-owned mapping from role label to agent, directed
// and broadcast message routing, and bounded multi-role orchestration.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrAgentCommunication is returned when a directed message names a role
// that is not registered, or a broadcast finds no responder.
var ErrAgentCommunication = errors.New("coordinator: agent communication failed")

// ErrAgentCoordination is returned by Orchestrate when a workflow is
// rejected (a role denies the task) or its round budget is exhausted.
var ErrAgentCoordination = errors.New("coordinator: agent coordination failed")

// MessageType discriminates the kind of message passed between roles.
type MessageType string

const (
	MsgRequest  MessageType = "request"
	MsgResponse MessageType = "response"
	MsgInfo     MessageType = "info"
	MsgApproval MessageType = "approval"
	MsgDenial   MessageType = "denial"
	MsgHandover MessageType = "handover"
)

// Message is one unit of inter-agent communication. To is empty for a
// broadcast. Type Handover responses should also set To to name the
// handover target.
type Message struct {
	From    string
	To      string
	Content string
	Type    MessageType
}

// Agent is the capability set the coordinator dispatches to: a role label
// and a single message-processing operation.
type Agent interface {
	Role() string
	Process(ctx context.Context, msg Message) (Message, error)
}

// Coordinator is a shared-owned registry of agents addressed by role.
type Coordinator struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// New returns an empty coordinator.
func New() *Coordinator {
	return &Coordinator{agents: make(map[string]Agent)}
}

// Register adds or replaces the agent for its own Role().
func (c *Coordinator) Register(a Agent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agents[a.Role()] = a
}

// Get returns the agent registered under role, if any.
func (c *Coordinator) Get(role string) (Agent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.agents[role]
	return a, ok
}

// Roles returns every registered role, sorted for deterministic iteration.
func (c *Coordinator) Roles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	roles := make([]string, 0, len(c.agents))
	for r := range c.agents {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// Route dispatches msg. A directed message (To non-empty) goes only to
// that role, failing with ErrAgentCommunication if it is not registered.
// A broadcast message (To empty) goes to every registered role except
// From, and Route returns the first non-empty response.
func (c *Coordinator) Route(ctx context.Context, msg Message) (Message, error) {
	if msg.To != "" {
		a, ok := c.Get(msg.To)
		if !ok {
			return Message{}, fmt.Errorf("%w: role %q not registered", ErrAgentCommunication, msg.To)
		}
		return a.Process(ctx, msg)
	}

	for _, role := range c.Roles() {
		if role == msg.From {
			continue
		}
		a, ok := c.Get(role)
		if !ok {
			continue
		}
		resp, err := a.Process(ctx, msg)
		if err != nil {
			continue
		}
		if resp.Content != "" {
			return resp, nil
		}
	}
	return Message{}, fmt.Errorf("%w: no role produced a response", ErrAgentCommunication)
}

// Orchestrate drives task through an ordered workflow of roles. The first
// role processes the raw task. Each subsequent role receives a directed
// Request (or Approval for the workflow's last role) carrying the previous
// result. A Denial response aborts the run. A Handover response pivots the
// current step to its named target without advancing the workflow index;
// maxRounds bounds total steps including handovers (0 uses a default of
// twice the workflow length).
func (c *Coordinator) Orchestrate(ctx context.Context, task string, workflow []string, maxRounds int) (string, error) {
	if len(workflow) == 0 {
		return "", fmt.Errorf("%w: empty workflow", ErrAgentCoordination)
	}
	if maxRounds <= 0 {
		maxRounds = len(workflow) * 2
	}

	first, ok := c.Get(workflow[0])
	if !ok {
		return "", fmt.Errorf("%w: role %q not registered", ErrAgentCommunication, workflow[0])
	}
	resp, err := first.Process(ctx, Message{Content: task, Type: MsgRequest})
	if err != nil {
		return "", err
	}
	if resp.Type == MsgDenial {
		return "", fmt.Errorf("%w: role %q denied the task", ErrAgentCoordination, workflow[0])
	}

	result := resp.Content
	prevRole := workflow[0]

	idx := 1
	if idx >= len(workflow) {
		return result, nil
	}
	pending := workflow[idx]

	rounds := 0
	for idx < len(workflow) {
		rounds++
		if rounds > maxRounds {
			return "", fmt.Errorf("%w: exceeded max rounds (%d)", ErrAgentCoordination, maxRounds)
		}

		msgType := MsgRequest
		if idx == len(workflow)-1 {
			msgType = MsgApproval
		}

		resp, err := c.Route(ctx, Message{From: prevRole, To: pending, Content: result, Type: msgType})
		if err != nil {
			return "", err
		}

		switch resp.Type {
		case MsgDenial:
			return "", fmt.Errorf("%w: role %q denied the task", ErrAgentCoordination, pending)
		case MsgHandover:
			if resp.To == "" {
				return "", fmt.Errorf("%w: role %q issued a handover with no target", ErrAgentCoordination, pending)
			}
			result = resp.Content
			prevRole = pending
			pending = resp.To
			// Handovers do not advance idx: the workflow step is retried
			// against the new target.
		default:
			result = resp.Content
			prevRole = pending
			idx++
			if idx < len(workflow) {
				pending = workflow[idx]
			}
		}
	}

	return result, nil
}
