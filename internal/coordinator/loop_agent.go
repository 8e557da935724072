package coordinator

import (
	"context"

	"github.com/aagt-run/aagtcore/internal/agentloop"
	"github.com/aagt-run/aagtcore/pkg/models"
)

// LoopAgent adapts an agentloop.Loop into the coordinator's Agent
// capability: every inbound Message is run as one user turn, and the
// loop's final text becomes the reply's Content.
type LoopAgent struct {
	role string
	loop *agentloop.Loop
}

// NewLoopAgent binds a role label to a reasoning loop.
func NewLoopAgent(role string, loop *agentloop.Loop) *LoopAgent {
	return &LoopAgent{role: role, loop: loop}
}

func (a *LoopAgent) Role() string { return a.role }

// Process turns msg into a user message, runs the underlying loop, and
// wraps the result as a Response (or a Denial if the loop itself errors,
// so a workflow step surfaces the failure instead of silently stalling).
func (a *LoopAgent) Process(ctx context.Context, msg Message) (Message, error) {
	incoming := models.NewTextMessage(models.RoleUser, msg.Content)
	text, err := a.loop.Run(ctx, nil, incoming, nil)
	if err != nil {
		return Message{From: a.role, To: msg.From, Type: MsgDenial, Content: err.Error()}, nil
	}
	return Message{From: a.role, To: msg.From, Type: MsgResponse, Content: text}, nil
}
