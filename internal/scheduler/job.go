package scheduler

import "time"

// PayloadKind discriminates what a Job does when it fires.
type PayloadKind string

const (
	PayloadAgentTurn    PayloadKind = "agent_turn"
	PayloadSummarizeDoc PayloadKind = "summarize_doc"
)

// AgentTurnPayload routes a single prompt to a coordinator role.
type AgentTurnPayload struct {
	Role   string
	Prompt string
}

// SummarizeDocPayload asks an agent to summarize Content and writes the
// result back onto the cold-store document at Collection/Path.
type SummarizeDocPayload struct {
	Collection string
	Path       string
	Content    string
}

// Payload is the tagged union a Job carries. Exactly one of AgentTurn or
// SummarizeDoc is populated, selected by Kind.
type Payload struct {
	Kind         PayloadKind
	AgentTurn    AgentTurnPayload
	SummarizeDoc SummarizeDocPayload
}

// NewAgentTurnPayload builds a Payload that dispatches a prompt to role.
func NewAgentTurnPayload(role, prompt string) Payload {
	return Payload{Kind: PayloadAgentTurn, AgentTurn: AgentTurnPayload{Role: role, Prompt: prompt}}
}

// NewSummarizeDocPayload builds a Payload that summarizes content and
// stores the summary against collection/path.
func NewSummarizeDocPayload(collection, path, content string) Payload {
	return Payload{Kind: PayloadSummarizeDoc, SummarizeDoc: SummarizeDocPayload{
		Collection: collection,
		Path:       path,
		Content:    content,
	}}
}

// Job is a named, scheduled unit of work. Jobs are independent of one
// another: the scheduler gives no cross-job ordering guarantee.
type Job struct {
	ID       string
	Name     string
	Schedule Schedule
	Payload  Payload

	nextRun   time.Time
	cancelled bool
}

// NextRun reports when this job will next fire, if it still has a
// pending fire.
func (j *Job) NextRun() (time.Time, bool) {
	if j.cancelled || j.nextRun.IsZero() {
		return time.Time{}, false
	}
	return j.nextRun, true
}
