// Package stream implements the streaming decoder (C2): consuming a
// provider's raw byte stream and emitting a lazy, finite, single-consumer
// sequence of typed deltas, independent of the concrete wire format.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrStreamInterrupted is returned when the underlying byte stream ends
// with malformed or incomplete framing.
var ErrStreamInterrupted = errors.New("stream interrupted")

// ErrBufferExceeded is returned when accumulated buffered bytes exceed the
// decoder's configured maximum before a complete event could be parsed.
var ErrBufferExceeded = errors.New("stream buffer exceeded maximum size")

// DeltaType discriminates a Delta's payload.
type DeltaType string

const (
	DeltaText            DeltaType = "text"
	DeltaToolCall        DeltaType = "tool_call"
	DeltaParallelCalls   DeltaType = "parallel_tool_calls"
	DeltaThought         DeltaType = "thought"
	DeltaDone            DeltaType = "done"
)

// ToolCallDelta is one complete tool call: id, name, and a structurally
// complete JSON arguments value. The decoder never emits a ToolCallDelta
// until the argument JSON has been fully accumulated.
type ToolCallDelta struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Delta is one event in the decoded stream. Ordering guarantee: for a
// given assistant turn, Text deltas for the same position arrive
// contiguously; Done terminates the stream exactly once.
type Delta struct {
	Type DeltaType

	Text string // DeltaText / DeltaThought

	ToolCall ToolCallDelta // DeltaToolCall

	// ParallelCalls maps provider-supplied position -> tool call, used
	// when a provider flushes multiple interleaved calls at once.
	ParallelCalls map[int]ToolCallDelta
}

// Decoder consumes provider bytes via Feed and returns the deltas that
// became decodable as a result. Close flushes any pending tool-call
// accumulators and returns the terminal Done delta (or an error if the
// stream ended mid-frame).
type Decoder interface {
	// Feed appends raw bytes from the wire and returns zero or more
	// newly-decodable deltas.
	Feed(chunk []byte) ([]Delta, error)

	// Close signals end of input and returns any final deltas
	// (including Done), or ErrStreamInterrupted if a call was left
	// incomplete.
	Close() ([]Delta, error)
}

// DefaultMaxBufferedBytes is the default bound on one decoder's
// buffered-but-undecoded byte count, per spec.md §4.2 invariant (c).
const DefaultMaxBufferedBytes = 8 << 20 // 8 MiB

// toolAccumulator collects a single tool call's streamed argument
// fragments until the provider signals the call is complete.
type toolAccumulator struct {
	id       string
	name     string
	argsBuf  []byte
	complete bool
}

func (a *toolAccumulator) finalize() (ToolCallDelta, error) {
	if len(a.argsBuf) == 0 {
		a.argsBuf = []byte("{}")
	}
	if !json.Valid(a.argsBuf) {
		return ToolCallDelta{}, fmt.Errorf("%w: tool call %q produced invalid JSON arguments", ErrStreamInterrupted, a.id)
	}
	return ToolCallDelta{ID: a.id, Name: a.name, Args: json.RawMessage(a.argsBuf)}, nil
}
