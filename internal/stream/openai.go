package stream

import "encoding/json"

// openaiChunk mirrors the subset of an OpenAI-style chat-completion chunk
// this decoder consumes; the rest of the payload is ignored.
type openaiChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// OpenAIDecoder decodes an OpenAI-family SSE chat-completion stream:
// `data: {...}` frames terminated by a literal `data: [DONE]`.
type OpenAIDecoder struct {
	framer *sseFramer
	calls  map[int]*toolAccumulator
	done   bool
}

// NewOpenAIDecoder constructs a decoder with the given maximum buffered
// byte count (0 selects DefaultMaxBufferedBytes).
func NewOpenAIDecoder(maxBufferedBytes int) *OpenAIDecoder {
	return &OpenAIDecoder{
		framer: newSSEFramer(maxBufferedBytes),
		calls:  make(map[int]*toolAccumulator),
	}
}

func (d *OpenAIDecoder) Feed(chunk []byte) ([]Delta, error) {
	events, err := d.framer.feed(chunk)
	if err != nil {
		return nil, err
	}
	var out []Delta
	for _, ev := range events {
		if ev == "[DONE]" {
			out = append(out, d.flushParallel()...)
			out = append(out, Delta{Type: DeltaDone})
			d.done = true
			continue
		}
		var c openaiChunk
		if err := json.Unmarshal([]byte(ev), &c); err != nil {
			return out, ErrStreamInterrupted
		}
		for _, choice := range c.Choices {
			if choice.Delta.Content != "" {
				out = append(out, Delta{Type: DeltaText, Text: choice.Delta.Content})
			}
			for _, tc := range choice.Delta.ToolCalls {
				acc, ok := d.calls[tc.Index]
				if !ok {
					acc = &toolAccumulator{}
					d.calls[tc.Index] = acc
				}
				if tc.ID != "" {
					acc.id = tc.ID
				}
				if tc.Function.Name != "" {
					acc.name = tc.Function.Name
				}
				acc.argsBuf = append(acc.argsBuf, tc.Function.Arguments...)
			}
			if choice.FinishReason != nil && *choice.FinishReason == "tool_calls" {
				deltas, err := d.flushCompleted()
				if err != nil {
					return out, err
				}
				out = append(out, deltas...)
			}
		}
	}
	return out, nil
}

func (d *OpenAIDecoder) flushCompleted() ([]Delta, error) {
	for _, acc := range d.calls {
		if _, err := acc.finalize(); err != nil {
			return nil, err
		}
	}
	return d.flushParallel(), nil
}

func (d *OpenAIDecoder) flushParallel() []Delta {
	if len(d.calls) == 0 {
		return nil
	}
	parallel := make(map[int]ToolCallDelta, len(d.calls))
	for idx, acc := range d.calls {
		tc, err := acc.finalize()
		if err != nil {
			continue
		}
		parallel[idx] = tc
	}
	d.calls = make(map[int]*toolAccumulator)
	if len(parallel) == 0 {
		return nil
	}
	return []Delta{{Type: DeltaParallelCalls, ParallelCalls: parallel}}
}

func (d *OpenAIDecoder) Close() ([]Delta, error) {
	if d.done {
		return nil, nil
	}
	out, err := d.flushCompleted()
	if err != nil {
		return nil, err
	}
	out = append(out, Delta{Type: DeltaDone})
	return out, nil
}
