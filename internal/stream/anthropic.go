package stream

import "encoding/json"

// anthropicEvent mirrors the subset of Anthropic-style content-block SSE
// events this decoder consumes.
type anthropicEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`

	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`

	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`         // text_delta
		PartialJSON string `json:"partial_json"` // input_json_delta
		Thinking    string `json:"thinking"`      // thinking_delta
	} `json:"delta"`
}

// AnthropicDecoder decodes Anthropic-style content-block SSE events:
// content_block_start / content_block_delta / content_block_stop /
// message_stop.
type AnthropicDecoder struct {
	framer *sseFramer
	calls  map[int]*toolAccumulator
	done   bool
}

func NewAnthropicDecoder(maxBufferedBytes int) *AnthropicDecoder {
	return &AnthropicDecoder{
		framer: newSSEFramer(maxBufferedBytes),
		calls:  make(map[int]*toolAccumulator),
	}
}

func (d *AnthropicDecoder) Feed(chunk []byte) ([]Delta, error) {
	events, err := d.framer.feed(chunk)
	if err != nil {
		return nil, err
	}
	var out []Delta
	for _, ev := range events {
		var e anthropicEvent
		if err := json.Unmarshal([]byte(ev), &e); err != nil {
			return out, ErrStreamInterrupted
		}
		switch e.Type {
		case "content_block_start":
			if e.ContentBlock.Type == "tool_use" {
				d.calls[e.Index] = &toolAccumulator{id: e.ContentBlock.ID, name: e.ContentBlock.Name}
			}
		case "content_block_delta":
			switch e.Delta.Type {
			case "text_delta":
				out = append(out, Delta{Type: DeltaText, Text: e.Delta.Text})
			case "thinking_delta":
				out = append(out, Delta{Type: DeltaThought, Text: e.Delta.Thinking})
			case "input_json_delta":
				if acc, ok := d.calls[e.Index]; ok {
					acc.argsBuf = append(acc.argsBuf, e.Delta.PartialJSON...)
				}
			}
		case "content_block_stop":
			if acc, ok := d.calls[e.Index]; ok {
				tc, ferr := acc.finalize()
				if ferr != nil {
					return out, ferr
				}
				delete(d.calls, e.Index)
				out = append(out, Delta{Type: DeltaToolCall, ToolCall: tc})
			}
		case "message_stop":
			out = append(out, Delta{Type: DeltaDone})
			d.done = true
		}
	}
	return out, nil
}

func (d *AnthropicDecoder) Close() ([]Delta, error) {
	if d.done {
		return nil, nil
	}
	if len(d.calls) > 0 {
		return nil, ErrStreamInterrupted
	}
	return []Delta{{Type: DeltaDone}}, nil
}
