package stream

import (
	"encoding/json"
	"fmt"
)

// geminiChunk mirrors the subset of a Gemini-style generateContent
// streaming chunk this decoder consumes: each chunk carries whole parts,
// never a partial function-call argument fragment, so every function
// call is already structurally complete on arrival.
type geminiChunk struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text         string `json:"text"`
				FunctionCall *struct {
					Name string         `json:"name"`
					Args map[string]any `json:"args"`
				} `json:"functionCall"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// GeminiDecoder decodes Gemini-style streaming JSON chunks framed as SSE
// `data:` lines; lines without a `data:` prefix (such as a bare
// JSON-lines stream) are ignored.
type GeminiDecoder struct {
	framer  *sseFramer
	seq     int
	done    bool
}

func NewGeminiDecoder(maxBufferedBytes int) *GeminiDecoder {
	return &GeminiDecoder{framer: newSSEFramer(maxBufferedBytes)}
}

func (d *GeminiDecoder) Feed(chunk []byte) ([]Delta, error) {
	events, err := d.framer.feed(chunk)
	if err != nil {
		return nil, err
	}
	var out []Delta
	for _, ev := range events {
		var c geminiChunk
		if err := json.Unmarshal([]byte(ev), &c); err != nil {
			return out, ErrStreamInterrupted
		}
		for _, cand := range c.Candidates {
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					out = append(out, Delta{Type: DeltaText, Text: part.Text})
				}
				if part.FunctionCall != nil {
					args, merr := json.Marshal(part.FunctionCall.Args)
					if merr != nil {
						return out, ErrStreamInterrupted
					}
					d.seq++
					out = append(out, Delta{Type: DeltaToolCall, ToolCall: ToolCallDelta{
						ID:   fmt.Sprintf("call_%d", d.seq),
						Name: part.FunctionCall.Name,
						Args: args,
					}})
				}
			}
			if cand.FinishReason != "" {
				out = append(out, Delta{Type: DeltaDone})
				d.done = true
			}
		}
	}
	return out, nil
}

func (d *GeminiDecoder) Close() ([]Delta, error) {
	if d.done {
		return nil, nil
	}
	return []Delta{{Type: DeltaDone}}, nil
}
