package stream

import (
	"testing"
)

func sseFrame(data string) []byte {
	return []byte("data: " + data + "\n\n")
}

func TestOpenAIDecoder_TextAndToolCall(t *testing.T) {
	d := NewOpenAIDecoder(0)

	var deltas []Delta
	feed := func(s string) {
		ds, err := d.Feed(sseFrame(s))
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		deltas = append(deltas, ds...)
	}

	feed(`{"choices":[{"delta":{"content":"hel"}}]}`)
	feed(`{"choices":[{"delta":{"content":"lo"}}]}`)
	feed(`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"echo","arguments":"{\"msg\""}}]}}]}`)
	feed(`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":":\"hi\"}"}}]},"finish_reason":"tool_calls"}]}`)
	feed(`[DONE]`)

	var text string
	var gotCall bool
	var gotDone bool
	for _, delta := range deltas {
		switch delta.Type {
		case DeltaText:
			text += delta.Text
		case DeltaParallelCalls:
			for _, tc := range delta.ParallelCalls {
				if tc.ID != "c1" || tc.Name != "echo" {
					t.Errorf("unexpected tool call: %+v", tc)
				}
				gotCall = true
			}
		case DeltaDone:
			gotDone = true
		}
	}
	if text != "hello" {
		t.Errorf("text = %q, want %q", text, "hello")
	}
	if !gotCall {
		t.Error("expected a parallel tool call delta")
	}
	if !gotDone {
		t.Error("expected a Done delta")
	}
}

func TestAnthropicDecoder_ToolUse(t *testing.T) {
	d := NewAnthropicDecoder(0)

	frames := []string{
		`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"c1","name":"echo"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"msg\":"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"\"hi\"}"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_stop"}`,
	}

	var deltas []Delta
	for _, f := range frames {
		ds, err := d.Feed(sseFrame(f))
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		deltas = append(deltas, ds...)
	}

	var sawCall, sawDone bool
	for _, delta := range deltas {
		if delta.Type == DeltaToolCall {
			sawCall = true
			if delta.ToolCall.Name != "echo" {
				t.Errorf("unexpected tool name %q", delta.ToolCall.Name)
			}
			if string(delta.ToolCall.Args) != `{"msg":"hi"}` {
				t.Errorf("unexpected args %q", delta.ToolCall.Args)
			}
		}
		if delta.Type == DeltaDone {
			sawDone = true
		}
	}
	if !sawCall || !sawDone {
		t.Errorf("sawCall=%v sawDone=%v", sawCall, sawDone)
	}
}

func TestDecoder_BufferExceeded(t *testing.T) {
	d := NewOpenAIDecoder(8)
	_, err := d.Feed(make([]byte, 16))
	if err != ErrBufferExceeded {
		t.Fatalf("expected ErrBufferExceeded, got %v", err)
	}
}

func TestAnthropicDecoder_IncompleteCallOnClose(t *testing.T) {
	d := NewAnthropicDecoder(0)
	_, err := d.Feed(sseFrame(`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"c1","name":"echo"}}`))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if _, err := d.Close(); err != ErrStreamInterrupted {
		t.Fatalf("expected ErrStreamInterrupted, got %v", err)
	}
}
