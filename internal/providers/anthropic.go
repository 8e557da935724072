package providers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aagt-run/aagtcore/internal/stream"
	"github.com/aagt-run/aagtcore/pkg/models"
)

// AnthropicConfig configures an AnthropicProvider, matching the teacher's
// AnthropicConfig shape and defaults.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
	Logger       *slog.Logger
}

// DefaultAnthropicConfig mirrors the teacher's defaults.
func DefaultAnthropicConfig() AnthropicConfig {
	return AnthropicConfig{
		MaxRetries:   3,
		RetryDelay:   time.Second,
		DefaultModel: "claude-sonnet-4-20250514",
		Logger:       slog.Default(),
	}
}

// AnthropicProvider implements Provider over the Anthropic Messages API.
type AnthropicProvider struct {
	cfg    AnthropicConfig
	client anthropic.Client
}

// NewAnthropicProvider constructs a provider from cfg, filling in the
// default model when DefaultModel is empty. APIKey, BaseURL and
// MaxRetries become SDK client options at construction; RetryDelay is
// not used.
func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultAnthropicConfig().DefaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	return &AnthropicProvider{cfg: cfg, client: anthropic.NewClient(opts...)}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) StreamCompletion(ctx context.Context, req Request) (StreamHandle, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxOrDefault(req.MaxTokens, 4096)),
		Messages:  toAnthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{Properties: t.Parameters},
		})
	}

	sdkStream := p.client.Messages.NewStreaming(ctx, params)
	dec := stream.NewAnthropicDecoder(stream.DefaultMaxBufferedBytes)
	return &anthropicStreamHandle{sdk: sdkStream, dec: dec}, nil
}

// anthropicStreamHandle re-derives raw SSE-equivalent JSON frames from the
// SDK's already-parsed event union and feeds them through the shared
// decoder, so the decoding invariants in spec.md §4.2 are exercised
// uniformly across providers instead of trusting the SDK's own union
// unpacking.
type anthropicStreamHandle struct {
	sdk     anthropicSDKStream
	dec     *stream.AnthropicDecoder
	pending []stream.Delta
	closed  bool
}

// anthropicSDKStream narrows anthropic-sdk-go's ssestream.Stream[T] to the
// three methods this package needs, so tests can substitute a fake
// instead of driving the real HTTP client.
type anthropicSDKStream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
}

func (h *anthropicStreamHandle) Next(ctx context.Context) (stream.Delta, bool, error) {
	for len(h.pending) == 0 {
		if h.closed {
			return stream.Delta{}, false, nil
		}
		if !h.sdk.Next() {
			if err := h.sdk.Err(); err != nil {
				return stream.Delta{}, false, err
			}
			deltas, err := h.dec.Close()
			h.closed = true
			if err != nil {
				return stream.Delta{}, false, err
			}
			h.pending = deltas
			continue
		}
		raw, err := json.Marshal(h.sdk.Current())
		if err != nil {
			return stream.Delta{}, false, err
		}
		frame := append(append([]byte("data: "), raw...), '\n', '\n')
		deltas, err := h.dec.Feed(frame)
		if err != nil {
			return stream.Delta{}, false, err
		}
		h.pending = deltas
	}
	d := h.pending[0]
	h.pending = h.pending[1:]
	return d, true, nil
}

func toAnthropicMessages(msgs []*models.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		var blocks []anthropic.ContentBlockParamUnion
		for _, p := range m.Parts {
			switch p.Type {
			case models.PartText:
				blocks = append(blocks, anthropic.NewTextBlock(p.Text))
			case models.PartToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(p.ToolCallID, p.ToolResultText, p.ToolResultError))
			case models.PartToolCall:
				var args any
				_ = json.Unmarshal(p.ToolArgsJSON, &args)
				blocks = append(blocks, anthropic.NewToolUseBlock(p.ToolCallID, args, p.ToolName))
			}
		}
		role := anthropic.MessageParamRoleUser
		if m.Role == models.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: blocks})
	}
	return out
}

func maxOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
