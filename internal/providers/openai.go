package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aagt-run/aagtcore/internal/stream"
	"github.com/aagt-run/aagtcore/pkg/models"
)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Logger       *slog.Logger
}

func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{DefaultModel: "gpt-4o-mini", Logger: slog.Default()}
}

// OpenAIProvider implements Provider over the Chat Completions streaming
// API.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *openai.Client
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o-mini"
	}
	return &OpenAIProvider{cfg: cfg, client: openai.NewClientWithConfig(conf)}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) StreamCompletion(ctx context.Context, req Request) (StreamHandle, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}

	messages := toOpenAIMessages(req.System, req.Messages)
	tools := toOpenAITools(req.Tools)

	sdkStream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Tools:       tools,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	dec := stream.NewOpenAIDecoder(stream.DefaultMaxBufferedBytes)
	return &openAIStreamHandle{sdk: sdkStream, dec: dec}, nil
}

// openAIStreamHandle re-marshals each received chunk back to JSON and
// feeds it through the shared decoder so the same framing invariants
// apply regardless of provider family.
type openAIStreamHandle struct {
	sdk     openAISDKStream
	dec     *stream.OpenAIDecoder
	pending []stream.Delta
	closed  bool
}

// openAISDKStream narrows *openai.ChatCompletionStream to what this
// package needs.
type openAISDKStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

func (h *openAIStreamHandle) Next(ctx context.Context) (stream.Delta, bool, error) {
	for len(h.pending) == 0 {
		if h.closed {
			return stream.Delta{}, false, nil
		}
		resp, err := h.sdk.Recv()
		if errors.Is(err, io.EOF) {
			deltas, cerr := h.dec.Feed([]byte("data: [DONE]\n\n"))
			h.closed = true
			_ = h.sdk.Close()
			if cerr != nil {
				return stream.Delta{}, false, cerr
			}
			h.pending = deltas
			continue
		}
		if err != nil {
			return stream.Delta{}, false, classifyOpenAIError(err)
		}
		raw, merr := json.Marshal(resp)
		if merr != nil {
			return stream.Delta{}, false, merr
		}
		deltas, ferr := h.dec.Feed(append(append([]byte("data: "), raw...), '\n', '\n'))
		if ferr != nil {
			return stream.Delta{}, false, ferr
		}
		h.pending = deltas
	}
	d := h.pending[0]
	h.pending = h.pending[1:]
	return d, true, nil
}

func toOpenAIMessages(system string, msgs []*models.Message) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		role := string(m.Role)
		if m.Role == models.RoleTool {
			for _, p := range m.ToolResults() {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    p.ToolResultText,
					ToolCallID: p.ToolCallID,
				})
			}
			continue
		}
		msg := openai.ChatCompletionMessage{Role: role, Content: m.Text()}
		for _, p := range m.ToolCalls() {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   p.ToolCallID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      p.ToolName,
					Arguments: string(p.ToolArgsJSON),
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []ToolDefinition) []openai.Tool {
	var out []openai.Tool
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return ErrProviderAuth
		case 429:
			return &RateLimitError{RetryAfterSecs: 0}
		}
		return &APIError{Message: apiErr.Message}
	}
	return errors.Join(ErrHTTP, err)
}
