// Package agentloop implements the bounded tool-using reasoning loop (C11):
// it drives a streaming provider, fans tool calls out through a policy and
// approval gate, threads results back into a token-budgeted context window,
// and broadcasts a typed event stream of the run.
package agentloop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	agentcontext "github.com/aagt-run/aagtcore/internal/context"
	"github.com/aagt-run/aagtcore/internal/memory/shortterm"
	"github.com/aagt-run/aagtcore/internal/providers"
	"github.com/aagt-run/aagtcore/internal/stream"
	"github.com/aagt-run/aagtcore/internal/tools"
	"github.com/aagt-run/aagtcore/pkg/models"

	"github.com/google/uuid"
)

// Config bounds and configures a single Run call.
type Config struct {
	// MaxSteps is the maximum number of model round-trips before Run
	// gives up with ErrMaxSteps.
	MaxSteps int

	// MaxToolOutputChars caps a single tool result before it is threaded
	// back into history, protecting the token budget.
	MaxToolOutputChars int

	// MaxToolConcurrency bounds how many tool calls from one model turn
	// run at once.
	MaxToolConcurrency int

	Policy  PolicyTable
	Approve ApprovalFunc

	Model       string
	System      string
	Temperature float64
	MaxTokens   int

	// Collection scopes retrieval-augmented context injection for any
	// registered injector that uses it.
	Collection string

	// ContextManager bounds the token budget the context manager
	// enforces across system prompt, injectors, and history.
	ContextManager agentcontext.ManagerConfig
}

// DefaultConfig returns the spec's stated defaults: 15 steps, a generous
// tool-output cap, and an auto-approve policy table.
func DefaultConfig() Config {
	return Config{
		MaxSteps:           15,
		MaxToolOutputChars: 8000,
		MaxToolConcurrency: 8,
		Policy:             DefaultPolicyTable(),
		MaxTokens:          4096,
		ContextManager:     agentcontext.DefaultManagerConfig(),
	}
}

// Loop is the agent execution loop: a provider, a tool registry, and a
// context manager, composed under one bounded reasoning cycle.
type Loop struct {
	provider providers.Provider
	registry *tools.Registry
	manager  *agentcontext.Manager
	memory   *shortterm.Store
	cfg      Config
	events   *Broadcaster
}

// New builds a Loop. The tool registry always registers itself as a
// context injector (C4 acting as C5 injector), so every registered tool
// is described to the model regardless of which other injectors are
// attached via AddInjector. Hot-memory persistence is off until a store
// is attached with SetMemory.
func New(provider providers.Provider, registry *tools.Registry, packer *agentcontext.Packer, cfg Config) *Loop {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultConfig().MaxSteps
	}
	if cfg.MaxToolConcurrency <= 0 {
		cfg.MaxToolConcurrency = DefaultConfig().MaxToolConcurrency
	}
	if cfg.Policy.Default == "" {
		cfg.Policy.Default = PolicyAuto
	}
	if cfg.ContextManager == (agentcontext.ManagerConfig{}) {
		cfg.ContextManager = agentcontext.DefaultManagerConfig()
	}

	manager := agentcontext.NewManager(packer, cfg.ContextManager, nil)
	if registry != nil {
		manager.Register(registry.Injector())
	}

	return &Loop{
		provider: provider,
		registry: registry,
		manager:  manager,
		cfg:      cfg,
		events:   NewBroadcaster(),
	}
}

// AddInjector registers another context injector (e.g. retrieval-
// augmented search, C9 via C5) after the tool registry's. Injectors run
// in registration order; a failing one is logged and skipped rather
// than aborting the turn.
func (l *Loop) AddInjector(inj agentcontext.Injector) { l.manager.Register(inj) }

// SetMemory attaches a hot-memory store (C6); every run's inbound and
// final assistant message are appended to it under key.
func (l *Loop) SetMemory(store *shortterm.Store) { l.memory = store }

// Events returns the broadcaster so callers can Subscribe to the run's
// event stream. A missing subscriber is never fatal to the run.
func (l *Loop) Events() *Broadcaster { return l.events }

// Run drives the loop to completion for one incoming message against the
// given prior history, returning the final assistant text.
func (l *Loop) Run(ctx context.Context, history []*models.Message, incoming *models.Message, memKey *models.MemoryKey) (string, error) {
	if incoming == nil && len(history) == 0 {
		return "", ErrEmptyHistory
	}

	messages := make([]*models.Message, len(history))
	copy(messages, history)
	if incoming != nil {
		messages = append(messages, incoming)
		if l.memory != nil && memKey != nil {
			l.memory.Append(*memKey, incoming)
		}
	}

	d := &dispatcher{
		registry:       l.registry,
		policy:         l.cfg.Policy,
		approve:        l.cfg.Approve,
		maxConcurrency: l.cfg.MaxToolConcurrency,
		maxOutputChars: l.cfg.MaxToolOutputChars,
		events:         l.events,
	}

	system := l.cfg.System
	query := ""
	if incoming != nil {
		query = incoming.Text()
	}
	injected := l.manager.RunInjectors(ctx, agentcontext.InjectionRequest{Collection: l.cfg.Collection, Query: query})
	budget, warning := l.manager.HistoryBudget(system, injected)
	if warning != "" {
		l.events.emit(models.AgentEvent{Type: models.EventError, Time: time.Now(), Message: warning})
	}

	for step := 0; step < l.cfg.MaxSteps; step++ {
		history := l.manager.PackHistory(messages, budget)
		packed := make([]*models.Message, 0, len(injected)+len(history))
		packed = append(packed, injected...)
		packed = append(packed, history...)

		l.events.emit(models.AgentEvent{Type: models.EventThinking, Time: time.Now(), Prompt: lastUserText(packed)})

		text, toolCalls, err := l.streamOnce(ctx, packed, system)
		if err != nil {
			l.events.emit(models.AgentEvent{Type: models.EventError, Time: time.Now(), Message: err.Error()})
			return "", fmt.Errorf("agentloop: stream completion: %w", err)
		}

		if len(toolCalls) == 0 {
			l.events.emit(models.AgentEvent{Type: models.EventResponse, Time: time.Now(), Content: text})
			if l.memory != nil && memKey != nil {
				l.memory.Append(*memKey, models.NewTextMessage(models.RoleAssistant, text))
			}
			return text, nil
		}

		assistant := &models.Message{ID: uuid.NewString(), Role: models.RoleAssistant, CreatedAt: time.Now()}
		if text != "" {
			assistant.Parts = append(assistant.Parts, models.ContentPart{Type: models.PartText, Text: text})
		}
		for _, tc := range toolCalls {
			assistant.Parts = append(assistant.Parts, models.ContentPart{
				Type: models.PartToolCall, ToolCallID: tc.ID, ToolName: tc.Name, ToolArgsJSON: tc.Args,
			})
		}
		messages = append(messages, assistant)

		outcomes := d.dispatchAll(ctx, toolCalls)

		toolMsg := &models.Message{ID: uuid.NewString(), Role: models.RoleTool, CreatedAt: time.Now()}
		for _, o := range outcomes {
			toolMsg.Parts = append(toolMsg.Parts, models.ContentPart{
				Type: models.PartToolResult, ToolCallID: o.call.ID, ToolResultText: o.output, ToolResultError: o.isError,
			})
		}
		messages = append(messages, toolMsg)
	}

	return "", ErrMaxSteps
}

// streamOnce drains one provider stream into accumulated text and an
// ordered list of complete tool calls, reconciling any provider-flushed
// parallel batch into call order.
func (l *Loop) streamOnce(ctx context.Context, packed []*models.Message, system string) (string, []stream.ToolCallDelta, error) {
	req := providers.Request{
		Model:       l.cfg.Model,
		System:      system,
		Messages:    packed,
		Tools:       l.toolDefinitions(),
		Temperature: l.cfg.Temperature,
		MaxTokens:   l.cfg.MaxTokens,
	}

	handle, err := l.provider.StreamCompletion(ctx, req)
	if err != nil {
		return "", nil, err
	}

	var text string
	var calls []stream.ToolCallDelta
	parallel := make(map[int]stream.ToolCallDelta)

	for {
		delta, ok, err := handle.Next(ctx)
		if err != nil {
			return "", nil, err
		}
		if !ok {
			break
		}
		switch delta.Type {
		case stream.DeltaText:
			text += delta.Text
		case stream.DeltaThought:
			l.events.emit(models.AgentEvent{Type: models.EventThinking, Time: time.Now(), Prompt: delta.Text})
		case stream.DeltaToolCall:
			calls = append(calls, delta.ToolCall)
		case stream.DeltaParallelCalls:
			for idx, tc := range delta.ParallelCalls {
				parallel[idx] = tc
			}
		case stream.DeltaDone:
		}
	}

	if len(parallel) > 0 {
		indices := make([]int, 0, len(parallel))
		for idx := range parallel {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			calls = append(calls, parallel[idx])
		}
	}

	return text, calls, nil
}

func (l *Loop) toolDefinitions() []providers.ToolDefinition {
	defs := l.registry.Definitions()
	out := make([]providers.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, providers.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}
	return out
}

func lastUserText(messages []*models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			return messages[i].Text()
		}
	}
	return ""
}

// IsMaxSteps reports whether err is (or wraps) ErrMaxSteps.
func IsMaxSteps(err error) bool { return errors.Is(err, ErrMaxSteps) }
