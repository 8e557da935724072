package context

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aagt-run/aagtcore/pkg/models"
)

// ManagerConfig bounds the token budget the Manager enforces.
type ManagerConfig struct {
	// MaxContextTokens is the provider's total context window.
	MaxContextTokens int

	// ResponseReserve is held back for the model's own response.
	ResponseReserve int

	// SafetyMargin absorbs tokenizer estimation error between this
	// tokenizer and the provider's actual one.
	SafetyMargin int
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxContextTokens: 128000,
		ResponseReserve:  4096,
		SafetyMargin:     512,
	}
}

// BuildResult is the assembled message list for one turn, plus any
// non-fatal warnings recorded while building it.
type BuildResult struct {
	Messages []*models.Message
	Warnings []string
}

// Manager produces the ordered Message list sent to the provider for one
// turn: every registered injector's messages in registration order, then
// a budget-selected suffix of conversation history, then the incoming
// message. The system prompt is not part of the list; Build only counts
// it against the history budget. A failing injector is logged and
// skipped rather than aborting the turn.
type Manager struct {
	packer    *Packer
	injectors []Injector
	logger    *slog.Logger
	cfg       ManagerConfig
}

func NewManager(packer *Packer, cfg ManagerConfig, logger *slog.Logger) *Manager {
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = DefaultManagerConfig().MaxContextTokens
	}
	if cfg.ResponseReserve <= 0 {
		cfg.ResponseReserve = DefaultManagerConfig().ResponseReserve
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = DefaultManagerConfig().SafetyMargin
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{packer: packer, logger: logger.With("component", "context_manager"), cfg: cfg}
}

// Register appends inj to the injector list. Injectors run in
// registration order.
func (m *Manager) Register(inj Injector) {
	m.injectors = append(m.injectors, inj)
}

// Build assembles one turn's message list. summary and incoming may be
// nil; history may be empty.
func (m *Manager) Build(ctx context.Context, system string, history []*models.Message, incoming, summary *models.Message, req InjectionRequest) *BuildResult {
	injected := m.RunInjectors(ctx, req)
	budget, warning := m.HistoryBudget(system, injected)

	var warnings []string
	var historyMsgs []*models.Message
	if warning != "" {
		warnings = append(warnings, warning)
	} else {
		historyMsgs = m.packer.PackBudgeted(history, summary, budget)
	}

	messages := make([]*models.Message, 0, len(injected)+len(historyMsgs)+1)
	messages = append(messages, injected...)
	messages = append(messages, historyMsgs...)
	if incoming != nil {
		messages = append(messages, incoming)
	}

	return &BuildResult{Messages: messages, Warnings: warnings}
}

// RunInjectors runs every registered injector in registration order,
// logging and skipping any that fail, and returns the concatenation of
// their returned messages.
func (m *Manager) RunInjectors(ctx context.Context, req InjectionRequest) []*models.Message {
	var injected []*models.Message
	for _, inj := range m.injectors {
		msgs, err := inj.Inject(ctx, req)
		if err != nil {
			m.logger.Warn("context injector failed, skipping", "error", err)
			continue
		}
		injected = append(injected, msgs...)
	}
	return injected
}

// HistoryBudget computes the token budget available for conversation
// history (construction-order step 3) given the already-assembled
// system prompt and injector messages (steps 1-2):
// max_context_tokens - response_reserve - safety_margin - tokens(steps 1-2).
// If that budget is not positive, it returns 0 and a non-empty warning;
// callers should treat history as empty in that case.
func (m *Manager) HistoryBudget(system string, injected []*models.Message) (budget int, warning string) {
	stepOneTwoTokens := m.packer.tokenCount(system)
	for _, msg := range injected {
		stepOneTwoTokens += m.packer.messageTokens(msg)
	}

	window := m.cfg.MaxContextTokens - m.cfg.ResponseReserve - m.cfg.SafetyMargin
	budget = window - stepOneTwoTokens
	if budget <= 0 {
		return 0, fmt.Sprintf(
			"context: system prompt and injectors alone use an estimated %d tokens, exceeding the %d-token window after reserves; history dropped",
			stepOneTwoTokens, window)
	}
	return budget, ""
}

// PackHistory selects a chronological suffix of history under maxTokens,
// for callers (like the agent loop) that compute the injector/budget
// split once per turn but repack history on every internal step as
// messages accumulate.
func (m *Manager) PackHistory(history []*models.Message, maxTokens int) []*models.Message {
	return m.packer.PackBudgeted(history, nil, maxTokens)
}
