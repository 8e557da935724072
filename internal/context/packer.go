// Package context packs conversation history into an LLM request: a
// rolling summary, a budget-selected window of recent messages, and the
// incoming turn.
package context

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/aagt-run/aagtcore/pkg/models"
)

const SummaryMetadataKey = "aagt_summary"

// PackOptions configures how messages are packed into context.
type PackOptions struct {
	// MaxMessages is the hard cap on number of messages to include.
	MaxMessages int

	// MaxTokens is the token budget for the packed window, estimated via
	// tiktoken-go rather than a char-count proxy.
	MaxTokens int

	// MaxToolResultTokens truncates any single tool result longer than
	// this many tokens.
	MaxToolResultTokens int

	// IncludeSummary controls whether to include the rolling summary.
	IncludeSummary bool

	// SummaryMetadataKey is the metadata key marking summary messages.
	SummaryMetadataKey string

	// Encoding names the tiktoken encoding to count tokens with.
	Encoding string
}

func DefaultPackOptions() PackOptions {
	return PackOptions{
		MaxMessages:         60,
		MaxTokens:           7500,
		MaxToolResultTokens: 1500,
		IncludeSummary:      true,
		SummaryMetadataKey:  SummaryMetadataKey,
		Encoding:            "cl100k_base",
	}
}

// Packer selects and prepares messages for LLM context under a token
// budget, grounded on the newest-first-then-reverse selection algorithm
// the teacher's packer used for a char budget.
type Packer struct {
	opts PackOptions
	enc  *tiktoken.Tiktoken
}

func NewPacker(opts PackOptions) (*Packer, error) {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 60
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 7500
	}
	if opts.MaxToolResultTokens <= 0 {
		opts.MaxToolResultTokens = 1500
	}
	if opts.SummaryMetadataKey == "" {
		opts.SummaryMetadataKey = SummaryMetadataKey
	}
	if opts.Encoding == "" {
		opts.Encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	return &Packer{opts: opts, enc: enc}, nil
}

// Pack selects messages from history to fit within the token budget.
//
// Result order: summary (if enabled and present), recent history messages
// (newest-first selection, reversed back to chronological order), then
// the incoming message. Tool result content is truncated to
// MaxToolResultTokens.
func (p *Packer) Pack(history []*models.Message, incoming, summary *models.Message) []*models.Message {
	var result []*models.Message

	totalTokens := 0
	totalMsgs := 0

	if incoming != nil {
		totalTokens += p.messageTokens(incoming)
		totalMsgs++
	}

	selected := p.selectHistory(history, summary, p.opts.MaxTokens-totalTokens, p.opts.MaxMessages-totalMsgs)

	if p.opts.IncludeSummary && summary != nil {
		result = append(result, summary)
	}
	for _, m := range selected {
		result = append(result, p.truncateToolResults(m))
	}
	if incoming != nil {
		result = append(result, incoming)
	}
	return result
}

// PackBudgeted selects a chronological suffix of history (plus the
// rolling summary, if configured) under an externally-computed token
// budget, for callers assembling the full construction order themselves
// (system prompt, then injector messages, then this) rather than going
// through Pack's incoming-reserving accounting.
func (p *Packer) PackBudgeted(history []*models.Message, summary *models.Message, maxTokens int) []*models.Message {
	selected := p.selectHistory(history, summary, maxTokens, p.opts.MaxMessages)

	var result []*models.Message
	if p.opts.IncludeSummary && summary != nil {
		result = append(result, summary)
	}
	for _, m := range selected {
		result = append(result, p.truncateToolResults(m))
	}
	return result
}

// selectHistory picks the newest-first run of non-summary-marked history
// messages that fits within maxTokens and maxMessages (after reserving
// room for summary, if configured), then reverses the picks back to
// chronological order. summary's own token/message cost is always
// accounted for, independent of the caller's reservation.
func (p *Packer) selectHistory(history []*models.Message, summary *models.Message, maxTokens, maxMessages int) []*models.Message {
	totalTokens := 0
	totalMsgs := 0
	if p.opts.IncludeSummary && summary != nil {
		totalTokens += p.messageTokens(summary)
		totalMsgs++
	}

	filtered := make([]*models.Message, 0, len(history))
	for _, m := range history {
		if m == nil || p.isSummaryMessage(m) {
			continue
		}
		filtered = append(filtered, m)
	}

	selectedReverse := make([]*models.Message, 0)
	for i := len(filtered) - 1; i >= 0; i-- {
		m := filtered[i]
		msgTokens := p.messageTokens(m)

		if totalMsgs+1 > maxMessages {
			break
		}
		if totalTokens+msgTokens > maxTokens {
			break
		}

		selectedReverse = append(selectedReverse, m)
		totalMsgs++
		totalTokens += msgTokens
	}

	selected := make([]*models.Message, len(selectedReverse))
	for i, m := range selectedReverse {
		selected[len(selectedReverse)-1-i] = m
	}
	return selected
}

func (p *Packer) tokenCount(s string) int {
	if s == "" {
		return 0
	}
	return len(p.enc.Encode(s, nil, nil))
}

func (p *Packer) messageTokens(m *models.Message) int {
	if m == nil {
		return 0
	}
	tokens := p.tokenCount(m.Text())
	for _, tc := range m.ToolCalls() {
		tokens += p.tokenCount(tc.ToolName) + p.tokenCount(string(tc.ToolArgsJSON))
	}
	for _, tr := range m.ToolResults() {
		tokens += p.tokenCount(tr.ToolResultText)
	}
	return tokens
}

func (p *Packer) isSummaryMessage(m *models.Message) bool {
	if m.Metadata == nil {
		return false
	}
	val, ok := m.Metadata[p.opts.SummaryMetadataKey]
	if !ok {
		return false
	}
	b, _ := val.(bool)
	return b
}

func (p *Packer) truncateToolResults(m *models.Message) *models.Message {
	results := m.ToolResults()
	if len(results) == 0 {
		return m
	}
	needsTruncation := false
	for _, tr := range results {
		if p.tokenCount(tr.ToolResultText) > p.opts.MaxToolResultTokens {
			needsTruncation = true
			break
		}
	}
	if !needsTruncation {
		return m
	}

	clone := *m
	clone.Parts = make([]models.ContentPart, len(m.Parts))
	copy(clone.Parts, m.Parts)
	for i, part := range clone.Parts {
		if part.Type != models.PartToolResult {
			continue
		}
		if p.tokenCount(part.ToolResultText) <= p.opts.MaxToolResultTokens {
			continue
		}
		ids := p.enc.Encode(part.ToolResultText, nil, nil)
		if len(ids) > p.opts.MaxToolResultTokens {
			ids = ids[:p.opts.MaxToolResultTokens]
		}
		part.ToolResultText = p.enc.Decode(ids) + "\n...[truncated]"
		clone.Parts[i] = part
	}
	return &clone
}
