package context

import (
	"context"
	"fmt"
	"strings"

	"github.com/aagt-run/aagtcore/pkg/models"
)

// Searcher is the narrow hybrid-search capability the RAG injector needs,
// implemented by internal/hybridsearch's search engine.
type Searcher interface {
	Search(ctx context.Context, collection, query string, limit int) ([]models.HybridSearchResult, error)
}

// InjectionRequest carries the turn-scoped inputs an Injector may need.
// An injector that doesn't use a field (e.g. the tool-registry injector
// ignores Collection/Query entirely) is free to ignore it.
type InjectionRequest struct {
	Collection string
	Query      string
}

// Injector is the context manager's injector contract: stateless with
// respect to a single call, safe to invoke repeatedly, and polymorphic
// over returning zero or more messages or an error. A failing injector
// is logged and skipped by Manager rather than aborting the turn.
type Injector interface {
	Inject(ctx context.Context, req InjectionRequest) ([]*models.Message, error)
}

// InjectorConfig configures RAG injection behavior.
type InjectorConfig struct {
	Enabled bool

	// MaxChunks is the maximum number of results to inject.
	MaxChunks int

	// MaxTokens is the approximate total token budget for injected text.
	MaxTokens int

	HeaderTemplate string
	ChunkTemplate  string
	FooterTemplate string
}

func DefaultInjectorConfig() InjectorConfig {
	return InjectorConfig{
		Enabled:        true,
		MaxChunks:      5,
		MaxTokens:      2000,
		HeaderTemplate: "## Relevant Context\n\nThe following information may be relevant:\n\n",
		ChunkTemplate:  "### {{.Source}}\n{{.Content}}\n\n",
		FooterTemplate: "---\n\n",
	}
}

// RAGInjector retrieves hybrid-search results and formats them as a
// single system message injected into an agent's conversation context.
type RAGInjector struct {
	searcher Searcher
	cfg      InjectorConfig
	packer   *Packer
}

var _ Injector = (*RAGInjector)(nil)

func NewRAGInjector(searcher Searcher, cfg InjectorConfig, packer *Packer) *RAGInjector {
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = 5
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	return &RAGInjector{searcher: searcher, cfg: cfg, packer: packer}
}

// InjectionResult is the formatted context block plus accounting of what
// was used to build it, retained for callers that want the raw hit list
// alongside the message Inject returns.
type InjectionResult struct {
	Context    string
	ChunksUsed int
	TokensUsed int
	Results    []models.HybridSearchResult
}

// Inject runs a hybrid search for req.Query scoped to req.Collection and
// returns the top results, formatted as a single system message, within
// the configured chunk/token budget. An empty or disabled injector
// returns no messages rather than an error.
func (i *RAGInjector) Inject(ctx context.Context, req InjectionRequest) ([]*models.Message, error) {
	result, err := i.search(ctx, req.Collection, req.Query)
	if err != nil {
		return nil, err
	}
	if result.Context == "" {
		return nil, nil
	}
	return []*models.Message{models.NewTextMessage(models.RoleSystem, result.Context)}, nil
}

func (i *RAGInjector) search(ctx context.Context, collection, query string) (*InjectionResult, error) {
	if !i.cfg.Enabled || i.searcher == nil {
		return &InjectionResult{}, nil
	}

	results, err := i.searcher.Search(ctx, collection, query, i.cfg.MaxChunks*2)
	if err != nil {
		return nil, fmt.Errorf("context injection search: %w", err)
	}
	if len(results) == 0 {
		return &InjectionResult{}, nil
	}

	var selected []models.HybridSearchResult
	totalTokens := 0
	for _, r := range results {
		if len(selected) >= i.cfg.MaxChunks {
			break
		}
		chunkTokens := i.packer.tokenCount(r.Snippet)
		if totalTokens+chunkTokens > i.cfg.MaxTokens {
			continue
		}
		selected = append(selected, r)
		totalTokens += chunkTokens
	}
	if len(selected) == 0 {
		return &InjectionResult{}, nil
	}

	return &InjectionResult{
		Context:    i.formatContext(selected),
		ChunksUsed: len(selected),
		TokensUsed: totalTokens,
		Results:    selected,
	}, nil
}

func (i *RAGInjector) formatContext(results []models.HybridSearchResult) string {
	var sb strings.Builder
	sb.WriteString(i.cfg.HeaderTemplate)
	for _, r := range results {
		source := r.Document.Title
		if source == "" {
			source = r.Document.Path
		}
		chunk := i.cfg.ChunkTemplate
		chunk = strings.ReplaceAll(chunk, "{{.Content}}", r.Snippet)
		chunk = strings.ReplaceAll(chunk, "{{.Source}}", source)
		sb.WriteString(chunk)
	}
	sb.WriteString(i.cfg.FooterTemplate)
	return sb.String()
}

type contextKey struct{}

// WithInjectedContext stores a formatted RAG context block on ctx.
func WithInjectedContext(ctx context.Context, injected string) context.Context {
	return context.WithValue(ctx, contextKey{}, injected)
}

// InjectedContextFrom retrieves a previously stored RAG context block.
func InjectedContextFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(contextKey{}).(string)
	return v, ok && v != ""
}
