package context

import (
	"context"
	"testing"

	"github.com/aagt-run/aagtcore/pkg/models"
)

type fakeSearcher struct {
	results []models.HybridSearchResult
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, collection, query string, limit int) ([]models.HybridSearchResult, error) {
	return f.results, f.err
}

func TestRAGInjector_NoResultsReturnsNoMessages(t *testing.T) {
	p, err := NewPacker(DefaultPackOptions())
	if err != nil {
		t.Fatalf("NewPacker: %v", err)
	}
	inj := NewRAGInjector(&fakeSearcher{}, DefaultInjectorConfig(), p)

	msgs, err := inj.Inject(context.Background(), InjectionRequest{Collection: "trading", Query: "SOL"})
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages when search returns nothing, got %+v", msgs)
	}
}

func TestRAGInjector_FormatsResultsAsSingleSystemMessage(t *testing.T) {
	p, err := NewPacker(DefaultPackOptions())
	if err != nil {
		t.Fatalf("NewPacker: %v", err)
	}
	searcher := &fakeSearcher{results: []models.HybridSearchResult{
		{Document: models.Document{Title: "SOL Strategy"}, Snippet: "Buy SOL when RSI drops below 30"},
	}}
	inj := NewRAGInjector(searcher, DefaultInjectorConfig(), p)

	msgs, err := inj.Inject(context.Background(), InjectionRequest{Collection: "trading", Query: "SOL"})
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected a single injected message, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleSystem {
		t.Fatalf("expected injected message to be a system message, got %s", msgs[0].Role)
	}
	if got := msgs[0].Text(); got == "" {
		t.Fatal("expected non-empty formatted context")
	}
}

func TestRAGInjector_SearchErrorPropagates(t *testing.T) {
	p, err := NewPacker(DefaultPackOptions())
	if err != nil {
		t.Fatalf("NewPacker: %v", err)
	}
	inj := NewRAGInjector(&fakeSearcher{err: context.DeadlineExceeded}, DefaultInjectorConfig(), p)

	if _, err := inj.Inject(context.Background(), InjectionRequest{Collection: "trading", Query: "SOL"}); err == nil {
		t.Fatal("expected search error to propagate so Manager can log-and-skip it")
	}
}
