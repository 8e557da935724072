package hybridsearch

import (
	"context"
	"fmt"

	"github.com/aagt-run/aagtcore/internal/coldstore"
	"github.com/aagt-run/aagtcore/internal/vectorindex"
	"github.com/aagt-run/aagtcore/internal/vectorindex/hnsw"
	"github.com/aagt-run/aagtcore/pkg/models"
)

// EngineConfig configures a hybrid search Engine.
type EngineConfig struct {
	RRF RRFConfig

	// CandidateMultiplier expands how many candidates are pulled from
	// each underlying source before fusion and limit-truncation, so
	// rank position downstream reflects the fused order rather than a
	// source's independent top-N.
	CandidateMultiplier int

	// SnippetMaxLen bounds the length of a vector-only hit's snippet,
	// since the ANN index has no FTS5 snippet() support of its own.
	SnippetMaxLen int

	// GraphSnapshotPath, if set, is where IndexDocument persists the
	// vector graph after adding new entries. Left empty, indexing stays
	// in memory only (the graph's own Save is never called).
	GraphSnapshotPath string
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RRF:                 DefaultRRFConfig(),
		CandidateMultiplier: 4,
		SnippetMaxLen:       240,
	}
}

// Engine fuses cold-store full-text search with vector-index nearest
// neighbors into a single ranked list, implementing the Searcher
// interface internal/context's injector depends on. It also owns the
// indexing pipeline (chunk -> embed -> add to the ANN graph -> persist)
// that feeds that same graph.
type Engine struct {
	store    *coldstore.Store
	graph    *hnsw.Graph
	embedder vectorindex.Embedder
	chunker  *vectorindex.Chunker
	fusion   *RRFFusion
	cfg      EngineConfig
}

// NewEngine wires a hybrid search engine. graph, embedder and chunker
// may all be nil: Search degrades to BM25-only, and IndexDocument only
// stores the document in the cold store. IndexDocument errors when a
// chunker is wired without a graph and embedder.
func NewEngine(store *coldstore.Store, graph *hnsw.Graph, embedder vectorindex.Embedder, chunker *vectorindex.Chunker, cfg EngineConfig) *Engine {
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = 4
	}
	if cfg.SnippetMaxLen <= 0 {
		cfg.SnippetMaxLen = 240
	}
	return &Engine{store: store, graph: graph, embedder: embedder, chunker: chunker, fusion: NewRRFFusion(cfg.RRF), cfg: cfg}
}

// Search runs BM25 full-text search and vector nearest-neighbor search
// in parallel (conceptually; here sequentially, since both are
// in-process and cheap), fuses them with RRF, and hydrates the top
// results with their documents.
func (e *Engine) Search(ctx context.Context, collection, query string, limit int) ([]models.HybridSearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	candidateLimit := limit * e.cfg.CandidateMultiplier

	bm25Hits, snippets, err := e.bm25Search(ctx, collection, query, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("hybridsearch: bm25 search: %w", err)
	}

	vectorHits, err := e.vectorSearch(ctx, collection, query, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("hybridsearch: vector search: %w", err)
	}

	fused := e.fusion.Fuse(bm25Hits, vectorHits)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	results := make([]models.HybridSearchResult, 0, len(fused))
	for _, f := range fused {
		doc, err := e.store.GetByDocid(ctx, f.Docid)
		if err != nil {
			return nil, fmt.Errorf("hybridsearch: load document %s: %w", f.Docid, err)
		}
		if doc == nil {
			continue
		}
		results = append(results, models.HybridSearchResult{
			Document: *doc,
			Fused:    f,
			Snippet:  e.snippetFor(f.Docid, doc, snippets),
		})
	}
	return results, nil
}

// IndexDocument runs the full C9 indexing pipeline for a single
// document: store it in the cold store (deduplicated by content hash),
// split its body into overlapping token-windowed chunks, embed those
// chunks, and add each resulting vector to the ANN graph under this
// document's docid. The graph snapshot is persisted afterward if
// GraphSnapshotPath is configured.
func (e *Engine) IndexDocument(ctx context.Context, collection, path, title, body string) (*models.Document, error) {
	doc, err := e.store.StoreDocument(ctx, collection, path, title, body)
	if err != nil {
		return nil, fmt.Errorf("hybridsearch: store document: %w", err)
	}

	if err := e.indexChunks(ctx, collection, doc, body); err != nil {
		return nil, err
	}
	return doc, nil
}

// IndexDocuments indexes several documents, continuing past a single
// document's failure so one bad body doesn't block the rest of the
// batch. The returned slice is parallel to paths/titles/bodies; a nil
// entry marks a document that failed (see errs for why).
func (e *Engine) IndexDocuments(ctx context.Context, collection string, paths, titles, bodies []string) ([]*models.Document, []error) {
	n := len(paths)
	docs := make([]*models.Document, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		doc, err := e.IndexDocument(ctx, collection, paths[i], titles[i], bodies[i])
		docs[i] = doc
		errs[i] = err
	}
	return docs, errs
}

// indexChunks chunks body, embeds the chunks in as few batches as the
// embedder's MaxBatchSize allows, and adds each to the graph. It is a
// no-op (not an error) when no chunker is wired, matching
// vectorSearch's degrade-to-BM25-only behavior; it errors when a
// chunker is wired but no graph/embedder is, since that combination
// can only be a misconfiguration.
func (e *Engine) indexChunks(ctx context.Context, collection string, doc *models.Document, body string) error {
	if e.chunker == nil {
		return nil
	}
	if e.graph == nil || e.embedder == nil {
		return fmt.Errorf("hybridsearch: index document: chunker configured without a graph and embedder")
	}

	chunks, err := e.chunker.Chunk(body)
	if err != nil {
		return fmt.Errorf("hybridsearch: chunk document %s: %w", doc.Docid, err)
	}
	if len(chunks) == 0 {
		return nil
	}

	batchSize := e.embedder.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = len(chunks)
	}
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		embeddings, err := e.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("hybridsearch: embed chunks of document %s: %w", doc.Docid, err)
		}
		for i, c := range batch {
			if err := e.graph.Add(collection, doc.Docid, c.Seq, embeddings[i]); err != nil {
				return fmt.Errorf("hybridsearch: add chunk %d of document %s to graph: %w", c.Seq, doc.Docid, err)
			}
		}
	}

	if e.cfg.GraphSnapshotPath != "" {
		if err := e.graph.Save(e.cfg.GraphSnapshotPath); err != nil {
			return fmt.Errorf("hybridsearch: persist graph snapshot: %w", err)
		}
	}
	return nil
}

func (e *Engine) bm25Search(ctx context.Context, collection, query string, limit int) ([]RankedResult, map[string]string, error) {
	var hits []models.SearchResult
	var err error
	if collection == "" {
		hits, err = e.store.SearchFTS(ctx, query, limit)
	} else {
		hits, err = e.store.SearchFTSInCollection(ctx, query, collection, limit)
	}
	if err != nil {
		return nil, nil, err
	}
	out := make([]RankedResult, len(hits))
	snippets := make(map[string]string, len(hits))
	for i, h := range hits {
		out[i] = RankedResult{Docid: h.Document.Docid, Score: h.Score}
		if h.Snippet != "" {
			snippets[h.Document.Docid] = h.Snippet
		}
	}
	return out, snippets, nil
}

func (e *Engine) vectorSearch(ctx context.Context, collection, query string, limit int) ([]RankedResult, error) {
	if e.graph == nil || e.embedder == nil {
		return nil, nil
	}
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var hits []hnsw.SearchResult
	if collection == "" {
		hits, err = e.graph.Search(queryVec, limit)
	} else {
		hits, err = e.graph.SearchInCollection(queryVec, collection, limit)
	}
	if err != nil {
		return nil, err
	}

	out := make([]RankedResult, len(hits))
	for i, h := range hits {
		out[i] = RankedResult{Docid: h.Docid, Score: h.Score}
	}
	return out, nil
}

// snippetFor prefers the FTS5-generated snippet for this docid, then the
// document's stored summary, then falls back to its title.
func (e *Engine) snippetFor(docid string, doc *models.Document, snippets map[string]string) string {
	if s, ok := snippets[docid]; ok && s != "" {
		return s
	}
	if doc.Summary != nil && *doc.Summary != "" {
		return *doc.Summary
	}
	s := doc.Title
	if len(s) > e.cfg.SnippetMaxLen {
		s = s[:e.cfg.SnippetMaxLen]
	}
	return s
}
