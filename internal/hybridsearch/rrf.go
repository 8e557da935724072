// Package hybridsearch fuses keyword (BM25) and semantic (vector)
// search results into one ranked list, and exposes the combined engine
// over the cold store and the vector index.
package hybridsearch

import (
	"sort"

	"github.com/aagt-run/aagtcore/pkg/models"
)

// RankedResult is one entry from a single ranked source list, keyed by
// docid, ordered by relevance (best first).
type RankedResult struct {
	Docid string
	Score float64
}

// RRFConfig parameterizes Reciprocal Rank Fusion.
type RRFConfig struct {
	// K is the RRF constant; higher values reduce the influence of
	// top-ranked items relative to the rest of the list.
	K int

	// BM25Weight weights keyword-search contributions (more precise).
	BM25Weight float64

	// VectorWeight weights semantic-search contributions (more
	// recall-oriented).
	VectorWeight float64
}

func DefaultRRFConfig() RRFConfig {
	return RRFConfig{K: 60, BM25Weight: 2.0, VectorWeight: 1.0}
}

// RRFFusion combines BM25 and vector result lists into a single ranking.
type RRFFusion struct {
	cfg RRFConfig
}

func NewRRFFusion(cfg RRFConfig) *RRFFusion {
	if cfg.K <= 0 {
		cfg.K = 60
	}
	if cfg.BM25Weight == 0 && cfg.VectorWeight == 0 {
		cfg.BM25Weight, cfg.VectorWeight = 2.0, 1.0
	}
	return &RRFFusion{cfg: cfg}
}

type fusedBuilder struct {
	docid       string
	rrfScore    float64
	bm25Rank    *int
	vectorRank  *int
	bm25Score   *float64
	vectorScore *float64
}

func (b *fusedBuilder) build() models.FusedResult {
	return models.FusedResult{
		Docid:       b.docid,
		RRFScore:    b.rrfScore,
		BM25Rank:    b.bm25Rank,
		VectorRank:  b.vectorRank,
		BM25Score:   b.bm25Score,
		VectorScore: b.vectorScore,
	}
}

// Fuse combines bm25Results and vectorResults (each ordered best-first)
// into a single list sorted by descending RRF score, using the fusion's
// configured weights.
func (f *RRFFusion) Fuse(bm25Results, vectorResults []RankedResult) []models.FusedResult {
	return f.fuseWeighted(bm25Results, vectorResults, f.cfg.BM25Weight, f.cfg.VectorWeight)
}

// FuseWeighted fuses with per-call weight overrides, keeping the
// configured K.
func (f *RRFFusion) FuseWeighted(bm25Results, vectorResults []RankedResult, bm25Weight, vectorWeight float64) []models.FusedResult {
	return f.fuseWeighted(bm25Results, vectorResults, bm25Weight, vectorWeight)
}

func (f *RRFFusion) fuseWeighted(bm25Results, vectorResults []RankedResult, bm25Weight, vectorWeight float64) []models.FusedResult {
	builders := make(map[string]*fusedBuilder)

	get := func(docid string) *fusedBuilder {
		b, ok := builders[docid]
		if !ok {
			b = &fusedBuilder{docid: docid}
			builders[docid] = b
		}
		return b
	}

	for rank, r := range bm25Results {
		contribution := bm25Weight / float64(f.cfg.K+rank+1)
		b := get(r.Docid)
		rank := rank
		score := r.Score
		b.bm25Rank = &rank
		b.bm25Score = &score
		b.rrfScore += contribution
	}

	for rank, r := range vectorResults {
		contribution := vectorWeight / float64(f.cfg.K+rank+1)
		b := get(r.Docid)
		rank := rank
		score := r.Score
		b.vectorRank = &rank
		b.vectorScore = &score
		b.rrfScore += contribution
	}

	results := make([]models.FusedResult, 0, len(builders))
	for _, b := range builders {
		results = append(results, b.build())
	}
	sort.Slice(results, func(i, j int) bool { return results[i].RRFScore > results[j].RRFScore })
	return results
}
