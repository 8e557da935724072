// Package vectorindex implements the embedding pipeline (chunker →
// embedder → ANN graph) backing semantic search over the cold store.
package vectorindex

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/aagt-run/aagtcore/pkg/models"
)

// ChunkerConfig configures the token-windowed sliding-window chunker.
type ChunkerConfig struct {
	// ChunkSize is the chunk size in tokens.
	ChunkSize int

	// Overlap is the number of tokens shared between consecutive chunks.
	Overlap int

	// Encoding names the tiktoken encoding used to tokenize.
	Encoding string
}

func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{ChunkSize: 800, Overlap: 40, Encoding: "cl100k_base"}
}

// Chunker splits document bodies into overlapping token windows, grounded
// on the original sliding-window stride/offset algorithm (chunk_size=800,
// 5% overlap by default), re-expressed over a BPE tokenizer instead of a
// HuggingFace tokenizer.json file.
type Chunker struct {
	cfg ChunkerConfig
	enc *tiktoken.Tiktoken
}

func NewChunker(cfg ChunkerConfig) (*Chunker, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 800
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg, enc: enc}, nil
}

// Chunk splits text into sliding token windows. Each window's character
// span is recovered by re-decoding the prefix up to its boundary tokens,
// since tiktoken-go does not expose per-token byte offsets.
func (c *Chunker) Chunk(text string) ([]models.Chunk, error) {
	if text == "" {
		return nil, nil
	}

	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil, nil
	}

	stride := c.cfg.ChunkSize - c.cfg.Overlap
	if stride <= 0 {
		stride = c.cfg.ChunkSize
	}

	var chunks []models.Chunk
	seq := 0
	for start := 0; start < len(tokens); start += stride {
		end := start + c.cfg.ChunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		windowTokens := tokens[start:end]
		chunkText := c.enc.Decode(windowTokens)

		startChar := len(c.enc.Decode(tokens[:start]))
		endChar := startChar + len(chunkText)

		chunks = append(chunks, models.Chunk{
			Seq:        seq,
			Text:       chunkText,
			StartChar:  startChar,
			EndChar:    endChar,
			StartToken: start,
			EndToken:   end,
		})
		seq++

		if end >= len(tokens) {
			break
		}
	}
	return chunks, nil
}

// ChunkStats summarizes how a given body would be chunked, without
// materializing the chunk text.
type ChunkStats struct {
	TotalTokens     int
	ChunkSize       int
	Overlap         int
	EstimatedChunks int
}

func (c *Chunker) Stats(text string) ChunkStats {
	tokens := c.enc.Encode(text, nil, nil)
	stride := c.cfg.ChunkSize - c.cfg.Overlap
	estimated := 0
	if stride > 0 && len(tokens) > 0 {
		estimated = (len(tokens) + stride - 1) / stride
	}
	return ChunkStats{
		TotalTokens:     len(tokens),
		ChunkSize:       c.cfg.ChunkSize,
		Overlap:         c.cfg.Overlap,
		EstimatedChunks: estimated,
	}
}
