package vectorindex

import "testing"

func TestChunker_EmptyText(t *testing.T) {
	c, err := NewChunker(DefaultChunkerConfig())
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	chunks, err := c.Chunk("")
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected 0 chunks for empty text, got %d", len(chunks))
	}
}

func TestChunker_ShortTextFitsOneChunk(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{ChunkSize: 200, Overlap: 10, Encoding: "cl100k_base"})
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	chunks, err := c.Chunk("This is a short text that fits in one chunk.")
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Seq != 0 {
		t.Fatalf("expected single chunk with seq 0, got %+v", chunks)
	}
}

func TestChunker_LongTextSplitsWithSequentialSeq(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{ChunkSize: 10, Overlap: 2, Encoding: "cl100k_base"})
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	text := ""
	for i := 0; i < 100; i++ {
		text += "This is a sample sentence. "
	}
	chunks, err := c.Chunk(text)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) <= 1 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Seq != i {
			t.Fatalf("expected sequential seq, chunk %d has seq %d", i, ch.Seq)
		}
	}
	if chunks[1].StartToken >= chunks[0].EndToken {
		t.Fatal("expected overlap between consecutive chunks")
	}
}
