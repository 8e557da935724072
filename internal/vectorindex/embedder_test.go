package vectorindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenAIEmbedder_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(OpenAIEmbedderConfig{}); err == nil {
		t.Fatal("expected error when API key is missing")
	}
}

func TestOpenAIEmbedder_DefaultsAndDimension(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIEmbedderConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder: %v", err)
	}
	if e.Dimension() != 1536 {
		t.Fatalf("expected default dimension 1536, got %d", e.Dimension())
	}
	if e.MaxBatchSize() != 2048 {
		t.Fatalf("expected max batch size 2048, got %d", e.MaxBatchSize())
	}
	if e.Name() != "openai" {
		t.Fatalf("unexpected name: %q", e.Name())
	}
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Fatalf("unexpected model: %q", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{3, 4}})
	}))
	defer server.Close()

	e := NewOllamaEmbedder(OllamaEmbedderConfig{BaseURL: server.URL})
	vec, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("expected 2-dim vector, got %d", len(vec))
	}
	// normalize([3,4]) == [0.6, 0.8]
	if vec[0] < 0.59 || vec[0] > 0.61 || vec[1] < 0.79 || vec[1] > 0.81 {
		t.Fatalf("expected normalized vector [0.6, 0.8], got %v", vec)
	}
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{1, 0}})
	}))
	defer server.Close()

	e := NewOllamaEmbedder(OllamaEmbedderConfig{BaseURL: server.URL})
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
}

func TestOllamaEmbedder_DefaultsAndDimension(t *testing.T) {
	e := NewOllamaEmbedder(OllamaEmbedderConfig{})
	if e.Dimension() != 768 {
		t.Fatalf("expected default dimension 768, got %d", e.Dimension())
	}
	if e.MaxBatchSize() != 100 {
		t.Fatalf("expected max batch size 100, got %d", e.MaxBatchSize())
	}
}
