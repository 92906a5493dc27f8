package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbed(t *testing.T) {
	var gotReq embedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(embedResponse{
			Model:      "nomic-embed-text",
			Embeddings: [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer server.Close()

	e := NewOllamaEmbedder(server.URL, "nomic-embed-text")

	vec, err := e.Embed(context.Background(), "What is X?")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(vec) != 3 {
		t.Errorf("Expected 3 dimensions, got %d", len(vec))
	}
	if gotReq.Model != "nomic-embed-text" || gotReq.Input != "What is X?" {
		t.Errorf("Unexpected request: %+v", gotReq)
	}
}

func TestEmbedEmptyText(t *testing.T) {
	e := NewOllamaEmbedder("http://localhost:11434", "nomic-embed-text")

	if _, err := e.Embed(context.Background(), ""); err == nil {
		t.Error("Expected error for empty text")
	}
}

func TestEmbedNoEmbeddings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Model: "nomic-embed-text"})
	}))
	defer server.Close()

	e := NewOllamaEmbedder(server.URL, "nomic-embed-text")

	if _, err := e.Embed(context.Background(), "What is X?"); err == nil {
		t.Error("Expected error for empty embeddings response")
	}
}

func TestEmbedServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	e := NewOllamaEmbedder(server.URL, "missing-model")

	if _, err := e.Embed(context.Background(), "What is X?"); err == nil {
		t.Error("Expected error for non-200 status")
	}
}
