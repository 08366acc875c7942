package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeEmbeddingProvider answers /embeddings with vectors of the requested
// dimension, or nativeDim when the request does not ask for one.
func fakeEmbeddingProvider(t *testing.T, nativeDim int, lastBody *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		*lastBody = body

		dim := nativeDim
		if raw, ok := body["dimensions"]; ok {
			dim = int(raw.(float64))
		}
		inputs := body["input"].([]interface{})

		type item struct {
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, len(inputs))
		for i := range data {
			data[i] = item{Embedding: make([]float32, dim)}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
}

func TestEmbedBatchSendsDimensions(t *testing.T) {
	var lastBody map[string]interface{}
	srv := fakeEmbeddingProvider(t, 1536, &lastBody)
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	cfg := EmbeddingConfig{BaseURL: srv.URL, Model: "text-embedding-3-small", Dimension: 384}

	vecs, err := client.EmbedBatch(context.Background(), cfg, []string{"warfarin", "heparin"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if got, ok := lastBody["dimensions"]; !ok || int(got.(float64)) != 384 {
		t.Fatalf("request dimensions = %v, want 384", lastBody["dimensions"])
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 384 {
			t.Fatalf("vector %d has %d dims, want 384", i, len(v))
		}
	}
}

func TestEmbedBatchRejectsWrongDimension(t *testing.T) {
	var lastBody map[string]interface{}
	// Provider ignores the requested dimension and answers with its native
	// size, as older deployments do.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&lastBody)
		vec := make([]float32, 1536)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"embedding": vec}},
		})
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	cfg := EmbeddingConfig{BaseURL: srv.URL, Model: "text-embedding-3-small", Dimension: 384}

	_, err := client.EmbedBatch(context.Background(), cfg, []string{"warfarin"})
	if err == nil {
		t.Fatal("expected dimension mismatch error, got nil")
	}
	if !strings.Contains(err.Error(), "dimension mismatch") {
		t.Fatalf("error = %v, want dimension mismatch", err)
	}
}

func TestEmbedBatchOmitsDimensionsWhenUnset(t *testing.T) {
	var lastBody map[string]interface{}
	srv := fakeEmbeddingProvider(t, 1536, &lastBody)
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	cfg := EmbeddingConfig{BaseURL: srv.URL, Model: "text-embedding-3-small"}

	vecs, err := client.EmbedBatch(context.Background(), cfg, []string{"warfarin"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if _, ok := lastBody["dimensions"]; ok {
		t.Fatalf("request carried dimensions = %v, want omitted", lastBody["dimensions"])
	}
	if len(vecs[0]) != 1536 {
		t.Fatalf("vector has %d dims, want provider native 1536", len(vecs[0]))
	}
}
