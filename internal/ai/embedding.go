package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// EmbeddingConfig holds API settings for text embedding (OpenAI-compatible).
// Dimension, when set, is sent as the "dimensions" request field so the
// provider shortens its native vectors to match the storage column.
type EmbeddingConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
}

// Embed returns the embedding vector for a single text.
func (c *OpenAICompatibleClient) Embed(ctx context.Context, cfg EmbeddingConfig, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("embedding input is empty")
	}
	result, err := c.EmbedBatch(ctx, cfg, []string{text})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || len(result[0]) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	return result[0], nil
}

// EmbedBatch returns embeddings for multiple texts in one request.
func (c *OpenAICompatibleClient) EmbedBatch(ctx context.Context, cfg EmbeddingConfig, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	trimmed := make([]string, 0, len(texts))
	for _, t := range texts {
		if s := strings.TrimSpace(t); s != "" {
			trimmed = append(trimmed, s)
		}
	}
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("no non-empty texts for embedding")
	}

	reqBody := map[string]interface{}{
		"model": cfg.Model,
		"input": trimmed,
	}
	if cfg.Dimension > 0 {
		reqBody["dimensions"] = cfg.Dimension
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request failed: %w", err)
	}

	url := strings.TrimRight(cfg.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build embedding request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding json failed: %w", err)
	}
	if len(parsed.Data) != len(trimmed) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(parsed.Data), len(trimmed))
	}
	result := make([][]float32, len(parsed.Data))
	for i := range parsed.Data {
		if cfg.Dimension > 0 && len(parsed.Data[i].Embedding) != cfg.Dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d",
				len(parsed.Data[i].Embedding), cfg.Dimension)
		}
		result[i] = parsed.Data[i].Embedding
	}
	return result, nil
}
