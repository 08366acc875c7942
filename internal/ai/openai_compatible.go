package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Completion calls wait on the provider end to end, so the client timeout
// has to cover slow generations, not just the round trip.
const completionTimeout = 90 * time.Second

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatConfig selects the provider endpoint and model for one completion call.
type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// OpenAICompatibleClient speaks the OpenAI chat-completions and embeddings
// wire format, which Groq, OpenRouter and Mistral all accept.
type OpenAICompatibleClient struct {
	httpClient *http.Client
}

func NewOpenAICompatibleClient() *OpenAICompatibleClient {
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Timeout: completionTimeout},
	}
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// startCompletion posts the completion request and hands back a response
// whose status has already been checked. Callers own the body.
func (c *OpenAICompatibleClient) startCompletion(ctx context.Context, cfg ChatConfig, messages []ChatMessage, stream bool) (*http.Response, error) {
	payload, err := json.Marshal(chatCompletionRequest{
		Model:    cfg.Model,
		Messages: messages,
		Stream:   stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal llm request failed: %w", err)
	}

	url := strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("llm response status %d: %s", resp.StatusCode, string(raw))
	}
	return resp, nil
}

// Complete runs a blocking chat completion and returns the full reply.
func (c *OpenAICompatibleClient) Complete(ctx context.Context, cfg ChatConfig, messages []ChatMessage) (string, error) {
	resp, err := c.startCompletion(ctx, cfg, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response failed: %w", err)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty llm choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// StreamComplete runs a streaming completion, invoking onChunk for each
// delta and returning the concatenated reply. A failing onChunk aborts the
// stream.
func (c *OpenAICompatibleClient) StreamComplete(
	ctx context.Context,
	cfg ChatConfig,
	messages []ChatMessage,
	onChunk func(chunk string) error,
) (string, error) {
	resp, err := c.startCompletion(ctx, cfg, messages, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var full strings.Builder
	for scanner.Scan() {
		payload, done := parseStreamLine(scanner.Text())
		if done {
			break
		}
		if payload == "" {
			continue
		}

		text := extractStreamDelta(payload)
		if text == "" {
			continue
		}
		full.WriteString(text)
		if err := onChunk(text); err != nil {
			return "", err
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan llm stream failed: %w", err)
	}
	return full.String(), nil
}

// parseStreamLine strips SSE framing from one line. done reports the
// terminal [DONE] marker.
func parseStreamLine(line string) (payload string, done bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	payload = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == "[DONE]" {
		return "", true
	}
	return payload, false
}

// extractStreamDelta pulls the content delta out of one stream event.
// Malformed or empty events are skipped rather than failing the stream.
func extractStreamDelta(payload string) string {
	var event struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return ""
	}
	if len(event.Choices) == 0 {
		return ""
	}
	return event.Choices[0].Delta.Content
}
