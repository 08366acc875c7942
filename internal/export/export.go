package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pharmgpt/internal/model"
)

// Format selects the export rendering.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// ErrUnsupportedFormat is returned for formats Render does not know.
var ErrUnsupportedFormat = fmt.Errorf("unsupported export format")

// ContentType returns the MIME type for the rendered export.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension returns the file extension for download filenames.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

// ParseFormat normalizes a format query parameter. Empty defaults to markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "plain":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Render serializes a conversation and its messages.
func Render(format Format, conversation *model.Conversation, messages []model.Message) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return renderMarkdown(conversation, messages), nil
	case FormatText:
		return renderText(conversation, messages), nil
	case FormatJSON:
		return renderJSON(conversation, messages)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func renderMarkdown(conversation *model.Conversation, messages []model.Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", conversation.Title)
	fmt.Fprintf(&b, "Exported: %s\n\n", time.Now().Format("2006-01-02 15:04"))
	for _, m := range messages {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", roleLabel(m.Role), m.Content)
	}
	return []byte(b.String())
}

func renderText(conversation *model.Conversation, messages []model.Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n\n", conversation.Title, strings.Repeat("=", len(conversation.Title)))
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s\n\n", roleLabel(m.Role), m.Content)
	}
	return []byte(b.String())
}

type jsonExport struct {
	Title      string        `json:"title"`
	ModelMode  string        `json:"model_mode"`
	CreatedAt  time.Time     `json:"created_at"`
	ExportedAt time.Time     `json:"exported_at"`
	Messages   []jsonMessage `json:"messages"`
}

type jsonMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func renderJSON(conversation *model.Conversation, messages []model.Message) ([]byte, error) {
	out := jsonExport{
		Title:      conversation.Title,
		ModelMode:  conversation.ModelMode,
		CreatedAt:  conversation.CreatedAt,
		ExportedAt: time.Now(),
		Messages:   make([]jsonMessage, 0, len(messages)),
	}
	for _, m := range messages {
		out.Messages = append(out.Messages, jsonMessage{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export failed: %w", err)
	}
	return data, nil
}

func roleLabel(role string) string {
	switch role {
	case "assistant":
		return "Assistant"
	case "system":
		return "System"
	default:
		return "User"
	}
}
