package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseStreamLine(t *testing.T) {
	cases := []struct {
		line    string
		payload string
		done    bool
	}{
		{`data: {"choices":[]}`, `{"choices":[]}`, false},
		{"data: [DONE]", "", true},
		{"", "", false},
		{": keep-alive comment", "", false},
		{"event: ping", "", false},
	}
	for _, tc := range cases {
		payload, done := parseStreamLine(tc.line)
		if payload != tc.payload || done != tc.done {
			t.Fatalf("parseStreamLine(%q) = (%q, %v), want (%q, %v)",
				tc.line, payload, done, tc.payload, tc.done)
		}
	}
}

func TestExtractStreamDelta(t *testing.T) {
	if got := extractStreamDelta(`{"choices":[{"delta":{"content":"Warfarin"}}]}`); got != "Warfarin" {
		t.Fatalf("extractStreamDelta() = %q", got)
	}
	if got := extractStreamDelta(`{"choices":[]}`); got != "" {
		t.Fatalf("empty choices yielded %q", got)
	}
	if got := extractStreamDelta("not json"); got != "" {
		t.Fatalf("malformed event yielded %q", got)
	}
}

func TestStreamCompleteCollectsDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{"Warfarin ", "inhibits ", "VKORC1."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	var chunks []string
	full, err := client.StreamComplete(context.Background(),
		ChatConfig{BaseURL: srv.URL, Model: "llama-3.1-8b-instant"},
		[]ChatMessage{{Role: "user", Content: "mechanism of warfarin"}},
		func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
	if err != nil {
		t.Fatalf("StreamComplete() error = %v", err)
	}
	if full != "Warfarin inhibits VKORC1." {
		t.Fatalf("full reply = %q", full)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
}
