package rag

import (
	"strings"
	"testing"
)

func TestSplitEmpty(t *testing.T) {
	s := NewSplitter(1000, 200)
	if got := s.Split(""); got != nil {
		t.Fatalf("Split(\"\") = %v, want nil", got)
	}
	if got := s.Split("   \n  "); got != nil {
		t.Fatalf("Split(whitespace) = %v, want nil", got)
	}
}

func TestSplitShortText(t *testing.T) {
	s := NewSplitter(1000, 200)
	chunks := s.Split("aspirin inhibits cyclooxygenase\n\nibuprofen does too")
	if len(chunks) != 1 {
		t.Fatalf("Split() returned %d chunks, want 1", len(chunks))
	}
	if !strings.Contains(chunks[0], "aspirin") || !strings.Contains(chunks[0], "ibuprofen") {
		t.Fatalf("chunk dropped content: %q", chunks[0])
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("a", 60)
	para2 := strings.Repeat("b", 60)
	s := NewSplitter(80, 20)
	chunks := s.Split(para1 + "\n\n" + para2)
	if len(chunks) != 2 {
		t.Fatalf("Split() returned %d chunks, want 2: %q", len(chunks), chunks)
	}
	if chunks[0] != para1 || chunks[1] != para2 {
		t.Fatalf("chunks did not break on paragraph boundary: %q", chunks)
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("pharmacokinetics ")
	}
	s := NewSplitter(100, 20)
	chunks := s.Split(b.String())
	if len(chunks) < 2 {
		t.Fatalf("Split() returned %d chunks, want several", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 100 {
			t.Fatalf("chunk %d has %d runes, exceeds size 100", i, n)
		}
	}
}

func TestSplitOversizedPart(t *testing.T) {
	// One paragraph far larger than the chunk size must still be cut down.
	big := strings.Repeat("x", 250)
	s := NewSplitter(100, 20)
	chunks := s.Split("intro\n\n" + big)
	for i, c := range chunks {
		if n := len([]rune(c)); n > 100 {
			t.Fatalf("chunk %d has %d runes, exceeds size 100", i, n)
		}
	}
	joined := strings.Join(chunks, "")
	if !strings.Contains(joined, "xxxx") {
		t.Fatalf("oversized part content lost: %q", chunks)
	}
}

func TestSplitNoSeparatorFallback(t *testing.T) {
	text := strings.Repeat("z", 230)
	s := NewSplitter(100, 20)
	chunks := s.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("Split() returned %d chunks, want 3", len(chunks))
	}
	// Windows advance by size-overlap, so consecutive chunks share 20 runes.
	if len(chunks[0]) != 100 || len(chunks[1]) != 100 {
		t.Fatalf("unexpected window sizes: %d, %d", len(chunks[0]), len(chunks[1]))
	}
	if len(chunks[2]) != 230-2*80 {
		t.Fatalf("tail chunk has %d runes, want %d", len(chunks[2]), 230-2*80)
	}
}

func TestNormalizeText(t *testing.T) {
	raw := "  drug\x00 interactions\n\nsecond paragraph  "
	got := NormalizeText(raw)
	if strings.Contains(got, "\x00") {
		t.Fatalf("NormalizeText left NUL byte: %q", got)
	}
	if !strings.Contains(got, "\n\n") {
		t.Fatalf("NormalizeText dropped paragraph boundary: %q", got)
	}
	if strings.HasPrefix(got, " ") || strings.HasSuffix(got, " ") {
		t.Fatalf("NormalizeText did not trim: %q", got)
	}
}
