package rag

import "strings"

// defaultSeparators are tried in order of preference. The empty string is a
// marker for plain character slicing.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts document text into overlapping chunks. It prefers breaking on
// paragraph and line boundaries, falling back to word boundaries and finally
// to raw character slices for text with no usable separator.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewSplitter returns a Splitter with the given chunk size and overlap.
// Invalid values are clamped to something workable.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	return &Splitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   defaultSeparators,
	}
}

// Split breaks text into chunks of at most ChunkSize runes. Parts longer than
// ChunkSize are re-cut into overlapping slices so no chunk exceeds the limit.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	separators := s.Separators
	if len(separators) == 0 {
		separators = defaultSeparators
	}

	for _, sep := range separators {
		if sep == "" || !strings.Contains(text, sep) {
			continue
		}
		return s.splitBySeparator(text, sep)
	}

	return s.sliceRunes(text)
}

func (s *Splitter) splitBySeparator(text, sep string) []string {
	var chunks []string
	var current string

	for _, part := range strings.Split(text, sep) {
		candidate := part
		if current != "" {
			candidate = current + sep + part
		}
		if runeLen(candidate) <= s.ChunkSize {
			current = candidate
			continue
		}
		if current != "" {
			chunks = append(chunks, current)
		}
		current = part

		// A single part can still exceed the chunk size. Cut it down to
		// overlapping slices and keep the tail as the running chunk.
		for runeLen(current) > s.ChunkSize {
			runes := []rune(current)
			chunks = append(chunks, string(runes[:s.ChunkSize]))
			current = string(runes[s.ChunkSize-s.ChunkOverlap:])
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// sliceRunes splits text into fixed windows with overlap. Used when no
// separator applies.
func (s *Splitter) sliceRunes(text string) []string {
	runes := []rune(text)
	step := s.ChunkSize - s.ChunkOverlap
	if step <= 0 {
		step = s.ChunkSize
	}
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func runeLen(s string) int {
	return len([]rune(s))
}

// NormalizeText collapses whitespace runs and strips NUL bytes and invalid
// UTF-8 so extracted document text is safe to store and embed.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return text
}
