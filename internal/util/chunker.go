package util

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// SegmentText splits text into overlapping chunks of at most maxChunkSize runes,
// preferring sentence ends, then word gaps, then a hard cut. Each chunk is a raw
// slice of the whitespace-normalized text, so dropping the overlapping prefix of
// every chunk after the first and concatenating gives back the normalized text.
func SegmentText(text string, maxChunkSize, overlap int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	norm := NormalizeWhitespace(text)
	if norm == "" {
		return nil
	}
	runes := []rune(norm)
	if len(runes) <= maxChunkSize {
		return []string{norm}
	}

	out := make([]string, 0, len(runes)/maxChunkSize+2)
	start := 0
	for start < len(runes) {
		end := start + maxChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		cut := end
		if end < len(runes) {
			cut = breakPoint(runes, start, end, maxChunkSize)
		}
		if part := string(runes[start:cut]); strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
		if cut >= len(runes) {
			break
		}
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return out
}

// breakPoint returns the exclusive end of the chunk starting at start whose
// window ends at end.
func breakPoint(runes []rune, start, end, maxChunkSize int) int {
	from := start + maxChunkSize/2
	for i := end - 1; i >= from; i-- {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}
	for i := end; i > start; i-- {
		if i < len(runes) && runes[i] == ' ' {
			return i
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// NormalizeWhitespace collapses every whitespace run to a single space.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
