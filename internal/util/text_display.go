package util

import (
	"strings"
	"unicode"
)

const snippetEllipsis = "..."

// Common English and Indonesian words that say nothing about a page.
var snippetStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true, "were": true,
	"what": true, "how": true, "why": true, "which": true, "that": true, "this": true,
	"these": true, "those": true, "with": true, "from": true, "does": true, "into": true,
	"yang": true, "dan": true, "dari": true, "ini": true, "itu": true, "apa": true,
	"bagaimana": true, "mengapa": true, "untuk": true, "dengan": true, "pada": true, "adalah": true,
}

// DisplaySnippet returns s on one line, clipped to maxRunes at a word boundary.
func DisplaySnippet(s string, maxRunes int) string {
	return clipWords(displayText(s), maxRunes)
}

// DisplayEvidenceSnippet shows the part of text a reader should look at for
// query: the sentences starting at the one sharing the most words with query.
// Without a shared word it shows the start of text.
func DisplayEvidenceSnippet(text, query string, maxRunes int) string {
	text = displayText(text)
	terms := wordSet(query)
	sentences := splitSentences(text)
	best, bestScore := 0, 0
	for i, s := range sentences {
		score := 0
		for w := range wordSet(s) {
			if terms[w] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if bestScore == 0 {
		return clipWords(text, maxRunes)
	}
	return clipWords(strings.Join(sentences[best:], " "), maxRunes)
}

func displayText(s string) string {
	return NormalizeWhitespace(SanitizeText(s))
}

// splitSentences breaks where SegmentText would: a terminator followed by a
// space or the end of the text, so "3.14" stays whole.
func splitSentences(s string) []string {
	runes := []rune(s)
	var out []string
	start := 0
	for i, r := range runes {
		if !isSentenceEnd(r) || (i+1 < len(runes) && runes[i+1] != ' ') {
			continue
		}
		if part := strings.TrimSpace(string(runes[start : i+1])); part != "" {
			out = append(out, part)
		}
		start = i + 1
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

// wordSet holds the lowercased words of s that are three runes or longer and
// not stopwords.
func wordSet(s string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := make(map[string]bool, len(words))
	for _, w := range words {
		if len([]rune(w)) < 3 || snippetStopwords[w] {
			continue
		}
		out[w] = true
	}
	return out
}

func clipWords(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 200
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	cut := maxRunes
	for i := maxRunes; i > maxRunes/2; i-- {
		if runes[i] == ' ' {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])) + snippetEllipsis
}
