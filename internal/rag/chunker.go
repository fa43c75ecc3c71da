package rag

import (
	"regexp"
	"strings"
)

var (
	hyphenBreakRe = regexp.MustCompile(`-\s*\n\s*`)
	blankLinesRe  = regexp.MustCompile(`\n{2,}`)
	hspaceRunsRe  = regexp.MustCompile(`[ \t]{2,}`)
)

// Normalize cleans raw extracted text before chunking: words hyphenated
// across line breaks are rejoined, runs of blank lines collapse to a single
// newline, runs of horizontal whitespace collapse to a single space, and the
// result is trimmed.
func Normalize(text string) string {
	if text == "" {
		return text
	}
	text = hyphenBreakRe.ReplaceAllString(text, "")
	text = blankLinesRe.ReplaceAllString(text, "\n")
	text = hspaceRunsRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Split cuts normalized text into segments of at most chunkSize runes, each
// sharing the trailing overlap runes of its predecessor. Empty input yields
// no segments. Removing the overlap-length prefix of every segment but the
// first and concatenating reconstructs the input exactly.
func Split(text string, chunkSize, overlap int) []string {
	if text == "" || chunkSize <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	runes := []rune(text)
	total := len(runes)
	if total <= chunkSize {
		return []string{text}
	}
	step := chunkSize - overlap
	segments := make([]string, 0, (total+step-1)/step)
	for start := 0; start < total; start += step {
		end := start + chunkSize
		if end > total {
			end = total
		}
		segments = append(segments, string(runes[start:end]))
		if end == total {
			break
		}
	}
	return segments
}

// ChunkPages normalizes each extracted page and splits the joined result.
// Pages are joined with a newline so segment boundaries cannot glue the last
// word of one page to the first word of the next.
func ChunkPages(pages []string, chunkSize, overlap int) []string {
	cleaned := make([]string, 0, len(pages))
	for _, p := range pages {
		if n := Normalize(p); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	return Split(strings.Join(cleaned, "\n"), chunkSize, overlap)
}
