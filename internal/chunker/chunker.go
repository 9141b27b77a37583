// Package chunker splits extracted text into overlapping windows suitable for
// embedding. Splitting prefers natural boundaries: paragraph breaks first,
// then sentence ends, then whitespace, and only hard-cuts when a window has
// no boundary at all.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"docchat/internal/models"
)

// boundary lookback fraction: a natural break is only taken when it falls in
// the trailing part of the window, so chunks stay close to the target size.
const lookbackFraction = 2

// Split produces source-ordered chunks of at most size characters with the
// requested overlap between consecutive chunks. Empty input yields an empty
// sequence. overlap must be smaller than size.
func Split(text string, meta models.ChunkMeta, size, overlap int) ([]models.Chunk, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("size=%d overlap=%d: %w", size, overlap, models.ErrInvalidConfiguration)
	}
	if strings.TrimSpace(text) == "" {
		return []models.Chunk{}, nil
	}

	var chunks []models.Chunk
	contentLen := len(text)
	start := 0
	for start < contentLen {
		end := start + size
		if end >= contentLen {
			end = contentLen
		} else {
			end = findBoundary(text, start, end)
		}

		raw := text[start:end]
		content := strings.TrimSpace(raw)
		if content != "" {
			// Offsets point at the trimmed content within the source text,
			// so the left trim must match TrimSpace's predicate exactly.
			cStart := start + (len(raw) - len(strings.TrimLeftFunc(raw, unicode.IsSpace)))
			chunks = append(chunks, models.Chunk{
				DocumentID: meta.DocumentID,
				Filename:   meta.Filename,
				Index:      len(chunks),
				Content:    content,
				Start:      cStart,
				End:        cStart + len(content),
			})
		}

		if end == contentLen {
			break
		}
		next := end - overlap
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			// Overlap would stall on a short chunk; move past it.
			next = end
		}
		start = next
	}

	return chunks, nil
}

// findBoundary looks backwards from end for the best split point within the
// window's trailing region. Preference order: paragraph break, sentence end,
// any whitespace. Falls back to the hard cut at end.
func findBoundary(text string, start, end int) int {
	window := text[start:end]
	floor := len(window) - len(window)/lookbackFraction

	if i := strings.LastIndex(window, "\n\n"); i >= floor {
		return start + i + 2
	}
	if i := lastSentenceEnd(window); i >= floor {
		return start + i
	}
	if i := strings.LastIndexAny(window, " \t\n"); i >= floor {
		return start + i + 1
	}
	// A hard cut must not land inside a multi-byte rune.
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}

// lastSentenceEnd returns the index just past the last ". ", "? ", "! " or
// line break in s, or -1.
func lastSentenceEnd(s string) int {
	best := -1
	for _, sep := range []string{". ", "? ", "! ", "\n"} {
		if i := strings.LastIndex(s, sep); i >= 0 && i+len(sep) > best {
			best = i + len(sep)
		}
	}
	return best
}
