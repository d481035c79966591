package extraction

import "strings"

const (
	DefaultChunkMaxChars = 16000
	DefaultChunkOverlap  = 800
)

// Chunk is a substring of a document body with positional metadata. Offsets
// are byte offsets into the source text, inclusive start and exclusive end.
type Chunk struct {
	Index     int
	Total     int
	StartChar int
	EndChar   int
	Text      string
}

// Chunker splits a text body into overlapping chunks, preferring to break on
// paragraph boundaries near the end of each window.
type Chunker struct {
	maxChars int
	overlap  int
}

// NewChunker builds a chunker. Out-of-range parameters fall back to the
// defaults; overlap always stays below maxChars.
func NewChunker(maxChars, overlap int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultChunkMaxChars
	}
	if overlap < 0 || overlap >= maxChars {
		overlap = DefaultChunkOverlap
		if overlap >= maxChars {
			overlap = maxChars / 20
		}
	}
	return &Chunker{maxChars: maxChars, overlap: overlap}
}

// Split chunks text. Empty input yields a single empty chunk so downstream
// indexing stays uniform. Concatenating each chunk's non-overlapping suffix
// reconstructs the input exactly.
func (c *Chunker) Split(text string) []Chunk {
	if len(text) <= c.maxChars {
		return []Chunk{{Index: 0, Total: 1, StartChar: 0, EndChar: len(text), Text: text}}
	}

	var chunks []Chunk
	start := 0
	prevEnd := 0
	for start < len(text) {
		end := start + c.maxChars
		if end >= len(text) {
			end = len(text)
		} else if cut := c.paragraphCut(text, start, end); cut > prevEnd {
			end = cut
		}

		chunks = append(chunks, Chunk{StartChar: start, EndChar: end, Text: text[start:end]})
		if end == len(text) {
			break
		}
		prevEnd = end
		start = end - c.overlap
		// A paragraph cut early in the first window can put end below the
		// overlap; the next chunk then starts at the text head.
		if start < 0 {
			start = 0
		}
	}

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].Total = len(chunks)
	}
	return chunks
}

// paragraphCut returns the position just after the last paragraph boundary
// ("\n\n") in the final 20% of the window [start, end), or 0 when the window
// holds none and the caller should hard-cut.
func (c *Chunker) paragraphCut(text string, start, end int) int {
	windowStart := end - c.maxChars/5
	if windowStart < start {
		windowStart = start
	}
	idx := strings.LastIndex(text[windowStart:end], "\n\n")
	if idx < 0 {
		return 0
	}
	return windowStart + idx + 2
}

// inferPage maps a byte offset to a 1-based page number by assuming pages
// contribute text proportionally. It is the page attribution used when a
// strategy has no better signal.
func inferPage(offset, textLen, pageCount int) int {
	if pageCount <= 1 || textLen <= 0 {
		return 1
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= textLen {
		offset = textLen - 1
	}
	page := offset*pageCount/textLen + 1
	if page > pageCount {
		page = pageCount
	}
	return page
}
