package extraction

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// offsetVerifyThreshold is the minimum fuzzy similarity between a translated
// raw substring and the span the model quoted before offsets are trusted.
const offsetVerifyThreshold = 0.7

// matchBlock is one run of identical bytes present in both representations.
type matchBlock struct {
	raw  int
	md   int
	size int
}

// OffsetTranslator maps byte offsets between a document's raw text and its
// markdown-normalized form. It builds a matching-blocks table once and
// answers lookups by in-block mapping or linear interpolation across gaps.
// When no markdown form exists it runs in pass-through mode.
type OffsetTranslator struct {
	raw         string
	markdown    string
	blocks      []matchBlock
	passThrough bool
}

// NewOffsetTranslator builds the block table. Near-linear for the similar
// texts OCR produces; the table is immutable afterwards and safe for
// concurrent readers.
func NewOffsetTranslator(rawText, markdownText string) *OffsetTranslator {
	t := &OffsetTranslator{raw: rawText, markdown: markdownText}
	if markdownText == "" || rawText == markdownText {
		t.passThrough = true
		return t
	}
	m := difflib.NewMatcher(splitBytes(rawText), splitBytes(markdownText))
	for _, blk := range m.GetMatchingBlocks() {
		if blk.Size == 0 {
			continue
		}
		t.blocks = append(t.blocks, matchBlock{raw: blk.A, md: blk.B, size: blk.Size})
	}
	return t
}

func splitBytes(s string) []string {
	out := make([]string, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = s[i : i+1]
	}
	return out
}

// ToRaw translates a [start, end) range in the markdown text to raw-text
// offsets.
func (t *OffsetTranslator) ToRaw(start, end int) (int, int, bool) {
	if t.passThrough {
		return t.checked(start, end, len(t.raw))
	}
	s, okS := t.translate(start, false)
	e, okE := t.translate(end, false)
	if !okS || !okE {
		return 0, 0, false
	}
	return t.checked(s, e, len(t.raw))
}

// ToMarkdown translates a [start, end) range in the raw text to markdown
// offsets.
func (t *OffsetTranslator) ToMarkdown(start, end int) (int, int, bool) {
	if t.passThrough {
		return t.checked(start, end, len(t.raw))
	}
	s, okS := t.translate(start, true)
	e, okE := t.translate(end, true)
	if !okS || !okE {
		return 0, 0, false
	}
	return t.checked(s, e, len(t.markdown))
}

func (t *OffsetTranslator) checked(start, end, limit int) (int, int, bool) {
	if end > limit {
		end = limit
	}
	if start < 0 || start >= end {
		return 0, 0, false
	}
	return start, end, true
}

// translate maps a single offset across the block table. fromRaw selects the
// direction. Offsets inside a block map exactly; offsets in a gap are
// linearly interpolated between the surrounding blocks, with the text
// extremes acting as zero-width sentinel blocks.
func (t *OffsetTranslator) translate(o int, fromRaw bool) (int, bool) {
	srcLen, dstLen := len(t.markdown), len(t.raw)
	if fromRaw {
		srcLen, dstLen = len(t.raw), len(t.markdown)
	}
	if o < 0 || o > srcLen {
		return 0, false
	}

	prevSrcEnd, prevDstEnd := 0, 0
	for _, blk := range t.blocks {
		src, dst := blk.md, blk.raw
		if fromRaw {
			src, dst = blk.raw, blk.md
		}
		if o >= src && o < src+blk.size {
			return dst + (o - src), true
		}
		if o < src {
			return interpolate(o, prevSrcEnd, src, prevDstEnd, dst), true
		}
		prevSrcEnd, prevDstEnd = src+blk.size, dst+blk.size
	}
	return interpolate(o, prevSrcEnd, srcLen, prevDstEnd, dstLen), true
}

func interpolate(o, srcLo, srcHi, dstLo, dstHi int) int {
	gapSrc := srcHi - srcLo
	gapDst := dstHi - dstLo
	if gapSrc <= 0 {
		return dstLo
	}
	return dstLo + (o-srcLo)*gapDst/gapSrc
}

// Verify re-extracts the raw substring at [start, end) and fuzz-compares it
// with the span the model quoted.
func (t *OffsetTranslator) Verify(start, end int, want string) bool {
	if start < 0 || end > len(t.raw) || start >= end {
		return false
	}
	return similarityRatio(t.raw[start:end], want) >= offsetVerifyThreshold
}

// Locate finds span in the prompt-side text (markdown when present),
// preferring the occurrence nearest hint, translates it to raw offsets, and
// verifies the landing. Nil offsets mean the span could not be placed; the
// source reference stays valid without a precise range.
func (t *OffsetTranslator) Locate(span string, hint int) (*int64, *int64) {
	if span == "" {
		return nil, nil
	}
	side := t.markdown
	if t.passThrough {
		side = t.raw
	}
	idx := nearestIndex(side, span, hint)
	if idx < 0 {
		return nil, nil
	}
	s, e, ok := t.ToRaw(idx, idx+len(span))
	if !ok || !t.Verify(s, e, span) {
		return nil, nil
	}
	cs, ce := int64(s), int64(e)
	return &cs, &ce
}

// nearestIndex returns the start of the occurrence of needle in s closest to
// hint, or -1.
func nearestIndex(s, needle string, hint int) int {
	best := -1
	from := 0
	for {
		i := strings.Index(s[from:], needle)
		if i < 0 {
			break
		}
		pos := from + i
		if best < 0 || absInt(pos-hint) < absInt(best-hint) {
			best = pos
		}
		from = pos + 1
	}
	return best
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
