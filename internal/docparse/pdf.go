package docparse

import (
	"bytes"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// maxTextBytes caps extracted text so a pathological PDF cannot balloon
	// memory.
	maxTextBytes = 4 << 20

	// scannedThreshold is the chars-per-page floor below which a PDF is
	// treated as a scan with no useful text layer.
	scannedThreshold = 50
)

// parsePDF extracts the native text layer. The pdf library panics on some
// malformed files, so the whole walk runs under recover; on any failure the
// result degrades to "scanned" and the OCR path takes over.
func parsePDF(data []byte) (result *Result) {
	result = &Result{PageCount: 1, Scanned: true, FileType: MIMEPDF}

	defer func() {
		if r := recover(); r != nil {
			result.Text = ""
			result.Scanned = true
			if result.PageCount < 1 {
				result.PageCount = 1
			}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		result.PageCount = countPDFPagesHeuristic(data)
		return result
	}

	result.PageCount = reader.NumPage()
	if result.PageCount < 1 {
		result.PageCount = 1
	}

	plainText, err := reader.GetPlainText()
	if err != nil {
		return result
	}
	textBytes, err := io.ReadAll(io.LimitReader(plainText, maxTextBytes))
	if err != nil {
		return result
	}

	result.Text = string(textBytes)
	result.Scanned = isLikelyScanned(result.Text, result.PageCount)
	return result
}

// isLikelyScanned reports whether the native text layer is too sparse to be a
// real text document.
func isLikelyScanned(text string, pages int) bool {
	if pages <= 0 {
		pages = 1
	}
	return len(strings.TrimSpace(text))/pages < scannedThreshold
}

// countPDFPagesHeuristic counts "/Type /Page" objects (excluding /Pages) when
// the library cannot open the file at all.
func countPDFPagesHeuristic(data []byte) int {
	content := string(data)
	count := 0
	idx := 0
	for {
		pos := strings.Index(content[idx:], "/Type /Page")
		if pos == -1 {
			break
		}
		absPos := idx + pos
		afterPage := absPos + len("/Type /Page")
		if afterPage >= len(content) || content[afterPage] != 's' {
			count++
		}
		idx = afterPage
	}
	if count < 1 {
		return 1
	}
	return count
}
