// Package docparse extracts text from uploaded loan documents in-process:
// native PDF text, DOCX paragraphs, and plain text. It also detects the file
// type from magic bytes and decides whether a PDF looks like a scan that
// needs OCR.
package docparse

import (
	"fmt"
	"strings"
)

// Result is the parsed form of a document.
type Result struct {
	// Text is the extracted text body.
	Text string
	// PageCount is 1 when the format has no page concept.
	PageCount int
	// Scanned is true when the document carries too little native text per
	// page and should go through OCR.
	Scanned bool
	// FileType is the detected MIME type.
	FileType string
}

// MIME types the parser recognizes.
const (
	MIMEPDF  = "application/pdf"
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
	MIMETIFF = "image/tiff"
	MIMEText = "text/plain"
)

// DetectMIME sniffs the file type from magic bytes, falling back to the
// filename extension and finally to text/plain.
func DetectMIME(data []byte, filename string) string {
	switch {
	case len(data) >= 4 && string(data[:4]) == "%PDF":
		return MIMEPDF
	case len(data) >= 8 && string(data[:4]) == "\x89PNG":
		return MIMEPNG
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return MIMEJPEG
	case len(data) >= 4 && (string(data[:4]) == "II*\x00" || string(data[:4]) == "MM\x00*"):
		return MIMETIFF
	case len(data) >= 4 && string(data[:2]) == "PK":
		if strings.HasSuffix(strings.ToLower(filename), ".docx") {
			return MIMEDocx
		}
		return "application/zip"
	}
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".pdf"):
		return MIMEPDF
	case strings.HasSuffix(strings.ToLower(filename), ".docx"):
		return MIMEDocx
	}
	return MIMEText
}

// Supported reports whether Parse can handle the MIME type. Images are
// accepted at upload but only produce text through OCR.
func Supported(mime string) bool {
	switch mime {
	case MIMEPDF, MIMEDocx, MIMEText, MIMEPNG, MIMEJPEG, MIMETIFF:
		return true
	}
	return false
}

// Parse extracts text from document bytes. Image formats yield an empty,
// scanned-flagged result: their text only exists behind OCR.
func Parse(data []byte, filename string) (*Result, error) {
	mime := DetectMIME(data, filename)
	switch mime {
	case MIMEPDF:
		return parsePDF(data), nil
	case MIMEDocx:
		return parseDOCX(data)
	case MIMEPNG, MIMEJPEG, MIMETIFF:
		return &Result{PageCount: 1, Scanned: true, FileType: mime}, nil
	case MIMEText:
		return &Result{Text: string(data), PageCount: 1, FileType: MIMEText}, nil
	}
	return nil, fmt.Errorf("unsupported file type %q", mime)
}
