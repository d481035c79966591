package docparse

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// docxDocument mirrors the subset of word/document.xml we read: paragraphs of
// runs of text, plus explicit page breaks for page counting.
type docxDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Texts  []string   `xml:"t"`
	Breaks []docxBreak `xml:"br"`
}

type docxBreak struct {
	Type string `xml:"type,attr"`
}

// parseDOCX extracts paragraph text from the word/document.xml entry. Pages
// are counted from explicit page breaks; most loan forms carry them.
func parseDOCX(data []byte) (*Result, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening docx: %w", err)
	}

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("word/document.xml not found in docx")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("opening document.xml: %w", err)
	}
	defer rc.Close()

	xmlData, err := io.ReadAll(io.LimitReader(rc, maxTextBytes))
	if err != nil {
		return nil, fmt.Errorf("reading document.xml: %w", err)
	}

	var doc docxDocument
	if err := xml.Unmarshal(xmlData, &doc); err != nil {
		return nil, fmt.Errorf("parsing docx xml: %w", err)
	}

	pageCount := 1
	var sb strings.Builder
	for i, p := range doc.Body.Paragraphs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		for _, run := range p.Runs {
			for _, t := range run.Texts {
				sb.WriteString(t)
			}
			for _, br := range run.Breaks {
				if br.Type == "page" {
					pageCount++
				}
			}
		}
	}

	return &Result{
		Text:      sb.String(),
		PageCount: pageCount,
		FileType:  MIMEDocx,
	}, nil
}
