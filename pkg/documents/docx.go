package documents

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// wordDocumentXMLPart is the fixed OOXML part name holding a .docx's
// body text. No dedicated docx library is wired since none of the
// example pack imports one; this is a narrow reader for exactly the
// text runs the analyzer needs, not a general OOXML writer/editor.
const wordDocumentXMLPart = "word/document.xml"

type wordBody struct {
	XMLName xml.Name   `xml:"document"`
	Body    wordBodyEl `xml:"body"`
}

type wordBodyEl struct {
	Paragraphs []wordParagraph `xml:"p"`
}

type wordParagraph struct {
	Runs []wordRun `xml:"r"`
}

type wordRun struct {
	Text string `xml:"t"`
}

// parseDocx extracts the paragraph text of a .docx file's main document
// part, returning one chunk per non-empty paragraph.
func parseDocx(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("documents: open docx: %w", err)
	}
	defer zr.Close()

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == wordDocumentXMLPart {
			part = f
			break
		}
	}
	if part == nil {
		return nil, fmt.Errorf("documents: %s missing from docx", wordDocumentXMLPart)
	}

	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("documents: read docx body: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("documents: read docx body: %w", err)
	}

	var doc wordBody
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("documents: parse docx xml: %w", err)
	}

	var chunks []string
	for _, p := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, r := range p.Runs {
			b.WriteString(r.Text)
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			chunks = append(chunks, text)
		}
	}
	return chunks, nil
}
