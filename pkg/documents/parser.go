// Package documents implements the Document Context Pipeline (L9):
// sanitised upload storage, per-format parsing, rule-based analysis
// into a store.DocumentContext, and the fire-and-forget fan-out that
// notifies the live room and kicks an immediate extraction (§4.9).
package documents

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// MaxPDFPages caps how many pages of a PDF are read into chunks, since
// uploaded consultation documents are briefs, not books.
const MaxPDFPages = 100

// MaxExcelRows caps how many rows per sheet are read into chunks.
const MaxExcelRows = 2000

// ParsedDocument is one file's extracted content, split into chunks for
// the analyzer. Chunks never survive past analysis (§4.9: "strip chunks
// before persistence").
type ParsedDocument struct {
	Filename string
	Chunks   []string
}

// SupportedExtensions is the closed set of extensions the upload route
// accepts (§4.8 "Documents").
var SupportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".xlsx": true,
	".xls":  true,
	".txt":  true,
	".md":   true,
}

// AllowedMIMETypes lists the MIME types accepted per extension, with
// application/octet-stream always allowed as a fallback since some
// browsers send it regardless of the real file type.
var AllowedMIMETypes = map[string]map[string]bool{
	".pdf":  {"application/pdf": true},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true},
	".xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true},
	".xls":  {"application/vnd.ms-excel": true},
	".txt":  {"text/plain": true},
	".md":   {"text/plain": true, "text/markdown": true},
}

// ValidateMIME reports whether contentType is acceptable for ext. An
// empty contentType (no header sent) is always accepted; a non-empty
// one must match the allowlist or be the generic fallback.
func ValidateMIME(ext, contentType string) bool {
	if contentType == "" || contentType == "application/octet-stream" {
		return true
	}
	allowed, ok := AllowedMIMETypes[ext]
	if !ok {
		return true
	}
	return allowed[contentType]
}

// Parser reads a saved upload from disk and extracts its text into
// chunks, routing by extension the way the original DocumentParser does.
// Parse never returns an error for an unparseable file; it returns a nil
// ParsedDocument instead so the caller can skip it and keep going
// (spec: "returns null on unparseable file, never raises").
type Parser struct{}

// NewParser builds a Parser. Parser holds no state; every Parse call is
// independent.
func NewParser() *Parser {
	return &Parser{}
}

// Parse dispatches to the format-specific parser for path's extension.
func (p *Parser) Parse(path string) *ParsedDocument {
	ext := strings.ToLower(filepath.Ext(path))
	filename := filepath.Base(path)

	var chunks []string
	var err error
	switch ext {
	case ".pdf":
		chunks, err = parsePDF(path)
	case ".xlsx", ".xls":
		chunks, err = parseExcel(path)
	case ".docx":
		chunks, err = parseDocx(path)
	case ".txt", ".md":
		chunks, err = parsePlainText(path)
	default:
		return nil
	}
	if err != nil || len(chunks) == 0 {
		return nil
	}
	return &ParsedDocument{Filename: filename, Chunks: chunks}
}

func parsePDF(path string) ([]string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("documents: open pdf: %w", err)
	}
	defer file.Close()

	totalPages := reader.NumPage()
	limit := totalPages
	if limit > MaxPDFPages {
		limit = MaxPDFPages
	}

	var chunks []string
	for pageNum := 1; pageNum <= limit; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" {
			chunks = append(chunks, text)
		}
	}
	return chunks, nil
}

func parseExcel(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("documents: open excel: %w", err)
	}
	defer f.Close()

	var chunks []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		if len(rows) > MaxExcelRows {
			rows = rows[:MaxExcelRows]
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Sheet: %s\n", sheetName)
		for _, row := range rows {
			b.WriteString(strings.Join(row, " | "))
			b.WriteString("\n")
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			chunks = append(chunks, text)
		}
	}
	return chunks, nil
}

func parsePlainText(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("documents: read text: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}
