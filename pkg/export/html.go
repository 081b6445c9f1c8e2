package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// RenderPrintHTML wraps md in a styled, print-ready HTML document with
// a visible "Save as PDF" button that triggers the browser print
// dialog, hidden under the print media query (§4.10).
func RenderPrintHTML(md, companyName, sessionType string) []byte {
	typeLabel := "Consultation"
	if sessionType == "interview" {
		typeLabel = "Interview"
	}

	title := companyName
	if title == "" {
		title = "Anketa"
	}

	out := fmt.Sprintf(htmlTemplate, html.EscapeString(title), html.EscapeString(title), typeLabel, mdToHTML(md))
	return []byte(out)
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<style>
  @page { margin: 2cm; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', system-ui, sans-serif;
    max-width: 800px; margin: 0 auto; padding: 2rem;
    color: #1a1a2e; line-height: 1.6; font-size: 14px;
  }
  .header { border-bottom: 2px solid #6366f1; padding-bottom: 1rem; margin-bottom: 2rem; }
  .header h1 { color: #6366f1; margin: 0 0 0.25rem; font-size: 1.5rem; }
  .header .meta { color: #666; font-size: 0.85rem; }
  h2 { color: #312e81; border-bottom: 1px solid #e5e7eb; padding-bottom: 0.5rem; margin-top: 2rem; }
  h3 { color: #4338ca; margin-top: 1.5rem; }
  ul, ol { padding-left: 1.5rem; }
  li { margin-bottom: 0.25rem; }
  strong { color: #1e1b4b; }
  table { width: 100%%; border-collapse: collapse; margin: 1rem 0; }
  th, td { border: 1px solid #e5e7eb; padding: 0.5rem 0.75rem; text-align: left; }
  th { background: #f3f4f6; font-weight: 600; }
  blockquote {
    border-left: 3px solid #6366f1; margin: 1rem 0; padding: 0.5rem 1rem;
    background: #f8f7ff; font-style: italic;
  }
  .print-btn {
    position: fixed; top: 1rem; right: 1rem; padding: 0.5rem 1.5rem;
    background: #6366f1; color: white; border: none; border-radius: 0.5rem;
    cursor: pointer; font-size: 0.9rem; z-index: 100;
  }
  .print-btn:hover { background: #4f46e5; }
  @media print {
    .print-btn { display: none; }
    body { padding: 0; max-width: none; }
  }
</style>
</head>
<body>
<button class="print-btn" onclick="window.print()">Save as PDF</button>
<div class="header">
  <h1>%s</h1>
  <div class="meta">%s</div>
</div>
%s
</body>
</html>`

var (
	boldPattern   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicPattern = regexp.MustCompile(`\*(.+?)\*`)
)

// mdToHTML converts the subset of Markdown emitted by RenderMarkdown
// (headings, bold, italic, ordered/unordered lists, blockquotes,
// horizontal rules, tables) into HTML. It is a tiny hand-rolled
// recursive-descent-free line scanner, not a general Markdown parser.
func mdToHTML(md string) string {
	if strings.TrimSpace(md) == "" {
		return "<p>Anketa is empty</p>"
	}

	lines := strings.Split(md, "\n")
	var out []string
	inList, inOL, inQuote, inTable := false, false, false, false

	closeOpen := func() {
		if inList {
			out = append(out, "</ul>")
			inList = false
		}
		if inOL {
			out = append(out, "</ol>")
			inOL = false
		}
		if inQuote {
			out = append(out, "</blockquote>")
			inQuote = false
		}
		if inTable {
			out = append(out, "</table>")
			inTable = false
		}
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)

		isListItem := strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ")
		isOLItem := isOrderedListItem(line)
		isQuote := strings.HasPrefix(line, ">")
		isTableRow := strings.HasPrefix(line, "|")

		if inList && !isListItem {
			out = append(out, "</ul>")
			inList = false
		}
		if inOL && !isOLItem {
			out = append(out, "</ol>")
			inOL = false
		}
		if inQuote && !isQuote {
			out = append(out, "</blockquote>")
			inQuote = false
		}
		if inTable && !isTableRow {
			out = append(out, "</table>")
			inTable = false
		}

		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#### "):
			out = append(out, "<h4>"+inline(line[5:])+"</h4>")
		case strings.HasPrefix(line, "### "):
			out = append(out, "<h3>"+inline(line[4:])+"</h3>")
		case strings.HasPrefix(line, "## "):
			out = append(out, "<h2>"+inline(line[3:])+"</h2>")
		case strings.HasPrefix(line, "# "):
			out = append(out, "<h1>"+inline(line[2:])+"</h1>")
		case isQuote:
			if !inQuote {
				out = append(out, "<blockquote>")
				inQuote = true
			}
			out = append(out, "<p>"+inline(strings.TrimSpace(strings.TrimPrefix(line, ">")))+"</p>")
		case isListItem:
			if !inList {
				out = append(out, "<ul>")
				inList = true
			}
			out = append(out, "<li>"+inline(line[2:])+"</li>")
		case isOLItem:
			if !inOL {
				out = append(out, "<ol>")
				inOL = true
			}
			_, text, _ := strings.Cut(line, ". ")
			out = append(out, "<li>"+inline(text)+"</li>")
		case line == "---" || line == "***" || line == "___":
			out = append(out, "<hr>")
		case isTableRow:
			if isTableSeparator(line) {
				continue
			}
			if !inTable {
				out = append(out, "<table>")
				inTable = true
				out = append(out, tableRow(line, true))
			} else {
				out = append(out, tableRow(line, false))
			}
		default:
			out = append(out, "<p>"+inline(line)+"</p>")
		}
	}
	closeOpen()

	return strings.Join(out, "\n")
}

func isOrderedListItem(line string) bool {
	if line == "" || line[0] < '0' || line[0] > '9' {
		return false
	}
	idx := strings.Index(line, ". ")
	return idx >= 0 && idx <= 3
}

func isTableSeparator(line string) bool {
	trimmed := strings.Trim(line, "|- ")
	return trimmed == "" || strings.Trim(trimmed, "-| ") == ""
}

func tableRow(line string, header bool) string {
	cells := strings.Split(strings.Trim(line, "|"), "|")
	tag := "td"
	if header {
		tag = "th"
	}
	var b strings.Builder
	b.WriteString("<tr>")
	for _, c := range cells {
		fmt.Fprintf(&b, "<%s>%s</%s>", tag, inline(strings.TrimSpace(c)), tag)
	}
	b.WriteString("</tr>")
	return b.String()
}

// inline HTML-escapes text (<, >, &, and quotes), then restores
// **bold**/*italic* markers as tags. Non-ASCII characters are not
// escaped; they pass through as UTF-8.
func inline(text string) string {
	escaped := html.EscapeString(text)
	escaped = boldPattern.ReplaceAllString(escaped, "<strong>$1</strong>")
	escaped = italicPattern.ReplaceAllString(escaped, "<em>$1</em>")
	return escaped
}
