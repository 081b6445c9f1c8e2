package documents

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/codeready-toolchain/anketa/pkg/store"
)

// maxSummaryChunks bounds how many chunks contribute to the synthesized
// summary, keeping the persisted row small once chunks are stripped.
const maxSummaryChunks = 3

// maxKeyFacts and maxContacts cap the length of their respective lists.
const (
	maxKeyFacts = 10
	maxContacts = 10
)

var (
	emailPattern = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
)

var serviceKeywords = []string{
	"consulting", "support", "delivery", "logistics", "manufacturing",
	"software", "retail", "healthcare", "finance", "insurance", "education",
}

// Analyzer synthesizes a store.DocumentContext from a batch of parsed
// documents by rule-based scanning (§4.9: "analyze the set (LLM- or
// rule-based)"). A concrete LLM-backed analyzer is a straightforward
// swap-in later since both share the same signature; this default
// keeps the pipeline testable without a live model.
type Analyzer struct{}

// NewAnalyzer builds an Analyzer. Analyzer holds no state.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze synthesizes a DocumentContext from docs. Per-document digests
// are a short rule-based one-liner per file; full chunks never reach
// the returned DocumentContext since callers persist it as-is (§4.9:
// "strip chunks before persistence").
func (a *Analyzer) Analyze(docs []*ParsedDocument) (*store.DocumentContext, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("documents: no documents to analyze")
	}

	ctx := &store.DocumentContext{}
	var summaryParts []string
	keyFactSet := make(map[string]bool)
	serviceSet := make(map[string]bool)
	contactSet := make(map[string]bool)

	for _, doc := range docs {
		joined := strings.Join(doc.Chunks, "\n")

		digest := summarize(doc.Chunks, 1)
		ctx.Documents = append(ctx.Documents, store.DocumentDigest{
			Filename: doc.Filename,
			Digest:   digest,
		})

		if len(summaryParts) < maxSummaryChunks {
			summaryParts = append(summaryParts, fmt.Sprintf("%s: %s", doc.Filename, digest))
		}

		for _, kw := range serviceKeywords {
			if strings.Contains(strings.ToLower(joined), kw) {
				serviceSet[kw] = true
			}
		}

		for _, line := range strings.Split(joined, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && len(trimmed) < 200 && len(keyFactSet) < maxKeyFacts {
				keyFactSet[trimmed] = true
			}
		}

		for _, m := range emailPattern.FindAllString(joined, -1) {
			contactSet[m] = true
		}
		for _, m := range phonePattern.FindAllString(joined, -1) {
			contactSet[strings.TrimSpace(m)] = true
		}
	}

	ctx.Summary = strings.Join(summaryParts, " | ")
	ctx.KeyFacts = sortedCappedSlice(keyFactSet, maxKeyFacts)
	ctx.ServicesMentioned = sortedCappedSlice(serviceSet, len(serviceSet))
	ctx.AllContacts = sortedCappedSlice(contactSet, maxContacts)
	return ctx, nil
}

// summarize joins the first n chunks, truncated to a readable length.
func summarize(chunks []string, n int) string {
	if len(chunks) < n {
		n = len(chunks)
	}
	text := strings.Join(chunks[:n], " ")
	text = strings.TrimSpace(text)
	const maxLen = 300
	if len(text) > maxLen {
		text = text[:maxLen]
	}
	return text
}

func sortedCappedSlice(set map[string]bool, cap int) []string {
	var out []string
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	if len(out) > cap {
		out = out[:cap]
	}
	return out
}
