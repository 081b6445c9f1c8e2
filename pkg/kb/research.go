package kb

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/codeready-toolchain/anketa/pkg/safefetch"
	"github.com/codeready-toolchain/anketa/pkg/store"
)

// maxSummaryChars bounds how much of a fetched page is kept as the
// document-context summary, keeping the persisted row small.
const maxSummaryChars = 2000

// Fetcher is the narrow surface ResearchEngine needs from
// pkg/safefetch, kept as an interface so tests can substitute a fake
// without performing network I/O.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ResearchEngine satisfies pkg/orchestrator's ResearchEngine interface:
// a one-shot background scan of a company's website, summarized into a
// DocumentContext (§4.6 step 4, §4.9).
type ResearchEngine struct {
	fetcher Fetcher
	log     *slog.Logger
}

// NewResearchEngine builds a ResearchEngine backed by an SSRF-hardened
// safefetch.Client.
func NewResearchEngine() *ResearchEngine {
	return &ResearchEngine{fetcher: safefetch.New(), log: slog.With("component", "kb.research")}
}

// NewResearchEngineWithFetcher builds a ResearchEngine around a custom
// Fetcher, used by tests.
func NewResearchEngineWithFetcher(f Fetcher) *ResearchEngine {
	return &ResearchEngine{fetcher: f, log: slog.With("component", "kb.research")}
}

// Research fetches website (if provided) and produces a DocumentContext
// summarizing its visible text. If no website is available, it falls
// back to a stub context keyed on companyName alone so the caller
// still has something to persist.
func (r *ResearchEngine) Research(ctx context.Context, companyName, website string) (*store.DocumentContext, error) {
	if website == "" {
		return &store.DocumentContext{
			Summary:  fmt.Sprintf("No website provided for %s; research limited to dialogue-derived facts.", companyName),
			KeyFacts: []string{},
		}, nil
	}

	body, err := r.fetcher.Fetch(ctx, website)
	if err != nil {
		return nil, fmt.Errorf("kb: research %q: %w", website, err)
	}

	text := extractVisibleText(string(body))
	if len(text) > maxSummaryChars {
		text = text[:maxSummaryChars]
	}

	r.log.Info("research_completed", "company_name", companyName, "website", website)
	return &store.DocumentContext{
		Summary:           text,
		ServicesMentioned: extractKeywords(text),
	}, nil
}

var (
	scriptOrStylePattern = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagPattern           = regexp.MustCompile(`(?s)<[^>]+>`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
)

// extractVisibleText strips scripts/styles and tags from an HTML
// document, collapsing whitespace. It is intentionally not a full HTML
// parser: the research engine only needs a rough text summary, not
// structural fidelity.
func extractVisibleText(html string) string {
	stripped := scriptOrStylePattern.ReplaceAllString(html, " ")
	stripped = tagPattern.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(stripped, " "))
}

var serviceKeywords = []string{
	"consulting", "support", "delivery", "logistics", "manufacturing",
	"software", "retail", "healthcare", "finance", "insurance", "education",
}

// extractKeywords does a cheap keyword scan for mentioned service
// categories, used to seed services_mentioned in the persisted
// DocumentContext (§4.9).
func extractKeywords(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range serviceKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}
