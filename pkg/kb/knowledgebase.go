// Package kb implements the Knowledge Base and Research Engine
// collaborators the orchestrator consumes for one-shot industry
// enrichment and background company research (§4.6, §6). Concrete
// web-search/knowledge providers are explicitly out of scope for the
// core; this package is a lightweight in-memory default so the
// orchestrator's KnowledgeBase and ResearchEngine interfaces have a
// real, testable implementation to wire instead of going unserved.
package kb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Playbook is the static enrichment blob recorded for one industry.
type Playbook struct {
	Summary       string
	BestPractices []string
	Score         float64
}

// KnowledgeBase is an in-memory industry knowledge store satisfying
// pkg/orchestrator's KnowledgeBase interface, modeled on the fuller
// collaborator contract (`detect_industry`, `record_learning`,
// `update_metrics`, `build_for_voice`).
type KnowledgeBase struct {
	mu        sync.RWMutex
	playbooks map[string]*Playbook
	learnings map[string][]string
	log       *slog.Logger
}

// NewKnowledgeBase builds a KnowledgeBase seeded with a small set of
// default industry playbooks; callers may add more via Seed.
func NewKnowledgeBase() *KnowledgeBase {
	kb := &KnowledgeBase{
		playbooks: defaultPlaybooks(),
		learnings: make(map[string][]string),
		log:       slog.With("component", "kb.knowledgebase"),
	}
	return kb
}

// Seed installs or overwrites the playbook for industry.
func (k *KnowledgeBase) Seed(industry string, p Playbook) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.playbooks[normalizeIndustry(industry)] = &p
}

// DetectIndustry does a cheap keyword match against known playbooks,
// falling back to the literal industry string from the anketa.
func (k *KnowledgeBase) DetectIndustry(industry, companyName string, services []string) string {
	key := normalizeIndustry(industry)
	k.mu.RLock()
	defer k.mu.RUnlock()
	if _, ok := k.playbooks[key]; ok {
		return key
	}
	haystack := strings.ToLower(industry + " " + companyName + " " + strings.Join(services, " "))
	for name := range k.playbooks {
		if strings.Contains(haystack, name) {
			return name
		}
	}
	return key
}

// RecordLearning appends a piece of industry-specific feedback captured
// during a session, for later playbook curation.
func (k *KnowledgeBase) RecordLearning(industry, message, source string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	key := normalizeIndustry(industry)
	k.learnings[key] = append(k.learnings[key], fmt.Sprintf("[%s] %s", source, message))
}

// UpdateMetrics nudges the confidence score recorded for industry.
func (k *KnowledgeBase) UpdateMetrics(industry string, score float64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	key := normalizeIndustry(industry)
	if p, ok := k.playbooks[key]; ok {
		p.Score = score
	}
}

// BuildForVoice renders the enrichment blob injected into the live
// LLM's system instructions (§4.6 step 3). Returns "" if no playbook
// is known for industry.
func (k *KnowledgeBase) BuildForVoice(industry string) string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	p, ok := k.playbooks[normalizeIndustry(industry)]
	if !ok {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Industry knowledge for %s: %s", industry, p.Summary)
	for _, bp := range p.BestPractices {
		fmt.Fprintf(&b, "\n- %s", bp)
	}
	return b.String()
}

// Enrich satisfies pkg/orchestrator's KnowledgeBase interface: it
// detects the industry, builds the voice-context blob, and returns it.
// Returns an error only if nothing at all could be built, which the
// orchestrator treats as fire-and-forget and non-fatal.
func (k *KnowledgeBase) Enrich(ctx context.Context, industry, companyName string, services []string) (string, error) {
	detected := k.DetectIndustry(industry, companyName, services)
	blob := k.BuildForVoice(detected)
	if blob == "" {
		return "", fmt.Errorf("kb: no playbook for industry %q", industry)
	}
	k.log.Info("kb_enriched", "industry", detected, "company_name", companyName)
	return blob, nil
}

func normalizeIndustry(industry string) string {
	return strings.ToLower(strings.TrimSpace(industry))
}

func defaultPlaybooks() map[string]*Playbook {
	return map[string]*Playbook{
		"logistics": {
			Summary:       "Logistics clients prioritize dispatch speed, shipment visibility, and SLA compliance.",
			BestPractices: []string{"Surface ETA and tracking number early in the call.", "Offer escalation to a human dispatcher for exceptions."},
			Score:         0.7,
		},
		"retail": {
			Summary:       "Retail clients care about order status, returns, and promotions.",
			BestPractices: []string{"Confirm order number before discussing status.", "Mention active promotions when relevant."},
			Score:         0.7,
		},
		"healthcare": {
			Summary:       "Healthcare clients require privacy-conscious handling of patient information.",
			BestPractices: []string{"Never repeat sensitive details back verbatim.", "Always offer a human-handoff path for clinical questions."},
			Score:         0.7,
		},
	}
}
