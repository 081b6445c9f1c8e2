// Package export implements the Export Renderer (L10): a pure function
// from an Anketa plus company/session metadata to Markdown bytes or a
// print-ready HTML page (§4.10). It is also the concrete implementation
// of pkg/orchestrator's MarkdownRenderer collaborator.
package export

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/anketa/pkg/anketa"
)

// Renderer produces the canonical Markdown representation of an
// Anketa. It satisfies pkg/orchestrator's MarkdownRenderer interface.
type Renderer struct{}

// NewRenderer builds a Renderer. It has no state: rendering is a pure
// function of its input (§4.10).
func NewRenderer() *Renderer { return &Renderer{} }

// Render produces the fixed 18-section Markdown layout for a.
func (Renderer) Render(a *anketa.Anketa) (string, error) {
	return RenderMarkdown(a), nil
}

// RenderMarkdown is the pure function behind Renderer.Render, exposed
// directly for callers that don't need the interface indirection (e.g.
// export HTTP handlers rendering on demand from a persisted map).
func RenderMarkdown(a *anketa.Anketa) string {
	var b strings.Builder
	rate := a.CompletionRate() * 100
	durationMin := a.ConsultationDurationSeconds / 60

	fmt.Fprintf(&b, "# Anketa: %s\n\n", orDash(a.CompanyName))
	fmt.Fprintf(&b, "**Created:** %s  \n", a.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "**Consultation duration:** %.1f min  \n", durationMin)
	fmt.Fprintf(&b, "**Completion:** %.0f%%\n\n---\n\n", rate)

	section(&b, "1. Company Identity", func(b *strings.Builder) {
		fmt.Fprintf(b, "| Field | Value |\n|---|---|\n")
		fmt.Fprintf(b, "| Company | %s |\n", orDash(a.CompanyName))
		fmt.Fprintf(b, "| Industry | %s |\n", orDash(a.Industry))
		fmt.Fprintf(b, "| Specialization | %s |\n", orDash(a.Specialization))
		fmt.Fprintf(b, "| Website | %s |\n", orDash(a.Website))
		fmt.Fprintf(b, "| Contact | %s |\n", orDash(a.ContactName))
		fmt.Fprintf(b, "| Role | %s |\n", orDash(a.ContactRole))
		fmt.Fprintf(b, "| Phone | %s |\n", orDash(a.ContactPhone))
		fmt.Fprintf(b, "| Email | %s |\n", orDash(a.ContactEmail))
		fmt.Fprintf(b, "| Country | %s |\n", orDash(a.Country))
	})

	section(&b, "2. Business Context", func(b *strings.Builder) {
		fmt.Fprintf(b, "### Description\n\n%s\n\n", orPlaceholder(a.BusinessDescription))
		fmt.Fprintf(b, "### Services\n\n%s\n\n", renderList(a.Services))
		fmt.Fprintf(b, "### Client Types\n\n%s\n\n", renderList(a.ClientTypes))
		fmt.Fprintf(b, "### Current Problems\n\n%s\n\n", renderList(a.CurrentProblems))
		fmt.Fprintf(b, "### Business Goals\n\n%s\n\n", renderList(a.BusinessGoals))
		fmt.Fprintf(b, "### Constraints\n\n%s", renderList(a.Constraints))
	})

	section(&b, "3. Voice Agent", func(b *strings.Builder) {
		fmt.Fprintf(b, "| Parameter | Value |\n|---|---|\n")
		fmt.Fprintf(b, "| Agent name | %s |\n", orDash(a.AgentName))
		fmt.Fprintf(b, "| Purpose | %s |\n", orDash(a.AgentPurpose))
		fmt.Fprintf(b, "| Voice | %s, %s |\n", orDash(a.VoiceGender), orDash(a.VoiceTone))
		fmt.Fprintf(b, "| Language | %s |\n", orDash(a.Language))
		fmt.Fprintf(b, "| Call direction | %s |\n", formatCallDirection(a.CallDirection))
	})

	section(&b, "4. Integrations", func(b *strings.Builder) {
		b.WriteString(renderIntegrations(a.Integrations))
	})

	section(&b, "5. FAQ", func(b *strings.Builder) {
		b.WriteString(renderFAQ(a.FAQ))
	})

	section(&b, "6. Objection Handlers", func(b *strings.Builder) {
		b.WriteString(renderObjections(a.ObjectionHandlers))
	})

	section(&b, "7. Sample Dialogue", func(b *strings.Builder) {
		b.WriteString(renderDialogue(a.SampleDialogue))
	})

	section(&b, "8. Financial Metrics", func(b *strings.Builder) {
		b.WriteString(renderKV(a.FinancialMetrics))
	})

	section(&b, "9. Market Analysis", func(b *strings.Builder) {
		fmt.Fprintf(b, "### Competitors\n\n%s\n\n", renderList(a.Competitors))
		fmt.Fprintf(b, "### Market Insights\n\n%s", renderList(a.MarketInsights))
	})

	section(&b, "10. Segments", func(b *strings.Builder) {
		b.WriteString(renderList(a.ClientTypes))
	})

	section(&b, "11. Escalation", func(b *strings.Builder) {
		b.WriteString(renderEscalation(a.EscalationRules))
	})

	section(&b, "12. KPIs", func(b *strings.Builder) {
		b.WriteString(renderList(a.KPIs))
	})

	section(&b, "13. Launch Checklist", func(b *strings.Builder) {
		b.WriteString(renderList(a.LaunchChecklist))
	})

	section(&b, "14. AI Recommendations", func(b *strings.Builder) {
		b.WriteString(renderRecommendations(a.Recommendations))
	})

	section(&b, "15. Tone of Voice", func(b *strings.Builder) {
		fmt.Fprintf(b, "Voice is **%s**, tone is **%s**.", orDash(a.VoiceGender), orDash(a.VoiceTone))
	})

	section(&b, "16. Main Function", func(b *strings.Builder) {
		b.WriteString(renderMainFunction(a.MainFunction))
	})

	section(&b, "17. Additional Functions", func(b *strings.Builder) {
		b.WriteString(renderFunctions(a.AdditionalFunctions))
	})

	section(&b, "18. All Agent Functions", func(b *strings.Builder) {
		b.WriteString(renderFunctions(a.AgentFunctions))
	})

	fmt.Fprintf(&b, "\n---\n\n## Metadata\n\n")
	fmt.Fprintf(&b, "- **Created:** %s\n", a.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- **Consultation duration:** %.0f sec\n", a.ConsultationDurationSeconds)
	fmt.Fprintf(&b, "- **Completion:** %.0f%%\n", rate)

	return b.String()
}

func section(b *strings.Builder, title string, body func(*strings.Builder)) {
	fmt.Fprintf(b, "## %s\n\n", title)
	body(b)
	b.WriteString("\n\n---\n\n")
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func orPlaceholder(s string) string {
	if s == "" {
		return "*Not specified*"
	}
	return s
}

func renderList(items []string) string {
	var filtered []string
	for _, item := range items {
		if item != "" {
			filtered = append(filtered, item)
		}
	}
	if len(filtered) == 0 {
		return "*Not specified*"
	}
	var b strings.Builder
	for _, item := range filtered {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderKV(kv map[string]string) string {
	if len(kv) == 0 {
		return "*Not specified*"
	}
	var b strings.Builder
	b.WriteString("| Metric | Value |\n|---|---|\n")
	for k, v := range kv {
		fmt.Fprintf(&b, "| %s | %s |\n", k, v)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderIntegrations(items []anketa.Integration) string {
	if len(items) == 0 {
		return "*No integrations required*"
	}
	var b strings.Builder
	b.WriteString("| System | Purpose | Required |\n|---|---|---|\n")
	for _, it := range items {
		required := "No"
		if it.Required {
			required = "Yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", it.Name, it.Purpose, required)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderFAQ(items []anketa.FAQItem) string {
	if len(items) == 0 {
		return "*Not specified*"
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "**Q: %s**\n\nA: %s\n\n", it.Question, it.Answer)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderObjections(items []anketa.ObjectionHandler) string {
	if len(items) == 0 {
		return "*Not specified*"
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "> %s\n\n%s\n\n", it.Objection, it.Response)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderDialogue(items []anketa.DialogueExample) string {
	if len(items) == 0 {
		return "*Not specified*"
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "**%s:** %s\n\n", it.Role, it.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderEscalation(items []anketa.EscalationRule) string {
	if len(items) == 0 {
		return "*Not specified*"
	}
	var b strings.Builder
	b.WriteString("| Trigger | Urgency | Action |\n|---|---|---|\n")
	for _, it := range items {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", it.Trigger, it.Urgency, it.Action)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderRecommendations(items []anketa.AIRecommendation) string {
	if len(items) == 0 {
		return "*Not specified*"
	}
	var b strings.Builder
	for i, it := range items {
		fmt.Fprintf(&b, "%d. **%s** (impact: %s, effort: %s, priority: %s)\n", i+1, it.Recommendation, it.Impact, it.Effort, it.Priority)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMainFunction(f *anketa.AgentFunction) string {
	if f == nil || f.Name == "" {
		return "*Not defined*"
	}
	return fmt.Sprintf("**%s**\n\n%s\n\n*Priority: %s*", f.Name, f.Description, f.Priority)
}

func renderFunctions(items []anketa.AgentFunction) string {
	if len(items) == 0 {
		return "*Not specified*"
	}
	var b strings.Builder
	for i, f := range items {
		fmt.Fprintf(&b, "### %d. %s\n\n%s\n\n*Priority: %s*\n\n", i+1, f.Name, f.Description, f.Priority)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCallDirection(direction string) string {
	switch direction {
	case "inbound":
		return "Inbound"
	case "outbound":
		return "Outbound"
	case "both":
		return "Inbound and outbound"
	default:
		return orDash(direction)
	}
}
