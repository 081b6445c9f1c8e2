package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/anketa/pkg/anketa"
)

func sampleAnketa() *anketa.Anketa {
	a := &anketa.Anketa{
		CompanyName:         "FlowCorp",
		Industry:            "Logistics",
		BusinessDescription: "Dispatch and fleet tracking.",
		Services:            []string{"dispatch", "tracking"},
		ContactName:         "Jane Doe",
		AgentName:           "Flo",
		AgentPurpose:        "Book consultations",
		Integrations: []anketa.Integration{
			{Name: "CRM", Purpose: "sync leads", Required: true},
		},
		CreatedAt:                   time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC),
		ConsultationDurationSeconds: 900,
	}
	a.ApplyDefaults()
	return a
}

func TestRenderMarkdown_ContainsAllEighteenSections(t *testing.T) {
	md := RenderMarkdown(sampleAnketa())
	for i := 1; i <= 18; i++ {
		assert.Contains(t, md, "## "+itoa(i)+".", "section %d missing", i)
	}
	assert.Contains(t, md, "FlowCorp")
	assert.Contains(t, md, "Completion:")
}

func TestRenderMarkdown_EmptySectionsGetPlaceholder(t *testing.T) {
	a := &anketa.Anketa{CompanyName: "Bare", CreatedAt: time.Now()}
	a.ApplyDefaults()
	md := RenderMarkdown(a)
	assert.Contains(t, md, "*Not specified*")
}

func TestRenderPrintHTML_EscapesAndConvertsMarkdown(t *testing.T) {
	md := "# FlowCorp\n\n**Bold** and *italic*.\n\n- one\n- two\n"
	out := string(RenderPrintHTML(md, "FlowCorp <script>", "consultation"))
	assert.Contains(t, out, "<h1>FlowCorp</h1>")
	assert.Contains(t, out, "<strong>Bold</strong>")
	assert.Contains(t, out, "<em>italic</em>")
	assert.Contains(t, out, "<ul>")
	assert.Contains(t, out, "<li>one</li>")
	assert.NotContains(t, out, "<script>FlowCorp <script>")
	assert.Contains(t, out, "Save as PDF")
}

func TestRenderPrintHTML_InterviewLabel(t *testing.T) {
	out := string(RenderPrintHTML("# x", "Acme", "interview"))
	assert.Contains(t, out, "Interview")
}

func TestSafeName_StripsUnsafeCharacters(t *testing.T) {
	assert.Equal(t, "FlowCorp", SafeName("FlowCorp/../../etc"))
	assert.Equal(t, "anketa", SafeName("!!!"))
	assert.Equal(t, "anketa", SafeName(""))
}

func TestSafeName_CapsLength(t *testing.T) {
	long := strings.Repeat("a", 100)
	require.LessOrEqual(t, len([]rune(SafeName(long))), maxSafeNameRunes)
}

func TestContentDisposition_StripsControlAndCRLFAndDualEncodes(t *testing.T) {
	header := ContentDisposition("attachment", "FlowCorp\r\nX-Injected: true", ".md")
	assert.NotContains(t, header, "\r")
	assert.NotContains(t, header, "\n")
	assert.Contains(t, header, `filename="FlowCorpX-Injected: true.md"`)
	assert.Contains(t, header, "filename*=UTF-8''")
}

func TestContentDisposition_PreservesNonASCIIInUTF8Param(t *testing.T) {
	header := ContentDisposition("attachment", "Компания", ".md")
	assert.Contains(t, header, "filename*=UTF-8''")
	assert.Contains(t, header, `filename="________.md"`)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}
