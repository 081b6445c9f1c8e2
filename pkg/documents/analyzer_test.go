package documents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_ErrorsOnEmptyDocumentSet(t *testing.T) {
	a := NewAnalyzer()
	_, err := a.Analyze(nil)
	require.Error(t, err)
}

func TestAnalyze_SynthesizesContextAcrossDocuments(t *testing.T) {
	docs := []*ParsedDocument{
		{Filename: "brief.txt", Chunks: []string{"FlowCorp offers logistics and retail consulting.", "Contact ops@flowcorp.test or +1 415 555 0100."}},
		{Filename: "pricing.xlsx", Chunks: []string{"Sheet: Pricing\nDelivery | 49.99"}},
	}

	a := NewAnalyzer()
	ctx, err := a.Analyze(docs)
	require.NoError(t, err)

	assert.Len(t, ctx.Documents, 2)
	assert.Contains(t, ctx.ServicesMentioned, "logistics")
	assert.Contains(t, ctx.ServicesMentioned, "retail")
	assert.Contains(t, ctx.AllContacts, "ops@flowcorp.test")
	assert.NotEmpty(t, ctx.KeyFacts)
	assert.NotEmpty(t, ctx.Summary)
}

func TestAnalyze_CapsKeyFactsAndContacts(t *testing.T) {
	var chunks []string
	for i := 0; i < 50; i++ {
		chunks = append(chunks, "fact line number "+string(rune('A'+i%26))+string(rune(i)))
	}
	docs := []*ParsedDocument{{Filename: "notes.txt", Chunks: chunks}}

	a := NewAnalyzer()
	ctx, err := a.Analyze(docs)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(ctx.KeyFacts), maxKeyFacts)
}
