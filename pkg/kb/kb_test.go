package kb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrich_ReturnsKnownIndustryPlaybook(t *testing.T) {
	k := NewKnowledgeBase()
	blob, err := k.Enrich(context.Background(), "Logistics", "FlowCorp", []string{"dispatch"})
	require.NoError(t, err)
	assert.Contains(t, blob, "Logistics clients")
}

func TestEnrich_DetectsIndustryFromServicesWhenFieldUnknown(t *testing.T) {
	k := NewKnowledgeBase()
	blob, err := k.Enrich(context.Background(), "", "Acme", []string{"retail storefront support"})
	require.NoError(t, err)
	assert.Contains(t, blob, "Retail clients")
}

func TestEnrich_ErrorsWhenNoPlaybookMatches(t *testing.T) {
	k := NewKnowledgeBase()
	_, err := k.Enrich(context.Background(), "underwater basket weaving", "Acme", nil)
	require.Error(t, err)
}

func TestSeed_OverridesDefaultPlaybook(t *testing.T) {
	k := NewKnowledgeBase()
	k.Seed("logistics", Playbook{Summary: "custom summary"})
	blob, err := k.Enrich(context.Background(), "logistics", "FlowCorp", nil)
	require.NoError(t, err)
	assert.Contains(t, blob, "custom summary")
}

func TestRecordLearningAndUpdateMetrics_DoNotPanic(t *testing.T) {
	k := NewKnowledgeBase()
	k.RecordLearning("logistics", "customers ask about refrigerated transport", "session-1")
	k.UpdateMetrics("logistics", 0.9)
	blob := k.BuildForVoice("logistics")
	assert.NotEmpty(t, blob)
}

type fakeFetcher struct {
	body []byte
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func TestResearch_NoWebsiteReturnsStubContext(t *testing.T) {
	r := NewResearchEngineWithFetcher(&fakeFetcher{})
	ctx, err := r.Research(context.Background(), "FlowCorp", "")
	require.NoError(t, err)
	assert.Contains(t, ctx.Summary, "FlowCorp")
}

func TestResearch_ExtractsVisibleTextAndKeywords(t *testing.T) {
	html := `<html><head><style>.x{color:red}</style></head><body><script>evil()</script><main><p>We provide logistics and retail consulting services.</p></main></body></html>`
	r := NewResearchEngineWithFetcher(&fakeFetcher{body: []byte(html)})
	ctx, err := r.Research(context.Background(), "FlowCorp", "https://flowcorp.test")
	require.NoError(t, err)
	assert.Contains(t, ctx.Summary, "We provide logistics")
	assert.NotContains(t, ctx.Summary, "evil()")
	assert.Contains(t, ctx.ServicesMentioned, "logistics")
	assert.Contains(t, ctx.ServicesMentioned, "retail")
}

func TestResearch_PropagatesFetchError(t *testing.T) {
	r := NewResearchEngineWithFetcher(&fakeFetcher{err: errors.New("blocked")})
	_, err := r.Research(context.Background(), "FlowCorp", "http://127.0.0.1/")
	require.Error(t, err)
}
