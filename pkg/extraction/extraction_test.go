package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/anketa/pkg/anketa"
	"github.com/codeready-toolchain/anketa/pkg/llm"
	"github.com/codeready-toolchain/anketa/pkg/store"
)

type stubChatLLM struct {
	response string
	err      error
	calls    int
}

func (s *stubChatLLM) Chat(ctx context.Context, messages []llm.Message, temperature float64, maxTokens int) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func sampleDialogue() []store.DialogueTurn {
	return []store.DialogueTurn{
		{Role: "assistant", Content: "Hello, tell me about your business."},
		{Role: "user", Content: "We run FlowCorp, a logistics company."},
		{Role: "user", Content: "Call me at +7 916 555 0000."},
	}
}

func TestExtract_HappyPath(t *testing.T) {
	stub := &stubChatLLM{response: `{
		"company_name": "FlowCorp",
		"industry": "logistics",
		"business_description": "Runs freight dispatch for regional clients.",
		"agent_name": "Flo",
		"agent_purpose": "Handles inbound logistics inquiries.",
		"voice_gender": "female",
		"main_function": {"name": "routing", "description": "routes calls", "priority": "high"}
	}`}
	coord := New(stub)

	result := coord.Extract(context.Background(), Input{
		Dialogue:        sampleDialogue(),
		DurationSeconds: 120,
	})

	require.NotNil(t, result.Anketa)
	assert.Nil(t, result.Interview)
	assert.Equal(t, "FlowCorp", result.Anketa.CompanyName)
	assert.Equal(t, "logistics", result.Anketa.Industry)
	assert.Equal(t, "professional", result.Anketa.VoiceTone)
	assert.Equal(t, 120.0, result.Anketa.ConsultationDurationSeconds)
	assert.Equal(t, 1, stub.calls)
}

func TestExtract_FillsPhoneFromDialogueWhenLLMOmitsIt(t *testing.T) {
	stub := &stubChatLLM{response: `{"company_name": "FlowCorp"}`}
	coord := New(stub)

	result := coord.Extract(context.Background(), Input{Dialogue: sampleDialogue()})

	require.NotNil(t, result.Anketa)
	assert.Equal(t, "+79165550000", result.Anketa.ContactPhone)
	assert.Equal(t, "Russia", result.Anketa.Country)
	assert.Equal(t, "RUB", result.Anketa.Currency)
}

func TestExtract_LLMFailureReturnsFallback(t *testing.T) {
	stub := &stubChatLLM{err: assertError{}}
	coord := New(stub)

	prior := &anketa.Anketa{CompanyName: "Previous Co", Industry: "retail"}
	result := coord.Extract(context.Background(), Input{
		Dialogue:    sampleDialogue(),
		PriorAnketa: prior,
	})

	require.NotNil(t, result.Anketa)
	assert.Equal(t, "Previous Co", result.Anketa.CompanyName)
	assert.Equal(t, "retail", result.Anketa.Industry)
	assert.Equal(t, "professional", result.Anketa.VoiceTone)
}

func TestExtract_UnrecoverableJSONReturnsFallback(t *testing.T) {
	stub := &stubChatLLM{response: "no json here at all"}
	coord := New(stub)

	result := coord.Extract(context.Background(), Input{Dialogue: sampleDialogue()})

	require.NotNil(t, result.Anketa)
	assert.Equal(t, "FlowCorp", result.Anketa.CompanyName)
}

func TestExtract_InterviewRouting(t *testing.T) {
	stub := &stubChatLLM{response: `{
		"company_name": "FlowCorp",
		"contact_name": "Jane",
		"qa_pairs": [{"question": "What do you do?", "answer": "Logistics."}],
		"insights": ["Needs automated dispatch"],
		"summary": "A logistics company exploring automation."
	}`}
	coord := New(stub)

	result := coord.Extract(context.Background(), Input{
		Dialogue:         sampleDialogue(),
		ConsultationType: "interview",
	})

	require.NotNil(t, result.Interview)
	assert.Nil(t, result.Anketa)
	assert.Equal(t, "FlowCorp", result.Interview.CompanyName)
	assert.Len(t, result.Interview.QAPairs, 1)
}

func TestExtract_InterviewFallback(t *testing.T) {
	stub := &stubChatLLM{err: assertError{}}
	coord := New(stub)

	result := coord.Extract(context.Background(), Input{
		Dialogue:         sampleDialogue(),
		ConsultationType: "interview",
	})

	require.NotNil(t, result.Interview)
	// Every user turn in sampleDialogue is a full sentence, so the
	// short proper-noun heuristic recovers no company name.
	assert.Equal(t, "", result.Interview.CompanyName)
}

// assertError is a trivial error value for failure-path tests.
type assertError struct{}

func (assertError) Error() string { return "stub failure" }
