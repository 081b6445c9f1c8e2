package orchestrator

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/anketa/pkg/anketa"
	"github.com/codeready-toolchain/anketa/pkg/extraction"
	"github.com/codeready-toolchain/anketa/pkg/llm"
	"github.com/codeready-toolchain/anketa/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	cfg := store.Config{Path: filepath.Join(dir, "sessions.db"), MaxOpenConns: 1, BusyTimeoutMs: 5000}
	require.NoError(t, cfg.Validate())

	client, err := store.NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return store.New(client)
}

type stubChatLLM struct {
	mu       sync.Mutex
	response string
}

func (s *stubChatLLM) Chat(ctx context.Context, messages []llm.Message, temperature float64, maxTokens int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.response, nil
}

func (s *stubChatLLM) setResponse(r string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = r
}

type fakeKB struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeKB) Enrich(ctx context.Context, industry, companyName string, services []string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return "industry playbook for " + industry, nil
}

func (f *fakeKB) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeResearch struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeResearch) Research(ctx context.Context, companyName, website string) (*store.DocumentContext, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return &store.DocumentContext{Summary: "researched " + companyName}, nil
}

type fakeInstructs struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeInstructs) SetInstructions(ctx context.Context, sessionID, instructions string) error {
	f.mu.Lock()
	f.calls = append(f.calls, instructions)
	f.mu.Unlock()
	return nil
}

type fakeNotify struct {
	mu       sync.Mutex
	notified []string
}

func (f *fakeNotify) OnSessionConfirmed(ctx context.Context, sessionID string) {
	f.mu.Lock()
	f.notified = append(f.notified, sessionID)
	f.mu.Unlock()
}

type fakeRender struct{}

func (fakeRender) Render(a *anketa.Anketa) (string, error) { return "# rendered", nil }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func newTestSession(t *testing.T, chat *stubChatLLM, deps Dependencies) (*Session, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	sess, err := st.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	deps.Store = st
	deps.Extractor = extraction.New(chat)
	return NewSession(deps, sess.SessionID, ""), st
}

func TestOnDialogueTurn_TriggersExtractionAtThreshold(t *testing.T) {
	chat := &stubChatLLM{response: `{"company_name": "FlowCorp", "industry": "logistics"}`}
	kb := &fakeKB{}
	sess, st := newTestSession(t, chat, Dependencies{KB: kb, BasePrompt: "base"})

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		require.NoError(t, sess.OnDialogueTurn(ctx, store.DialogueTurn{Role: "user", Content: "hello"}))
	}

	waitFor(t, time.Second, func() bool {
		got, err := st.GetSession(ctx, sess.sessionID)
		return err == nil && got.CompanyName == "FlowCorp"
	})
}

func TestOnDialogueTurn_BelowMinMessagesNeverExtracts(t *testing.T) {
	chat := &stubChatLLM{response: `{"company_name": "FlowCorp"}`}
	sess, st := newTestSession(t, chat, Dependencies{})

	ctx := context.Background()
	// 3 messages, even if somehow the counter logic were miscounted,
	// should never cross minTotalMessages.
	for i := 0; i < 3; i++ {
		require.NoError(t, sess.OnDialogueTurn(ctx, store.DialogueTurn{Role: "user", Content: "hi"}))
	}

	time.Sleep(50 * time.Millisecond)
	got, err := st.GetSession(ctx, sess.sessionID)
	require.NoError(t, err)
	assert.Empty(t, got.CompanyName)
}

func TestMaybeEnrichKB_FiresOnceAboveThreshold(t *testing.T) {
	chat := &stubChatLLM{response: `{"company_name": "FlowCorp", "industry": "logistics", "contact_name": "Jane", "contact_phone": "+1 555 0000", "website": "https://flowcorp.test", "services": ["dispatch"], "agent_name": "Flo", "agent_purpose": "helps"}`}
	kb := &fakeKB{}
	instructs := &fakeInstructs{}
	sess, st := newTestSession(t, chat, Dependencies{KB: kb, Instructs: instructs, BasePrompt: "base prompt"})

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		require.NoError(t, sess.OnDialogueTurn(ctx, store.DialogueTurn{Role: "user", Content: "info"}))
	}

	waitFor(t, time.Second, func() bool { return kb.callCount() > 0 })

	waitFor(t, time.Second, func() bool {
		got, err := st.GetSession(ctx, sess.sessionID)
		return err == nil && got.CompanyName == "FlowCorp"
	})

	assert.Equal(t, 1, kb.callCount())

	// A second batch of turns should not re-enrich (once-only flag).
	for i := 0; i < 6; i++ {
		require.NoError(t, sess.OnDialogueTurn(ctx, store.DialogueTurn{Role: "user", Content: "more info"}))
	}
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, kb.callCount())
}

func TestFinalize_TransitionsToReviewingAndNotifies(t *testing.T) {
	chat := &stubChatLLM{response: `{"company_name": "FlowCorp", "industry": "logistics"}`}
	notify := &fakeNotify{}
	sess, st := newTestSession(t, chat, Dependencies{Notify: notify, Render: fakeRender{}})

	ctx := context.Background()
	require.NoError(t, sess.OnDialogueTurn(ctx, store.DialogueTurn{Role: "user", Content: "hi"}))
	require.NoError(t, sess.Finalize(ctx))

	got, err := st.GetSession(ctx, sess.sessionID)
	require.NoError(t, err)
	assert.Equal(t, "reviewing", got.Status)
	assert.Equal(t, "FlowCorp", got.CompanyName)

	waitFor(t, time.Second, func() bool {
		notify.mu.Lock()
		defer notify.mu.Unlock()
		return len(notify.notified) == 1
	})
}

func TestLaunchExtraction_DebouncesTrailingEdge(t *testing.T) {
	chat := &stubChatLLM{response: `{"company_name": "First"}`}
	sess, _ := newTestSession(t, chat, Dependencies{})

	ctx := context.Background()
	sess.launchExtraction(ctx)
	sess.launchExtraction(ctx) // deferred: in flight already

	waitFor(t, time.Second, func() bool {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return !sess.extractionInFlight
	})
}

func TestExtractInterview_RoutingSkipsKBAndResearch(t *testing.T) {
	chat := &stubChatLLM{response: `{"company_name": "FlowCorp", "qa_pairs": [], "insights": [], "summary": "s"}`}
	kb := &fakeKB{}
	research := &fakeResearch{}
	sess, st := newTestSession(t, chat, Dependencies{KB: kb, Research: research})
	sess.consultationType = "interview"

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		require.NoError(t, sess.OnDialogueTurn(ctx, store.DialogueTurn{Role: "user", Content: "hi"}))
	}

	waitFor(t, time.Second, func() bool {
		got, err := st.GetSession(ctx, sess.sessionID)
		return err == nil && got.CompanyName == "FlowCorp"
	})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, kb.callCount())
	research.mu.Lock()
	assert.Equal(t, 0, research.calls)
	research.mu.Unlock()
}
