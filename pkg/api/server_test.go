package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/anketa/pkg/orchestrator"
	"github.com/codeready-toolchain/anketa/pkg/runtimestatus"
	"github.com/codeready-toolchain/anketa/pkg/store"
)

type stubNotifier struct {
	mu       sync.Mutex
	notified []string
}

func (n *stubNotifier) OnSessionConfirmed(_ context.Context, sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, sessionID)
}

func newTestServer(t *testing.T) (*Server, *store.Store, *stubNotifier) {
	t.Helper()
	dir := t.TempDir()
	cfg := store.Config{Path: filepath.Join(dir, "sessions.db"), MaxOpenConns: 1, BusyTimeoutMs: 5000}
	require.NoError(t, cfg.Validate())

	client, err := store.NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	st := store.New(client)
	notify := &stubNotifier{}
	runtime := runtimestatus.New(runtimestatus.DefaultCapacity, runtimestatus.DefaultTTL)

	srv := NewServer(Deps{
		Store:   st,
		Runtime: runtime,
		OrchDeps: orchestrator.Dependencies{
			Store:  st,
			Notify: notify,
		},
	})
	return srv, st, notify
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestCreateSession_NoRoomService(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/session/create", createSessionRequest{Pattern: "sales"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp createSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	require.NotEmpty(t, resp.UniqueLink)
	require.Equal(t, "active", resp.Status)
	require.NotNil(t, resp.Warning)
}

func TestSessionLifecycle_CreateEditConfirmExport(t *testing.T) {
	srv, _, notify := newTestServer(t)

	createRec := doJSON(t, srv, http.MethodPost, "/session/create", createSessionRequest{Pattern: "support"})
	require.Equal(t, http.StatusOK, createRec.Code)
	var created createSessionResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	updateRec := doJSON(t, srv, http.MethodPut, "/session/"+created.SessionID+"/anketa", updateAnketaRequest{
		AnketaData: map[string]any{"company_name": "Acme Co", "industry": "Widgets"},
		AnketaMD:   "# Acme Co\n\nIndustry: Widgets\n",
	})
	require.Equal(t, http.StatusOK, updateRec.Code)

	getRec := doJSON(t, srv, http.MethodGet, "/session/"+created.SessionID+"/anketa", nil)
	require.Equal(t, http.StatusOK, getRec.Code)
	var anketaResp anketaResponse
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &anketaResp))
	require.Equal(t, "Acme Co", anketaResp.AnketaData["company_name"])
	require.Equal(t, "active", anketaResp.Status)

	sessRec := doJSON(t, srv, http.MethodGet, "/session/"+created.SessionID, nil)
	require.Equal(t, http.StatusOK, sessRec.Code)
	var sess store.Session
	require.NoError(t, json.Unmarshal(sessRec.Body.Bytes(), &sess))
	require.Equal(t, "Acme Co", sess.CompanyName, "company_name must be re-derived from anketa_data")

	// This handler-level test does not run orchestrator.Finalize, so it
	// uses the force path directly through the store to reach a
	// confirmable state.
	require.NoError(t, srv.deps.Store.UpdateStatus(context.Background(), created.SessionID, "reviewing", true))

	confirmRec := doJSON(t, srv, http.MethodPost, "/session/"+created.SessionID+"/confirm", nil)
	require.Equal(t, http.StatusOK, confirmRec.Code)

	require.Eventually(t, func() bool {
		notify.mu.Lock()
		defer notify.mu.Unlock()
		return len(notify.notified) == 1 && notify.notified[0] == created.SessionID
	}, time.Second, 10*time.Millisecond)

	mdRec := doJSON(t, srv, http.MethodGet, "/session/"+created.SessionID+"/export/md", nil)
	require.Equal(t, http.StatusOK, mdRec.Code)
	require.Contains(t, mdRec.Body.String(), "Acme Co")

	htmlRec := doJSON(t, srv, http.MethodGet, "/session/"+created.SessionID+"/export/pdf", nil)
	require.Equal(t, http.StatusOK, htmlRec.Code)
}

// TestIllegalTransition_Confirmed verifies S2: resuming a confirmed
// session is rejected with the spec's literal error message.
func TestIllegalTransition_Confirmed(t *testing.T) {
	srv, st, _ := newTestServer(t)
	sess, err := st.CreateSession(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, st.UpdateStatus(context.Background(), sess.SessionID, "reviewing", true))
	require.NoError(t, st.UpdateStatus(context.Background(), sess.SessionID, "confirmed", false))

	rec := doJSON(t, srv, http.MethodPost, "/session/"+sess.SessionID+"/resume", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Invalid transition: confirmed → active", body["error"])
}

func TestValidateSessionID_RejectsMalformed(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/session/not-a-valid-id", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkDeleteSessions(t *testing.T) {
	srv, st, _ := newTestServer(t)
	a, err := st.CreateSession(context.Background(), nil)
	require.NoError(t, err)
	b, err := st.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodPost, "/sessions/delete", bulkDeleteRequest{SessionIDs: []string{a.SessionID, b.SessionID}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp bulkDeleteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Deleted)

	_, err = st.GetSession(context.Background(), a.SessionID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListSessions(t *testing.T) {
	srv, st, _ := newTestServer(t)
	_, err := st.CreateSession(context.Background(), nil)
	require.NoError(t, err)
	_, err = st.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodGet, "/sessions?limit=10&offset=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listSessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	require.Len(t, resp.Sessions, 2)
}

func TestRoomsUnavailable_ReturnsServiceUnavailable(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/rooms", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVoiceConfigUpdate_RejectsWrongType(t *testing.T) {
	srv, st, _ := newTestServer(t)
	sess, err := st.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodPut, "/session/"+sess.SessionID+"/voice-config", map[string]any{
		"speech_speed": "fast",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoiceConfigUpdate_AcceptsValidValues(t *testing.T) {
	srv, st, _ := newTestServer(t)
	sess, err := st.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodPut, "/session/"+sess.SessionID+"/voice-config", map[string]any{
		"speech_speed": 1.25,
		"voice_tone":   "friendly",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	fetched, err := st.GetSession(context.Background(), sess.SessionID)
	require.NoError(t, err)
	require.NotNil(t, fetched.VoiceConfig)
	require.Equal(t, "friendly", fetched.VoiceConfig.VoiceTone)
}
