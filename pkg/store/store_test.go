package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/anketa/pkg/statemachine"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{Path: filepath.Join(dir, "sessions.db"), MaxOpenConns: 1, BusyTimeoutMs: 5000}
	require.NoError(t, cfg.Validate())

	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return New(client)
}

func TestCreateSession_Defaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)
	require.Len(t, sess.SessionID, 8)
	require.NotEmpty(t, sess.UniqueLink)
	require.Equal(t, string(statemachine.StatusActive), sess.Status)
	require.Empty(t, sess.DialogueHistory)
	require.Nil(t, sess.AnketaData)
	require.Nil(t, sess.VoiceConfig)
	require.Equal(t, sess.CreatedAt, sess.UpdatedAt)

	fetched, err := s.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	require.Equal(t, sess.SessionID, fetched.SessionID)
	require.Equal(t, sess.UniqueLink, fetched.UniqueLink)
}

func TestGetSession_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSession(context.Background(), "deadbeef")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetSessionByLink(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)

	fetched, err := s.GetSessionByLink(ctx, sess.UniqueLink)
	require.NoError(t, err)
	require.Equal(t, sess.SessionID, fetched.SessionID)
}

func TestUpdateAnketa(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)

	anketa := map[string]any{"company_name": "FlowCorp", "industry": "Logistics"}
	require.NoError(t, s.UpdateAnketa(ctx, sess.SessionID, anketa, "# FlowCorp"))

	fetched, err := s.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	require.Equal(t, "FlowCorp", fetched.AnketaData["company_name"])
	require.Equal(t, "# FlowCorp", fetched.AnketaMD)
	require.True(t, fetched.UpdatedAt.After(sess.UpdatedAt) || fetched.UpdatedAt.Equal(sess.UpdatedAt))
}

func TestUpdateStatus_ValidTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, s.UpdateStatus(ctx, sess.SessionID, string(statemachine.StatusPaused), false))
	fetched, err := s.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	require.Equal(t, string(statemachine.StatusPaused), fetched.Status)
}

func TestUpdateStatus_InvalidTransitionLeavesStatusUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, s.UpdateStatus(ctx, sess.SessionID, string(statemachine.StatusReviewing), false))
	require.NoError(t, s.UpdateStatus(ctx, sess.SessionID, string(statemachine.StatusConfirmed), false))

	err = s.UpdateStatus(ctx, sess.SessionID, string(statemachine.StatusActive), false)
	require.Error(t, err)

	fetched, err := s.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	require.Equal(t, string(statemachine.StatusConfirmed), fetched.Status)
}

func TestUpdateStatus_TerminalAllowsForceOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.UpdateStatus(ctx, sess.SessionID, string(statemachine.StatusReviewing), false))
	require.NoError(t, s.UpdateStatus(ctx, sess.SessionID, string(statemachine.StatusConfirmed), false))

	err = s.UpdateStatus(ctx, sess.SessionID, string(statemachine.StatusDeclined), false)
	require.Error(t, err)

	require.NoError(t, s.UpdateStatus(ctx, sess.SessionID, string(statemachine.StatusDeclined), true))
	fetched, err := s.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	require.Equal(t, string(statemachine.StatusDeclined), fetched.Status)
}

func TestUpdateVoiceConfig_DropsUnrecognisedKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)

	err = s.UpdateVoiceConfig(ctx, sess.SessionID, map[string]any{
		"voice_gender": "male",
		"evil_key":     "drop me",
	})
	require.NoError(t, err)

	fetched, err := s.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	require.NotNil(t, fetched.VoiceConfig)
	require.Equal(t, "male", fetched.VoiceConfig.VoiceGender)
}

func TestListSessionsSummary_NeverReturnsHeavyFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.CreateSession(ctx, nil)
		require.NoError(t, err)
	}

	summaries, total, err := s.ListSessionsSummary(ctx, "", 200, 0)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, summaries, 3)
}

func TestDeleteSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)
	b, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)
	_, err = s.CreateSession(ctx, nil)
	require.NoError(t, err)

	deleted, err := s.DeleteSessions(ctx, []string{a.SessionID, b.SessionID})
	require.NoError(t, err)
	require.Equal(t, 2, deleted)

	_, total, err := s.ListSessionsSummary(ctx, "", 200, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)

	_, err = s.GetSession(ctx, a.SessionID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAnketaRoundTrip_NestedAndUnicode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, nil)
	require.NoError(t, err)

	anketa := map[string]any{
		"company_name": "ООО Ромашка",
		"faq": []any{
			map[string]any{"question": "Сколько?", "answer": "42"},
		},
		"active":  true,
		"missing": nil,
	}
	require.NoError(t, s.UpdateAnketa(ctx, sess.SessionID, anketa, ""))

	fetched, err := s.GetSession(ctx, sess.SessionID)
	require.NoError(t, err)
	require.Equal(t, anketa["company_name"], fetched.AnketaData["company_name"])
	require.Equal(t, true, fetched.AnketaData["active"])
	require.Nil(t, fetched.AnketaData["missing"])
}
