// Package notify implements a lean fire-and-forget notifier satisfying
// pkg/orchestrator's Notifier interface. Concrete notification delivery
// channels are explicitly out of scope for the core; this package wires
// a single optional Slack channel (grounded on the Slack Web API client
// used elsewhere in the example pack) so the interface has a real,
// testable default rather than going unserved.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/codeready-toolchain/anketa/pkg/store"
)

// poster is the narrow surface Manager needs from a Slack client, kept
// as an interface so tests can substitute a fake instead of performing
// network I/O.
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...goslack.MsgOption) (string, string, error)
}

// Manager satisfies pkg/orchestrator's Notifier interface: a nil-safe,
// fail-open fire-and-forget notification on session confirmation
// (§4.6, §4.10).
type Manager struct {
	client    poster
	channel   string
	lookup    func(ctx context.Context, sessionID string) (*store.Session, error)
	log       *slog.Logger
	postBound time.Duration
}

// New builds a Manager posting to a Slack channel, looking up session
// details via st for message content. Returns nil if token or channel
// is empty, matching the nil-safe pattern the rest of the codebase uses
// for optional external collaborators.
func New(token, channel string, st *store.Store) *Manager {
	if token == "" || channel == "" {
		return nil
	}
	return &Manager{
		client:    goslack.New(token),
		channel:   channel,
		lookup:    st.GetSession,
		log:       slog.With("component", "notify.manager"),
		postBound: 5 * time.Second,
	}
}

// NewWithClient builds a Manager around a pre-built poster, used by
// tests to substitute a fake Slack client.
func NewWithClient(client poster, channel string, lookup func(ctx context.Context, sessionID string) (*store.Session, error)) *Manager {
	return &Manager{
		client:    client,
		channel:   channel,
		lookup:    lookup,
		log:       slog.With("component", "notify.manager"),
		postBound: 5 * time.Second,
	}
}

// OnSessionConfirmed posts a one-line Slack message summarizing the
// finalized session. Nil-safe and fail-open: a nil Manager is a no-op,
// and delivery errors are logged, never returned, since the orchestrator
// treats notification as fire-and-forget.
func (m *Manager) OnSessionConfirmed(ctx context.Context, sessionID string) {
	if m == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, m.postBound)
	defer cancel()

	companyName := sessionID
	if m.lookup != nil {
		if sess, err := m.lookup(ctx, sessionID); err == nil && sess.CompanyName != "" {
			companyName = sess.CompanyName
		}
	}

	text := fmt.Sprintf("Consultation ready for review: %s (session %s)", companyName, sessionID)
	if _, _, err := m.client.PostMessageContext(ctx, m.channel, goslack.MsgOptionText(text, false)); err != nil {
		m.log.Error("failed to post session-confirmed notification", "session_id", sessionID, "error", err)
	}
}
