// Package cleanup provides data retention for finished consultations.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/anketa/pkg/room"
	"github.com/codeready-toolchain/anketa/pkg/statemachine"
	"github.com/codeready-toolchain/anketa/pkg/store"
)

// DefaultRetention is how long a session is kept after reaching a
// terminal status (confirmed or declined) before it is purged.
const DefaultRetention = 30 * 24 * time.Hour

// DefaultInterval is how often the retention sweep runs.
const DefaultInterval = time.Hour

// Service periodically purges terminal sessions past their retention
// window, along with any WebRTC room still lingering for them. Rooms is
// optional: a nil Manager just skips the room side of the sweep.
type Service struct {
	store     *store.Store
	rooms     *room.Manager
	retention time.Duration
	interval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a retention sweep over st, optionally also
// deleting rooms left behind by purged sessions.
func NewService(st *store.Store, rooms *room.Manager, retention, interval time.Duration) *Service {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{store: st, rooms: rooms, retention: retention, interval: interval}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started", "retention", s.retention, "interval", s.interval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep purges every terminal session older than the retention window.
// Both terminal statuses are listed separately (ListSessionsSummary only
// filters on one status at a time) and filtered here by age.
func (s *Service) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention)

	var stale []string
	for _, status := range []statemachine.Status{statemachine.StatusConfirmed, statemachine.StatusDeclined} {
		summaries, _, err := s.store.ListSessionsSummary(ctx, string(status), 200, 0)
		if err != nil {
			slog.Error("cleanup: list sessions failed", "status", status, "error", err)
			continue
		}
		for _, sum := range summaries {
			if sum.UpdatedAt.Before(cutoff) {
				stale = append(stale, sum.SessionID)
			}
		}
	}
	if len(stale) == 0 {
		return
	}

	deleted, err := s.store.DeleteSessions(ctx, stale)
	if err != nil {
		slog.Error("cleanup: delete sessions failed", "error", err)
		return
	}
	slog.Info("cleanup: purged stale sessions", "count", deleted)

	if s.rooms == nil {
		return
	}
	for _, id := range stale {
		if err := s.rooms.DeleteRoom(ctx, "consultation-"+id); err != nil {
			slog.Warn("cleanup: room delete failed", "session_id", id, "error", err)
		}
	}
}
