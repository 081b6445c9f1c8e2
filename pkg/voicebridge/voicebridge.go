// Package voicebridge implements the Voice-Agent Bridge (L7): the entry
// point invoked when a participant joins a consultation room. It wires
// room events to the Consultation Orchestrator and owns the realtime
// voice session's lifecycle (§4.7).
package voicebridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/codeready-toolchain/anketa/pkg/llm"
	"github.com/codeready-toolchain/anketa/pkg/orchestrator"
	"github.com/codeready-toolchain/anketa/pkg/store"
)

const (
	// roomNamePrefix is the room_name -> session_id convention (§4.7 step 3).
	roomNamePrefix = "consultation-"
	// DefaultGreetingLockMs is how long incoming audio/conversation
	// items are suppressed after the initial greeting, preventing mic
	// noise from triggering an immediate second turn (§4.7 step 7, §C.3).
	DefaultGreetingLockMs = 1000
)

// ConversationItem is a normalized realtime-session turn.
type ConversationItem struct {
	Role    string
	Content string
}

// RealtimeSession is the live voice session a RoomConnector hands back
// once connected. The bridge drives it without knowing which provider
// backs it.
type RealtimeSession interface {
	OnConversationItemAdded(handler func(ConversationItem))
	OnRoomMetadataChanged(handler func(metadataJSON string))
	OnClose(handler func())
	SendGreeting(ctx context.Context) error
	UpdateParams(ctx context.Context, cfg llm.RealtimeVoiceConfig) error
	Close(ctx context.Context) error
}

// RoomConnector connects the bridge to a LiveKit room and opens a
// realtime voice session bound to it.
type RoomConnector interface {
	Connect(ctx context.Context, roomName string, cfg llm.RealtimeVoiceConfig) (RealtimeSession, error)
}

// Bridge is the voice-agent entry point, one instance per process,
// handling however many concurrent room joins arrive.
type Bridge struct {
	connector RoomConnector
	realtime  llm.RealtimeLLM
	store     *store.Store
	orchDeps  orchestrator.Dependencies
	greetingLockMs int
	log       *slog.Logger

	mu       sync.Mutex
	sessions map[string]*activeSession
}

type activeSession struct {
	orch    *orchestrator.Session
	session RealtimeSession
}

// New builds a Bridge. orchDeps.Store and orchDeps.Extractor must be
// set; orchDeps.Store is also used directly to look up sessions by
// room name.
func New(connector RoomConnector, realtime llm.RealtimeLLM, st *store.Store, orchDeps orchestrator.Dependencies, greetingLockMs int) *Bridge {
	if greetingLockMs <= 0 {
		greetingLockMs = DefaultGreetingLockMs
	}
	return &Bridge{
		connector:      connector,
		realtime:       realtime,
		store:          st,
		orchDeps:       orchDeps,
		greetingLockMs: greetingLockMs,
		log:            slog.With("component", "voicebridge.bridge"),
		sessions:       make(map[string]*activeSession),
	}
}

// Join is invoked when a participant joins roomName. It looks up the
// persisted session, seeds the orchestrator with any existing dialogue,
// constructs the realtime session, registers event handlers, and sends
// the initial greeting behind a greeting lock (§4.7).
func (b *Bridge) Join(ctx context.Context, roomName string) error {
	sessionID := strings.TrimPrefix(roomName, roomNamePrefix)

	var voiceCfg llm.RealtimeVoiceConfig
	var consultationType string
	var seedDialogue []store.DialogueTurn

	if b.store != nil {
		if sess, err := b.store.GetSession(ctx, sessionID); err == nil {
			seedDialogue = sess.DialogueHistory
			if sess.VoiceConfig != nil {
				consultationType = sess.VoiceConfig.ConsultationType
				voiceCfg.SilenceDurationMs = sess.VoiceConfig.SilenceDurationMs
			}
		} else {
			b.log.Info("no persisted session for room, operating standalone", "room", roomName)
		}
	}

	voiceCfg = b.realtime.SessionConfig(voiceCfg)

	session, err := b.connector.Connect(ctx, roomName, voiceCfg)
	if err != nil {
		return err
	}

	orch := orchestrator.NewSession(b.orchDeps, sessionID, consultationType)
	if len(seedDialogue) > 0 {
		orch.SeedDialogue(seedDialogue)
	}

	b.mu.Lock()
	b.sessions[roomName] = &activeSession{orch: orch, session: session}
	b.mu.Unlock()

	b.registerHandlers(ctx, roomName, sessionID, orch, session)
	b.greetAndLock(ctx, sessionID, session)
	return nil
}

// registerHandlers wires the realtime session's events to the
// orchestrator (§4.7 steps 4-6).
func (b *Bridge) registerHandlers(ctx context.Context, roomName, sessionID string, orch *orchestrator.Session, session RealtimeSession) {
	locked := &greetingLock{until: time.Now().Add(time.Duration(b.greetingLockMs) * time.Millisecond)}

	session.OnConversationItemAdded(func(item ConversationItem) {
		if locked.active() {
			return
		}
		turn := store.DialogueTurn{Role: item.Role, Content: item.Content, Timestamp: time.Now()}
		if err := orch.OnDialogueTurn(context.WithoutCancel(ctx), turn); err != nil {
			b.log.Error("orchestrator failed to process dialogue turn", "session_id", sessionID, "error", err)
		}
	})

	session.OnRoomMetadataChanged(func(metadataJSON string) {
		var vc store.VoiceConfig
		if err := json.Unmarshal([]byte(metadataJSON), &vc); err != nil {
			b.log.Warn("failed to parse room metadata as voice_config", "session_id", sessionID, "error", err)
			return
		}
		cfg := b.realtime.SessionConfig(llm.RealtimeVoiceConfig{SilenceDurationMs: vc.SilenceDurationMs})
		if err := session.UpdateParams(context.WithoutCancel(ctx), cfg); err != nil {
			b.log.Warn("failed to adopt updated realtime params", "session_id", sessionID, "error", err)
		}
	})

	session.OnClose(func() {
		finalizeCtx := context.WithoutCancel(ctx)
		if err := orch.Finalize(finalizeCtx); err != nil {
			b.log.Error("finalization failed on session close", "session_id", sessionID, "error", err)
		}
		b.mu.Lock()
		delete(b.sessions, roomName)
		b.mu.Unlock()
	})
}

// greetAndLock sends the initial greeting (§4.7 step 7). The greeting
// lock that suppresses incoming conversation items for the configured
// duration is installed by registerHandlers, before this runs.
func (b *Bridge) greetAndLock(ctx context.Context, sessionID string, session RealtimeSession) {
	if err := session.SendGreeting(ctx); err != nil {
		b.log.Warn("failed to send initial greeting", "session_id", sessionID, "error", err)
	}
}

// greetingLock suppresses conversation-item handling until a deadline.
type greetingLock struct {
	mu    sync.Mutex
	until time.Time
}

func (g *greetingLock) active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Now().Before(g.until)
}
