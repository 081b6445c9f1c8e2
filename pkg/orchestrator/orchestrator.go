// Package orchestrator implements the Consultation Orchestrator (L6):
// the per-session state machine that reacts to dialogue growth and
// schedules extraction, knowledge-base enrichment, research, and the
// review-phase switch (§4.6). One Session runs inside the voice-agent
// bridge process per active consultation.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/anketa/pkg/anketa"
	"github.com/codeready-toolchain/anketa/pkg/extraction"
	"github.com/codeready-toolchain/anketa/pkg/statemachine"
	"github.com/codeready-toolchain/anketa/pkg/store"
)

const (
	// extractThreshold is the messages_since_last_extract gate (§4.6).
	extractThreshold = 6
	// minTotalMessages is the floor below which no extraction fires even
	// if extractThreshold is reached (e.g. right after session creation).
	minTotalMessages = 4
	// kbEnrichThreshold is the completion-rate crossing that triggers
	// knowledge-base enrichment, once per session (§4.6 step 3).
	kbEnrichThreshold = 0.3
	// reviewThreshold is the completion-rate crossing that switches the
	// session into the review phase, once per session (§4.6 step 5).
	reviewThreshold = 0.7
	// researchBudget is the timeout on the background research call's
	// context; the call is cancelled once it is spent (§4.6 step 4).
	researchBudget = 30 * time.Second
)

// KnowledgeBase enriches the live LLM instructions with industry
// context once a session's anketa takes shape (§4.6 step 3).
type KnowledgeBase interface {
	Enrich(ctx context.Context, industry, companyName string, services []string) (string, error)
}

// ResearchEngine performs background company/market research once an
// anketa carries enough identity to act on (§4.6 step 4).
type ResearchEngine interface {
	Research(ctx context.Context, companyName, website string) (*store.DocumentContext, error)
}

// InstructionSink installs updated system instructions on the live
// realtime LLM session; owned by the voice-agent bridge (§4.6 step 3, 5).
type InstructionSink interface {
	SetInstructions(ctx context.Context, sessionID, instructions string) error
}

// Notifier delivers fire-and-forget notifications to external
// collaborators once a session is finalized (§4.6, §4.10).
type Notifier interface {
	OnSessionConfirmed(ctx context.Context, sessionID string)
}

// MarkdownRenderer renders a canonical anketa to Markdown for
// finalization (§4.10).
type MarkdownRenderer interface {
	Render(a *anketa.Anketa) (string, error)
}

// ExtractionMetrics records one completed extraction pass for
// observability, satisfied by pkg/metrics.Recorder.
type ExtractionMetrics interface {
	RecordExtraction(ctx context.Context)
}

// Dependencies bundles every collaborator a Session needs. Extractor
// must be set. Any other nil field degrades gracefully: the
// corresponding step is skipped (fire-and-forget failure semantics
// per §4.6).
type Dependencies struct {
	Store      *store.Store
	Extractor  *extraction.Coordinator
	KB         KnowledgeBase
	Research   ResearchEngine
	Instructs  InstructionSink
	Notify     Notifier
	Render     MarkdownRenderer
	Metrics    ExtractionMetrics
	BasePrompt string
}

// Session is the orchestrator instance bound to one active session. Its
// once-only flags and counters live only in memory and do not survive a
// process restart (§4.6 "Idempotency").
type Session struct {
	deps      Dependencies
	sessionID string
	log       *slog.Logger

	mu                       sync.Mutex
	dialogue                 []store.DialogueTurn
	messagesSinceLastExtract int
	totalMessages            int
	consultationType         string
	kbEnriched               bool
	reviewStarted            bool
	researchDone             bool
	countryDetected          bool
	extractionInFlight       bool
	extractionPending        bool
	lastAnketa               *anketa.Anketa
	startedAt                time.Time
}

// NewSession builds an orchestrator for sessionID. consultationType is
// cached from the session's voice_config up front (§4.6: "consultation_type
// — cached from voice_config").
func NewSession(deps Dependencies, sessionID, consultationType string) *Session {
	return &Session{
		deps:             deps,
		sessionID:        sessionID,
		consultationType: consultationType,
		startedAt:        time.Now(),
		log:              slog.With("component", "orchestrator.session", "session_id", sessionID),
	}
}

// SeedDialogue primes a freshly constructed Session with a previously
// persisted dialogue (e.g. on voice-agent reconnect) without counting
// it toward the extraction threshold (§4.7 step 3).
func (s *Session) SeedDialogue(dialogue []store.DialogueTurn) {
	s.mu.Lock()
	s.dialogue = append([]store.DialogueTurn(nil), dialogue...)
	s.totalMessages = len(dialogue)
	s.mu.Unlock()
}

// OnDialogueTurn appends turn to the in-memory and persisted history,
// increments the extraction counter, and launches a background
// extraction once the threshold is reached (§4.6 "Event: dialogue turn
// appended").
func (s *Session) OnDialogueTurn(ctx context.Context, turn store.DialogueTurn) error {
	s.mu.Lock()
	s.dialogue = append(s.dialogue, turn)
	s.totalMessages++
	s.messagesSinceLastExtract++
	shouldExtract := s.messagesSinceLastExtract >= extractThreshold && s.totalMessages >= minTotalMessages
	if shouldExtract {
		s.messagesSinceLastExtract = 0
	}
	dialogueCopy := append([]store.DialogueTurn(nil), s.dialogue...)
	s.mu.Unlock()

	if s.deps.Store != nil {
		if err := s.deps.Store.UpdateDialogue(ctx, s.sessionID, dialogueCopy, s.elapsedSeconds(), ""); err != nil {
			s.log.Error("failed to persist dialogue turn", "error", err)
		}
	}

	if !s.countryDetectedOnce() {
		if ext := anketa.ExtractPhone(toAnketaTurns(dialogueCopy)); ext.Value != "" {
			s.markCountryDetected()
		}
	}

	if shouldExtract {
		s.launchExtraction(ctx)
	}
	return nil
}

// OnDocumentContextUpdated skips the counter gate and immediately
// launches an extraction so the new document context is reflected in
// the next anketa (§4.6 "Event: document context updated").
func (s *Session) OnDocumentContextUpdated(ctx context.Context) {
	s.launchExtraction(ctx)
}

// Finalize performs a last extraction, persists it, renders Markdown,
// updates session metadata, transitions status to reviewing, and
// notifies external collaborators fire-and-forget (§4.6 "Event: session
// finalized"). If the final extraction fails, the last known-good
// anketa is retained.
func (s *Session) Finalize(ctx context.Context) error {
	s.mu.Lock()
	dialogueCopy := append([]store.DialogueTurn(nil), s.dialogue...)
	consultationType := s.consultationType
	prior := s.lastAnketa
	s.mu.Unlock()

	var docContext *store.DocumentContext
	if s.deps.Store != nil {
		if sess, err := s.deps.Store.GetSession(ctx, s.sessionID); err == nil {
			docContext = sess.DocumentContext
		}
	}

	result := s.deps.Extractor.Extract(ctx, extraction.Input{
		Dialogue:         dialogueCopy,
		DurationSeconds:  s.elapsedSeconds(),
		DocumentContext:  docContext,
		ConsultationType: consultationType,
		PriorAnketa:      prior,
	})

	if result.Interview != nil {
		if err := s.persistInterview(ctx, result.Interview); err != nil {
			s.log.Error("failed to persist final interview anketa", "error", err)
		}
	}

	final := result.Anketa
	if final == nil && prior != nil {
		final = prior
	}

	if final != nil {
		s.setLastAnketa(final)
		if err := s.persistAnketa(ctx, final); err != nil {
			s.log.Error("failed to persist final anketa", "error", err)
		}
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.UpdateStatus(ctx, s.sessionID, string(statemachine.StatusReviewing), false); err != nil {
			s.log.Error("failed to transition session to reviewing", "error", err)
		}
	}

	if s.deps.Notify != nil {
		go s.deps.Notify.OnSessionConfirmed(context.WithoutCancel(ctx), s.sessionID)
	}
	return nil
}

// launchExtraction starts a background extraction if none is in
// flight; otherwise it defers the request and a second extraction runs
// immediately after the first completes (debounced fan-in, §4.6 step 2).
func (s *Session) launchExtraction(ctx context.Context) {
	s.mu.Lock()
	if s.extractionInFlight {
		s.extractionPending = true
		s.mu.Unlock()
		return
	}
	s.extractionInFlight = true
	s.mu.Unlock()

	go s.extractionLoop(context.WithoutCancel(ctx))
}

func (s *Session) extractionLoop(ctx context.Context) {
	for {
		s.runExtractionOnce(ctx)

		s.mu.Lock()
		if !s.extractionPending {
			s.extractionInFlight = false
			s.mu.Unlock()
			return
		}
		s.extractionPending = false
		s.mu.Unlock()
	}
}

func (s *Session) runExtractionOnce(ctx context.Context) {
	s.mu.Lock()
	dialogueCopy := append([]store.DialogueTurn(nil), s.dialogue...)
	consultationType := s.consultationType
	prior := s.lastAnketa
	s.mu.Unlock()

	var docContext *store.DocumentContext
	if s.deps.Store != nil {
		if sess, err := s.deps.Store.GetSession(ctx, s.sessionID); err == nil {
			docContext = sess.DocumentContext
		}
	}

	result := s.deps.Extractor.Extract(ctx, extraction.Input{
		Dialogue:         dialogueCopy,
		DurationSeconds:  s.elapsedSeconds(),
		DocumentContext:  docContext,
		ConsultationType: consultationType,
		PriorAnketa:      prior,
	})

	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordExtraction(ctx)
	}

	if result.Interview != nil {
		if err := s.persistInterview(ctx, result.Interview); err != nil {
			s.log.Error("failed to persist interview anketa", "error", err)
		}
		return
	}
	if result.Anketa == nil {
		return
	}

	s.setLastAnketa(result.Anketa)
	if err := s.persistAnketa(ctx, result.Anketa); err != nil {
		s.log.Error("failed to persist anketa", "error", err)
	}

	rate := result.Anketa.CompletionRate()

	if !s.isInterview() {
		s.maybeEnrichKB(ctx, result.Anketa, rate)
		s.maybeStartResearch(ctx, result.Anketa)
	}
	s.maybeStartReview(ctx, result.Anketa, rate)
}

// maybeEnrichKB detects the industry from the anketa and fetches an
// enrichment blob exactly once per session (§4.6 step 3).
func (s *Session) maybeEnrichKB(ctx context.Context, a *anketa.Anketa, rate float64) {
	if rate < kbEnrichThreshold || s.deps.KB == nil {
		return
	}
	s.mu.Lock()
	if s.kbEnriched {
		s.mu.Unlock()
		return
	}
	s.kbEnriched = true
	s.mu.Unlock()

	go func() {
		ctx := context.WithoutCancel(ctx)
		blob, err := s.deps.KB.Enrich(ctx, a.Industry, a.CompanyName, a.Services)
		if err != nil {
			s.log.Warn("knowledge base enrichment failed, continuing without it", "error", err)
			return
		}
		if s.deps.Instructs == nil {
			return
		}
		instructions := s.deps.BasePrompt + "\n\n" + blob
		if err := s.deps.Instructs.SetInstructions(ctx, s.sessionID, instructions); err != nil {
			s.log.Warn("failed to install enriched instructions", "error", err)
		}
	}()
}

// maybeStartResearch kicks off background research once the anketa has
// enough identity to act on, at most once per session (§4.6 step 4).
func (s *Session) maybeStartResearch(ctx context.Context, a *anketa.Anketa) {
	if s.deps.Research == nil {
		return
	}
	if a.Website == "" && !(a.CompanyName != "" && a.Industry != "") {
		return
	}
	s.mu.Lock()
	if s.researchDone {
		s.mu.Unlock()
		return
	}
	s.researchDone = true
	s.mu.Unlock()

	go func() {
		researchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), researchBudget)
		defer cancel()

		docContext, err := s.deps.Research.Research(researchCtx, a.CompanyName, a.Website)
		if err != nil {
			s.log.Warn("background research failed, continuing without it", "error", err)
			return
		}
		if s.deps.Store != nil && docContext != nil {
			if err := s.deps.Store.UpdateDocumentContext(context.WithoutCancel(ctx), s.sessionID, docContext); err != nil {
				s.log.Warn("failed to persist research document context", "error", err)
			}
		}
	}()
}

// maybeStartReview installs the review system prompt once the anketa is
// substantially filled in, at most once per session (§4.6 step 5). It
// does not set any runtime status; Session has no runtime status cache.
func (s *Session) maybeStartReview(ctx context.Context, a *anketa.Anketa, rate float64) {
	if rate < reviewThreshold {
		return
	}
	s.mu.Lock()
	if s.reviewStarted {
		s.mu.Unlock()
		return
	}
	s.reviewStarted = true
	s.mu.Unlock()

	if s.deps.Instructs != nil {
		reviewPrompt := fmt.Sprintf("%s\n\nThe questionnaire looks complete. Read it back to the caller for confirmation:\n\ncompany: %s\nindustry: %s\nagent purpose: %s",
			s.deps.BasePrompt, a.CompanyName, a.Industry, a.AgentPurpose)
		if err := s.deps.Instructs.SetInstructions(ctx, s.sessionID, reviewPrompt); err != nil {
			s.log.Warn("failed to install review instructions", "error", err)
		}
	}
}

func (s *Session) persistAnketa(ctx context.Context, a *anketa.Anketa) error {
	if s.deps.Store == nil {
		return nil
	}
	data, err := anketaToMap(a)
	if err != nil {
		return fmt.Errorf("orchestrator: marshal anketa: %w", err)
	}
	var md string
	if s.deps.Render != nil {
		if rendered, err := s.deps.Render.Render(a); err == nil {
			md = rendered
		} else {
			s.log.Warn("failed to render anketa markdown", "error", err)
		}
	}
	if err := s.deps.Store.UpdateAnketa(ctx, s.sessionID, data, md); err != nil {
		return err
	}
	return s.deps.Store.UpdateMetadata(ctx, s.sessionID, strPtr(a.CompanyName), strPtr(a.ContactName))
}

func (s *Session) persistInterview(ctx context.Context, ia *anketa.InterviewAnketa) error {
	if s.deps.Store == nil {
		return nil
	}
	data, err := interviewToMap(ia)
	if err != nil {
		return fmt.Errorf("orchestrator: marshal interview anketa: %w", err)
	}
	if err := s.deps.Store.UpdateAnketa(ctx, s.sessionID, data, ""); err != nil {
		return err
	}
	return s.deps.Store.UpdateMetadata(ctx, s.sessionID, strPtr(ia.CompanyName), strPtr(ia.ContactName))
}

func (s *Session) isInterview() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consultationType == "interview"
}

func (s *Session) setLastAnketa(a *anketa.Anketa) {
	s.mu.Lock()
	s.lastAnketa = a
	s.mu.Unlock()
}

func (s *Session) countryDetectedOnce() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countryDetected
}

func (s *Session) markCountryDetected() {
	s.mu.Lock()
	s.countryDetected = true
	s.mu.Unlock()
}

func (s *Session) elapsedSeconds() float64 {
	return time.Since(s.startedAt).Seconds()
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toAnketaTurns(dialogue []store.DialogueTurn) []anketa.Turn {
	turns := make([]anketa.Turn, len(dialogue))
	for i, d := range dialogue {
		turns[i] = anketa.Turn{Role: d.Role, Content: d.Content}
	}
	return turns
}
