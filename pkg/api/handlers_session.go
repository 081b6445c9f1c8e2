package api

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/anketa/pkg/statemachine"
	"github.com/codeready-toolchain/anketa/pkg/store"
)

var uniqueLinkPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// handleCreateSession handles POST /session/create (§4.8).
func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	voiceConfig := voiceConfigFromSettings(req.Pattern, req.VoiceSettings)
	sess, err := s.deps.Store.CreateSession(c.Request.Context(), voiceConfig)
	if err != nil {
		writeError(c, err)
		return
	}

	var warning *string
	var token string
	if s.deps.Rooms != nil {
		t, w := s.deps.Rooms.EnsureRoom(c.Request.Context(), sess.RoomName, sess.SessionID)
		token = t
		if w != "" {
			warning = &w
		}
	} else {
		w := "room service unavailable"
		warning = &w
	}

	c.JSON(http.StatusOK, createSessionResponse{
		SessionID:  sess.SessionID,
		UniqueLink: sess.UniqueLink,
		RoomName:   sess.RoomName,
		Token:      token,
		Status:     sess.Status,
		Warning:    warning,
	})
}

// voiceConfigFromSettings builds a store.VoiceConfig from the open
// voice_settings map, round-tripping through JSON so unrecognised keys
// are silently dropped (mirroring store.UpdateVoiceConfig's filtering).
func voiceConfigFromSettings(pattern string, settings map[string]any) *store.VoiceConfig {
	vc := &store.VoiceConfig{ConsultationType: pattern}
	if len(settings) == 0 {
		return vc
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return vc
	}
	_ = json.Unmarshal(raw, vc)
	vc.ConsultationType = pattern
	return vc
}

// handleGetSession handles GET /session/{id}.
func (s *Server) handleGetSession(c *gin.Context) {
	sess, err := s.deps.Store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// handleGetByLink handles GET /session/by-link/{link}.
func (s *Server) handleGetByLink(c *gin.Context) {
	link := c.Param("link")
	if !uniqueLinkPattern.MatchString(link) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid link format"})
		return
	}
	sess, err := s.deps.Store.GetSessionByLink(c.Request.Context(), link)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// handlePause handles POST /session/{id}/pause.
func (s *Server) handlePause(c *gin.Context) {
	if err := s.deps.Store.UpdateStatus(c.Request.Context(), c.Param("id"), string(statemachine.StatusPaused), false); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statemachine.StatusPaused})
}

// handleResume handles POST /session/{id}/resume.
func (s *Server) handleResume(c *gin.Context) {
	if err := s.deps.Store.UpdateStatus(c.Request.Context(), c.Param("id"), string(statemachine.StatusActive), false); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statemachine.StatusActive})
}

// handleEnd handles POST /session/{id}/end (explicit tab-close).
func (s *Server) handleEnd(c *gin.Context) {
	if err := s.deps.Store.UpdateStatus(c.Request.Context(), c.Param("id"), string(statemachine.StatusPaused), false); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statemachine.StatusPaused})
}

// handleConfirm handles POST /session/{id}/confirm: transitions
// reviewing -> confirmed, fires the fire-and-forget notification, and
// clears both the runtime cache entry and the cached orchestrator
// (§4.8 "triggers notification delivery; clears runtime cache entry").
func (s *Server) handleConfirm(c *gin.Context) {
	sessionID := c.Param("id")
	if err := s.deps.Store.UpdateStatus(c.Request.Context(), sessionID, string(statemachine.StatusConfirmed), false); err != nil {
		writeError(c, err)
		return
	}

	if s.deps.Runtime != nil {
		s.deps.Runtime.Delete(sessionID)
	}
	s.forgetOrchestrator(sessionID)

	if s.deps.OrchDeps.Notify != nil {
		go s.deps.OrchDeps.Notify.OnSessionConfirmed(context.WithoutCancel(c.Request.Context()), sessionID)
	}

	c.JSON(http.StatusOK, gin.H{"status": statemachine.StatusConfirmed})
}

// handleKill handles POST /session/{id}/kill: the admin force-path.
// Tears down the room, forces status to declined with override, and
// clears the runtime cache entry regardless of current status (§4.8).
func (s *Server) handleKill(c *gin.Context) {
	sessionID := c.Param("id")
	ctx := c.Request.Context()

	sess, err := s.deps.Store.GetSession(ctx, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	if s.deps.Rooms != nil && sess.RoomName != "" {
		if err := s.deps.Rooms.DeleteRoom(ctx, sess.RoomName); err != nil {
			s.log.Warn("failed to delete room on kill", "session_id", sessionID, "error", err)
		}
	}

	if err := s.deps.Store.UpdateStatus(ctx, sessionID, string(statemachine.StatusDeclined), true); err != nil {
		writeError(c, err)
		return
	}

	if s.deps.Runtime != nil {
		s.deps.Runtime.Delete(sessionID)
	}
	s.forgetOrchestrator(sessionID)

	c.JSON(http.StatusOK, gin.H{"status": statemachine.StatusDeclined})
}

// handleReconnectGet handles GET /session/{id}/reconnect: idempotent,
// never mutates status (§4.8).
func (s *Server) handleReconnectGet(c *gin.Context) {
	sessionID := c.Param("id")
	ctx := c.Request.Context()

	sess, err := s.deps.Store.GetSession(ctx, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	var token string
	var warning *string
	if s.deps.Rooms != nil {
		t, w := s.deps.Rooms.EnsureRoom(ctx, sess.RoomName, sessionID)
		token = t
		if w != "" {
			warning = &w
		}
		if err := s.deps.Rooms.UpdateRoomMetadata(ctx, sess.RoomName, `{"voice_config_updated":true}`); err != nil {
			s.log.Warn("failed to poke room metadata on reconnect", "session_id", sessionID, "error", err)
		}
	}

	c.JSON(http.StatusOK, reconnectResponse{Token: token, RoomName: sess.RoomName, Status: sess.Status, Warning: warning})
}

// handleReconnectPost handles POST /session/{id}/reconnect:
// non-idempotent, validates status and transitions paused -> active.
func (s *Server) handleReconnectPost(c *gin.Context) {
	sessionID := c.Param("id")
	ctx := c.Request.Context()

	sess, err := s.deps.Store.GetSession(ctx, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	switch statemachine.Status(sess.Status) {
	case statemachine.StatusPaused:
		if err := s.deps.Store.UpdateStatus(ctx, sessionID, string(statemachine.StatusActive), false); err != nil {
			writeError(c, err)
			return
		}
		sess.Status = string(statemachine.StatusActive)
	case statemachine.StatusActive:
		// already active, nothing to transition
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "session is not reconnectable from its current status"})
		return
	}

	var token string
	var warning *string
	if s.deps.Rooms != nil {
		t, w := s.deps.Rooms.EnsureRoom(ctx, sess.RoomName, sessionID)
		token = t
		if w != "" {
			warning = &w
		}
	}

	c.JSON(http.StatusOK, reconnectResponse{Token: token, RoomName: sess.RoomName, Status: sess.Status, Warning: warning})
}
