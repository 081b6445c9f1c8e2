package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/anketa/pkg/runtimestatus"
	"github.com/codeready-toolchain/anketa/pkg/store"
)

const maxDialogueTurns = 500

// handleUpdateDialogue handles PUT /session/{id}/dialogue: the
// voice-agent subprocess forwards its history over HTTP to defeat
// embedded-store isolation across processes (§4.8).
func (s *Server) handleUpdateDialogue(c *gin.Context) {
	sessionID := c.Param("id")
	var req updateDialogueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.DialogueHistory) > maxDialogueTurns {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dialogue_history exceeds maximum turn count"})
		return
	}
	if req.DurationSeconds < 0 || req.DurationSeconds > 86400 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration_seconds out of range"})
		return
	}

	turns := make([]store.DialogueTurn, 0, len(req.DialogueHistory))
	for _, dto := range req.DialogueHistory {
		ts := time.Now().UTC()
		if dto.Timestamp != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, dto.Timestamp); err == nil {
				ts = parsed
			}
		}
		turns = append(turns, store.DialogueTurn{Role: dto.Role, Content: dto.Content, Timestamp: ts, Phase: dto.Phase})
	}

	if err := s.deps.Store.UpdateDialogue(c.Request.Context(), sessionID, turns, req.DurationSeconds, req.Status); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleUpdateRuntimeStatus handles PUT /session/{id}/runtime-status:
// the voice agent reports its transient phase into L3 (§4.8).
func (s *Server) handleUpdateRuntimeStatus(c *gin.Context) {
	sessionID := c.Param("id")
	var req updateRuntimeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if s.deps.Runtime == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "runtime status cache unavailable"})
		return
	}

	if err := s.deps.Runtime.Set(sessionID, runtimestatus.Status(req.RuntimeStatus)); err != nil {
		switch err {
		case runtimestatus.ErrInvalidStatus:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid runtime_status value"})
		case runtimestatus.ErrCacheFull:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "runtime status cache at capacity"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// recognisedVoiceConfigTypes mirrors pkg/store's closed key set,
// additionally pinning the JSON type each value must have so malformed
// types are rejected here rather than silently coerced (§4.8). Only the
// type is checked: numeric ranges and the allowed values of enumerated
// keys are not validated.
var recognisedVoiceConfigTypes = map[string]string{
	"consultation_type":   "string",
	"voice_gender":         "string",
	"voice_tone":           "string",
	"language":             "string",
	"speech_speed":         "number",
	"silence_duration_ms":  "number",
	"llm_provider":         "string",
	"verbosity":            "string",
	"call_direction":       "string",
}

// handleUpdateVoiceConfig handles PUT /session/{id}/voice-config:
// rejects unrecognised keys, merges the type-validated recognised ones, and
// pings the live room's metadata so the running agent re-reads it
// (§4.8, §4.7 step 5).
func (s *Server) handleUpdateVoiceConfig(c *gin.Context) {
	sessionID := c.Param("id")
	var req updateVoiceConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	for key := range req {
		if _, ok := recognisedVoiceConfigTypes[key]; !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unrecognised voice_config key '" + key + "'"})
			return
		}
	}
	for key, want := range recognisedVoiceConfigTypes {
		val, present := req[key]
		if !present {
			continue
		}
		switch want {
		case "string":
			if _, ok := val.(string); !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "voice_config key '" + key + "' must be a string"})
				return
			}
		case "number":
			if _, ok := val.(float64); !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "voice_config key '" + key + "' must be a number"})
				return
			}
		}
	}

	ctx := c.Request.Context()
	if err := s.deps.Store.UpdateVoiceConfig(ctx, sessionID, req); err != nil {
		writeError(c, err)
		return
	}

	if s.deps.Rooms != nil {
		sess, err := s.deps.Store.GetSession(ctx, sessionID)
		if err == nil && sess.RoomName != "" {
			if err := s.deps.Rooms.UpdateRoomMetadata(ctx, sess.RoomName, `{"voice_config_updated":true}`); err != nil {
				s.log.Warn("failed to notify agent of voice_config change", "session_id", sessionID, "error", err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
