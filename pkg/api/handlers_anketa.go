package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/anketa/pkg/anketa"
	"github.com/codeready-toolchain/anketa/pkg/runtimestatus"
)

const (
	maxAnketaDataKeys = 200
	maxAnketaMDChars  = 100_000
)

// handleGetAnketa handles GET /session/{id}/anketa, the endpoint
// clients poll roughly every 2s (§4.8).
func (s *Server) handleGetAnketa(c *gin.Context) {
	sessionID := c.Param("id")
	sess, err := s.deps.Store.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	var rate float64
	if sess.AnketaData != nil {
		if a, err := anketa.FromMap(sess.AnketaData); err == nil {
			rate = a.CompletionRate()
		}
	}

	runtime := string(runtimestatus.StatusIdle)
	if s.deps.Runtime != nil {
		if rs, ok := s.deps.Runtime.Get(sessionID); ok {
			runtime = string(rs)
		}
	}

	c.JSON(http.StatusOK, anketaResponse{
		AnketaData:     sess.AnketaData,
		AnketaMD:       sess.AnketaMD,
		Status:         sess.Status,
		RuntimeStatus:  runtime,
		CompanyName:    sess.CompanyName,
		UpdatedAt:      sess.UpdatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
		CompletionRate: rate,
	})
}

// handleUpdateAnketa handles PUT (and POST, for sendBeacon
// compatibility) /session/{id}/anketa: client edits (§4.8).
func (s *Server) handleUpdateAnketa(c *gin.Context) {
	sessionID := c.Param("id")
	var req updateAnketaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.AnketaData) > maxAnketaDataKeys {
		c.JSON(http.StatusBadRequest, gin.H{"error": "anketa_data exceeds maximum key count"})
		return
	}
	if len(req.AnketaMD) > maxAnketaMDChars {
		c.JSON(http.StatusBadRequest, gin.H{"error": "anketa_md exceeds maximum length"})
		return
	}

	ctx := c.Request.Context()
	if err := s.deps.Store.UpdateAnketa(ctx, sessionID, req.AnketaData, req.AnketaMD); err != nil {
		writeError(c, err)
		return
	}

	// The top-level company_name column is denormalized; re-derive it
	// from anketa_data on every write (§9 design note).
	if companyName, ok := req.AnketaData["company_name"].(string); ok {
		if err := s.deps.Store.UpdateMetadata(ctx, sessionID, &companyName, nil); err != nil {
			s.log.Warn("failed to re-derive denormalized company_name", "session_id", sessionID, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
