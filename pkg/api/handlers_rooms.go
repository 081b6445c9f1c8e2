package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// handleListSessions handles GET /sessions: paginated session
// summaries, optionally filtered by status (§4.8 "list_sessions").
func (s *Server) handleListSessions(c *gin.Context) {
	status := c.Query("status")
	limit := 50
	offset := 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	summaries, total, err := s.deps.Store.ListSessionsSummary(c.Request.Context(), status, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]sessionSummaryDTO, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, sessionSummaryDTO{
			SessionID:    sum.SessionID,
			Status:       sum.Status,
			CreatedAt:    sum.CreatedAt.Format(time.RFC3339Nano),
			UpdatedAt:    sum.UpdatedAt.Format(time.RFC3339Nano),
			CompanyName:  sum.CompanyName,
			ContactName:  sum.ContactName,
			HasDocuments: sum.HasDocuments,
		})
	}
	c.JSON(http.StatusOK, listSessionsResponse{Sessions: out, Total: total})
}

// handleBulkDeleteSessions handles POST /sessions/delete: bulk delete
// with best-effort room cleanup for every deleted session (S3).
func (s *Server) handleBulkDeleteSessions(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.SessionIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_ids must not be empty"})
		return
	}

	ctx := c.Request.Context()
	deleted, err := s.deps.Store.DeleteSessions(ctx, req.SessionIDs)
	if err != nil {
		writeError(c, err)
		return
	}

	if s.deps.Rooms != nil {
		for _, id := range req.SessionIDs {
			roomName := "consultation-" + id
			if err := s.deps.Rooms.DeleteRoom(ctx, roomName); err != nil {
				s.log.Warn("failed to clean up room during bulk delete", "session_id", id, "error", err)
			}
		}
	}

	for _, id := range req.SessionIDs {
		if s.deps.Runtime != nil {
			s.deps.Runtime.Delete(id)
		}
		s.forgetOrchestrator(id)
	}

	c.JSON(http.StatusOK, bulkDeleteResponse{Deleted: deleted})
}

// handleListRooms handles GET /rooms: admin visibility into every
// active LiveKit room (§4.8).
func (s *Server) handleListRooms(c *gin.Context) {
	if s.deps.Rooms == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "room service unavailable"})
		return
	}
	rooms, err := s.deps.Rooms.ListRooms(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]roomDTO, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, roomDTO{Name: r.Name, NumParticipants: r.NumParticipants, CreationTime: r.CreationTime})
	}
	c.JSON(http.StatusOK, roomsResponse{Rooms: out})
}

// handleDeleteAllRooms handles DELETE /rooms: the admin "kill all
// rooms" operation, independent of session records (§4.8).
func (s *Server) handleDeleteAllRooms(c *gin.Context) {
	if s.deps.Rooms == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "room service unavailable"})
		return
	}
	deleted, err := s.deps.Rooms.DeleteAllRooms(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, deleteRoomsResponse{Deleted: deleted})
}
