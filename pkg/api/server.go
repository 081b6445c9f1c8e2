// Package api implements the HTTP Surface (L8): the request-response
// API fronting the Session Store, Runtime Status Cache, room service,
// document pipeline, and export renderer (§4.8).
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/anketa/pkg/documents"
	"github.com/codeready-toolchain/anketa/pkg/export"
	"github.com/codeready-toolchain/anketa/pkg/metrics"
	"github.com/codeready-toolchain/anketa/pkg/orchestrator"
	"github.com/codeready-toolchain/anketa/pkg/room"
	"github.com/codeready-toolchain/anketa/pkg/runtimestatus"
	"github.com/codeready-toolchain/anketa/pkg/store"
	"github.com/codeready-toolchain/anketa/pkg/version"
)

// Deps bundles every collaborator the HTTP surface needs. Rooms and
// Documents are nil-safe: routes that need them return a warning or a
// 503-equivalent error instead of panicking, matching the rest of the
// module's fail-open posture toward optional collaborators.
type Deps struct {
	Store     *store.Store
	Runtime   *runtimestatus.Cache
	Rooms     *room.Manager
	Documents *documents.Pipeline
	Render    *export.Renderer
	Metrics   *metrics.Recorder
	OrchDeps  orchestrator.Dependencies
}

// Server is the HTTP API server (§4.8).
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	deps       Deps
	log        *slog.Logger

	mu       sync.Mutex
	sessions map[string]*orchestrator.Session
}

// NewServer builds a Server and registers all routes.
func NewServer(deps Deps) *Server {
	s := &Server{
		deps:     deps,
		log:      slog.With("component", "api.server"),
		sessions: make(map[string]*orchestrator.Session),
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery(), metricsMiddleware(deps.Metrics))
	s.setupRoutes()
	return s
}

// Router exposes the underlying gin.Engine, primarily for tests that
// drive requests with httptest without a live listener.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener,
// used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.router}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	root := s.router.Group("/")
	root.Use(securityHeaders(), requestID())

	root.GET("/sessions", s.handleListSessions)
	root.POST("/sessions/delete", s.handleBulkDeleteSessions)
	root.GET("/rooms", s.handleListRooms)
	root.DELETE("/rooms", s.handleDeleteAllRooms)

	sessionRoot := root.Group("/session")
	sessionRoot.POST("/create", s.handleCreateSession)
	sessionRoot.GET("/by-link/:link", s.handleGetByLink)

	id := sessionRoot.Group("/:id")
	id.Use(validateSessionID())
	id.GET("", s.handleGetSession)
	id.POST("/pause", s.handlePause)
	id.POST("/resume", s.handleResume)
	id.POST("/confirm", s.handleConfirm)
	id.POST("/end", s.handleEnd)
	id.POST("/kill", s.handleKill)
	id.GET("/reconnect", s.handleReconnectGet)
	id.POST("/reconnect", s.handleReconnectPost)

	id.GET("/anketa", s.handleGetAnketa)
	id.PUT("/anketa", s.handleUpdateAnketa)
	id.POST("/anketa", s.handleUpdateAnketa)

	id.PUT("/dialogue", s.handleUpdateDialogue)
	id.PUT("/runtime-status", s.handleUpdateRuntimeStatus)
	id.PUT("/voice-config", s.handleUpdateVoiceConfig)

	id.GET("/export/md", s.handleExportMarkdown)
	id.GET("/export/pdf", s.handleExportPrintHTML)

	id.POST("/documents/upload", s.handleUploadDocuments)
}

func (s *Server) handleHealth(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	_, err := s.deps.Store.ListSessionsSummary(reqCtx, "", 1, 0)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": version.Full(), "stats": s.deps.Metrics.Snapshot()})
}

// orchestratorFor returns the in-process orchestrator for sessionID,
// lazily constructing one from the persisted voice_config on first use
// (e.g. for HTTP-only callers that never joined through the voice-agent
// bridge). Orchestrator instances are process-local and safely
// reconstructable (§9 "Cooperative async throughout").
func (s *Server) orchestratorFor(ctx context.Context, sessionID string) *orchestrator.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if orch, ok := s.sessions[sessionID]; ok {
		return orch
	}

	consultationType := ""
	if s.deps.Store != nil {
		if sess, err := s.deps.Store.GetSession(ctx, sessionID); err == nil {
			if sess.VoiceConfig != nil {
				consultationType = sess.VoiceConfig.ConsultationType
			}
			orch := orchestrator.NewSession(s.deps.OrchDeps, sessionID, consultationType)
			orch.SeedDialogue(sess.DialogueHistory)
			s.sessions[sessionID] = orch
			return orch
		}
	}

	orch := orchestrator.NewSession(s.deps.OrchDeps, sessionID, consultationType)
	s.sessions[sessionID] = orch
	return orch
}

// forgetOrchestrator drops the cached orchestrator once a session
// reaches a terminal status, matching the runtime cache's own
// terminal-state eviction (§4.8 confirm/kill: "clears runtime cache entry").
func (s *Server) forgetOrchestrator(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}
