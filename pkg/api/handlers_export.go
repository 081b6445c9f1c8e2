package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/anketa/pkg/export"
)

// handleExportMarkdown handles GET /session/{id}/export/md: a
// Markdown attachment download of the persisted anketa_md (§4.8, §4.10).
func (s *Server) handleExportMarkdown(c *gin.Context) {
	sess, err := s.deps.Store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	stem := export.SafeName(sess.CompanyName)
	c.Header("Content-Disposition", export.ContentDisposition("attachment", stem, ".md"))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(sess.AnketaMD))
}

// handleExportPrintHTML handles GET /session/{id}/export/pdf: a
// print-ready HTML page displayed inline, carrying a "Save as PDF"
// button that triggers the browser print dialog (§4.8, §4.10).
func (s *Server) handleExportPrintHTML(c *gin.Context) {
	sess, err := s.deps.Store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	sessionType := "consultation"
	if sess.VoiceConfig != nil && sess.VoiceConfig.ConsultationType != "" {
		sessionType = sess.VoiceConfig.ConsultationType
	}

	html := export.RenderPrintHTML(sess.AnketaMD, sess.CompanyName, sessionType)

	stem := export.SafeName(sess.CompanyName)
	c.Header("Content-Disposition", export.ContentDisposition("inline", stem, ".html"))
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}
