package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/anketa/pkg/documents"
)

// handleUploadDocuments handles POST /session/{id}/documents/upload
// (§4.8, §4.9).
func (s *Server) handleUploadDocuments(c *gin.Context) {
	sessionID := c.Param("id")
	if s.deps.Documents == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "document pipeline unavailable"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart/form-data with a 'files' field"})
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	uploads := make([]documents.Upload, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read %s", fh.Filename)})
			return
		}
		content := make([]byte, fh.Size)
		if _, err := f.Read(content); err != nil && fh.Size > 0 {
			f.Close()
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read %s", fh.Filename)})
			return
		}
		f.Close()

		uploads = append(uploads, documents.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     content,
		})
	}

	orch := s.orchestratorFor(c.Request.Context(), sessionID)
	result, err := s.deps.Documents.Upload(c.Request.Context(), sessionID, uploads, orch)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, uploadDocumentsResponse{SavedFiles: result.SavedFiles, Summary: result.Context.Summary})
}
