package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/anketa/pkg/statemachine"
	"github.com/codeready-toolchain/anketa/pkg/store"
)

// writeError maps a collaborator error to the client-facing JSON shape
// required by §7 ("structured JSON error without stack traces and
// without reflecting unsanitized inputs").
func writeError(c *gin.Context, err error) {
	var transitionErr *statemachine.TransitionError
	if errors.As(err, &transitionErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid transition: " + string(transitionErr.From) + " → " + string(transitionErr.To),
		})
		return
	}

	var validErr *store.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validErr.Error()})
		return
	}

	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if errors.Is(err, store.ErrAlreadyExists) {
		c.JSON(http.StatusConflict, gin.H{"error": "session already exists"})
		return
	}
	if errors.Is(err, store.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	var storageErr *store.StorageError
	if errors.As(err, &storageErr) {
		slog.Error("storage error", "op", storageErr.Op, "error", storageErr.Err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	slog.Error("unexpected api error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
