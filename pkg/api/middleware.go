package api

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/anketa/pkg/metrics"
)

// sessionIDPattern is the single point of path-traversal defence for
// session identifiers (§4.8 "Input validation").
var sessionIDPattern = regexp.MustCompile(`^[a-f0-9]{8}$`)

// requestID injects X-Request-ID into the response, reusing an
// inbound header when the caller already supplied one (§4.8 middleware 1).
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = generateRequestID()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func generateRequestID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "000000000000"
	}
	return hex.EncodeToString(buf)
}

// validateSessionID rejects any :id path parameter that is not an
// 8-hex-digit session identifier (§4.8 middleware 2). It is mounted
// only on route groups that carry a genuine :id parameter, so the
// reserved segments "create" and "by-link" never reach it.
func validateSessionID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !sessionIDPattern.MatchString(id) {
			c.AbortWithStatusJSON(400, gin.H{"error": "invalid session id"})
			return
		}
		c.Next()
	}
}

// metricsMiddleware records each request's route, status class, and
// duration into rec. Nil-safe: a nil Recorder makes this a no-op.
func metricsMiddleware(rec *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rec.RecordRequest(c.Request.Context(), route, c.Writer.Status(), float64(time.Since(start).Milliseconds()))
	}
}

// securityHeaders sets the fixed response headers required on every
// route (§4.8 middleware 3).
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
		c.Next()
	}
}
