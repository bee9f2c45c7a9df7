package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RespondOK writes the standard success envelope.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// RespondError maps assembly errors onto HTTP statuses by their
// contract prefixes: precondition failures are the caller's fault,
// not-found text maps to 404, everything else is a 500.
func RespondError(c *gin.Context, err error) {
	msg := err.Error()
	status := http.StatusInternalServerError
	switch {
	case strings.HasPrefix(msg, "PRECONDITION_FAILED:"),
		strings.HasPrefix(msg, "RENDER_PRECONDITION_FAILED:"):
		status = http.StatusUnprocessableEntity
	case strings.Contains(msg, "not found"),
		strings.Contains(msg, "were not found"),
		strings.Contains(msg, "was not found"):
		status = http.StatusNotFound
	case strings.Contains(msg, "does not belong"):
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"error": msg})
}
