package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dialecticlabs/dialectic-backend/internal/assembler"
	"github.com/dialecticlabs/dialectic-backend/internal/logger"
	"github.com/dialecticlabs/dialectic-backend/internal/middleware"
	"github.com/dialecticlabs/dialectic-backend/internal/services"
)

// AssemblyHandler exposes the assembly operations over HTTP. Handlers
// stay declarative: bind, delegate, respond.
type AssemblyHandler struct {
	svc services.AssemblyService
	log *logger.Logger
}

func NewAssemblyHandler(svc services.AssemblyService, log *logger.Logger) *AssemblyHandler {
	return &AssemblyHandler{svc: svc, log: log.With("handler", "AssemblyHandler")}
}

func (h *AssemblyHandler) Seed(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	var req services.SeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.svc.AssembleSeed(c.Request.Context(), userID, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *AssemblyHandler) Planner(c *gin.Context) {
	h.job(c, h.svc.AssemblePlanner)
}

func (h *AssemblyHandler) Turn(c *gin.Context) {
	h.job(c, h.svc.AssembleTurn)
}

func (h *AssemblyHandler) job(c *gin.Context, assemble func(context.Context, uuid.UUID, services.JobRequest) (*assembler.AssembledPrompt, error)) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	var req services.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := assemble(c.Request.Context(), userID, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *AssemblyHandler) Continuation(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	rootID, err := uuid.Parse(c.Param("rootId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid root contribution id"})
		return
	}
	messages, err := h.svc.ReconstructConversation(c.Request.Context(), userID, rootID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"messages": messages})
}
