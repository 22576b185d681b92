package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/coauthor/internal/pkg/response"
	"github.com/xxxsen/coauthor/internal/service"
)

type CollaboratorHandler struct {
	collaboration *service.CollaborationService
}

func NewCollaboratorHandler(collaboration *service.CollaborationService) *CollaboratorHandler {
	return &CollaboratorHandler{collaboration: collaboration}
}

type addCollaboratorRequest struct {
	UserID int64 `json:"user_id"`
}

func (h *CollaboratorHandler) List(c *gin.Context) {
	articleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	users, err := h.collaboration.ListCollaborators(c.Request.Context(), articleID, getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, users)
}

func (h *CollaboratorHandler) Add(c *gin.Context) {
	articleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req addCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID <= 0 {
		invalidRequest(c, "user_id required")
		return
	}
	if err := h.collaboration.AddCollaborator(c.Request.Context(), articleID, getUserID(c), req.UserID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *CollaboratorHandler) Remove(c *gin.Context) {
	articleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}
	if err := h.collaboration.RemoveCollaborator(c.Request.Context(), articleID, getUserID(c), userID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
