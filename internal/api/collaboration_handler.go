package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/core"
	"github.com/example/studentkit/internal/models"
)

// CollaborationHandler handles collaborative profiles.
type CollaborationHandler struct {
	collab core.CollaborationService
	logger *zap.Logger
}

func NewCollaborationHandler(cs core.CollaborationService, logger *zap.Logger) *CollaborationHandler {
	return &CollaborationHandler{collab: cs, logger: logger}
}

// Create handles POST /collaborative-profiles
func (h *CollaborationHandler) Create(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.CreateCollaborativeProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.collab.CreateCollaborativeProfile(c.Request.Context(), id.UID, req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, p)
}

// List handles GET /collaborative-profiles
func (h *CollaborationHandler) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	profiles, err := h.collab.ListCollaborativeProfiles(c.Request.Context(), id.UID)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, profiles)
}

// Get handles GET /collaborative-profiles/:profileId
func (h *CollaborationHandler) Get(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	p, err := h.collab.GetCollaborativeProfile(c.Request.Context(), id.UID, c.Param("profileId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// UpdateSemesters handles PUT /collaborative-profiles/:profileId
func (h *CollaborationHandler) UpdateSemesters(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.UpdateSemestersRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.collab.UpdateCollaborativeSemesters(c.Request.Context(), id.UID, c.Param("profileId"), req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// Delete handles DELETE /collaborative-profiles/:profileId
func (h *CollaborationHandler) Delete(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.collab.DeleteCollaborativeProfile(c.Request.Context(), id.UID, c.Param("profileId")); err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respondMessage(c, http.StatusOK, "Collaborative profile deleted")
}

// AddCollaborator handles POST /collaborative-profiles/:profileId/collaborators
func (h *CollaborationHandler) AddCollaborator(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.AddCollaboratorRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.collab.AddCollaborator(c.Request.Context(), id, c.Param("profileId"), req.Email)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// RemoveCollaborator handles DELETE /collaborative-profiles/:profileId/collaborators/:userId
func (h *CollaborationHandler) RemoveCollaborator(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	p, err := h.collab.RemoveCollaborator(c.Request.Context(), id.UID, c.Param("profileId"), c.Param("userId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// Leave handles POST /collaborative-profiles/:profileId/leave
func (h *CollaborationHandler) Leave(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.collab.LeaveCollaboration(c.Request.Context(), id.UID, c.Param("profileId")); err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respondMessage(c, http.StatusOK, "Left collaborative profile")
}
