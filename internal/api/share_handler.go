package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/core"
	"github.com/example/studentkit/internal/models"
)

// SharePasswordHeader carries the password of a protected public share.
const SharePasswordHeader = "X-Share-Password"

// ShareHandler handles public share links and per-user shares.
type ShareHandler struct {
	profiles core.ProfileService
	sharing  core.SharingService
	logger   *zap.Logger
}

func NewShareHandler(ps core.ProfileService, ss core.SharingService, logger *zap.Logger) *ShareHandler {
	return &ShareHandler{profiles: ps, sharing: ss, logger: logger}
}

// CreatePublicShare handles POST /shared-profiles
func (h *ShareHandler) CreatePublicShare(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.ShareProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	share, err := h.profiles.ShareProfile(c.Request.Context(), id.UID, req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, share)
}

// ListPublicShares handles GET /shared-profiles
func (h *ShareHandler) ListPublicShares(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	refs, err := h.profiles.ListSharedProfiles(c.Request.Context(), id.UID)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, refs)
}

// DeletePublicShare handles DELETE /shared-profiles/:shareId
func (h *ShareHandler) DeletePublicShare(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.profiles.UnshareProfile(c.Request.Context(), id.UID, c.Param("shareId")); err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respondMessage(c, http.StatusOK, "Share link deleted")
}

// GetPublicShare handles GET /public/shared-profiles/:shareId and needs no authentication.
func (h *ShareHandler) GetPublicShare(c *gin.Context) {
	password := c.GetHeader(SharePasswordHeader)
	if password == "" {
		password = c.Query("password")
	}
	share, err := h.profiles.GetSharedProfile(c.Request.Context(), c.Param("shareId"), password)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, share)
}

// CopyPublicShare handles POST /shared-profiles/:shareId/copy
func (h *ShareHandler) CopyPublicShare(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.CopySharedProfileRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	if req.Password == "" {
		req.Password = c.GetHeader(SharePasswordHeader)
	}
	p, err := h.profiles.CopySharedProfile(c.Request.Context(), id.UID, c.Param("shareId"), req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, p)
}

// ShareWithUser handles POST /user-shares
func (h *ShareHandler) ShareWithUser(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.ShareWithUserRequest
	if !bindJSON(c, &req) {
		return
	}
	share, err := h.sharing.ShareWithUser(c.Request.Context(), id, req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, share)
}

// ListOutgoing handles GET /user-shares/outgoing
func (h *ShareHandler) ListOutgoing(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	shares, err := h.sharing.ListOutgoingShares(c.Request.Context(), id.UID)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, shares)
}

// ListIncoming handles GET /user-shares/incoming
func (h *ShareHandler) ListIncoming(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	shares, err := h.sharing.ListIncomingShares(c.Request.Context(), id.UID)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, shares)
}

// UpdatePermission handles PATCH /user-shares/outgoing/:shareId
func (h *ShareHandler) UpdatePermission(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.UpdateSharePermissionRequest
	if !bindJSON(c, &req) {
		return
	}
	share, err := h.sharing.UpdateSharePermission(c.Request.Context(), id.UID, c.Param("shareId"), req.Permission)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, share)
}

// Revoke handles DELETE /user-shares/outgoing/:shareId
func (h *ShareHandler) Revoke(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.sharing.RevokeShare(c.Request.Context(), id.UID, c.Param("shareId")); err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respondMessage(c, http.StatusOK, "Share revoked")
}

type incomingProfileResponse struct {
	Profile *models.Profile   `json:"profile"`
	Share   *models.UserShare `json:"share"`
}

// GetIncoming handles GET /user-shares/incoming/:shareId
func (h *ShareHandler) GetIncoming(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	p, share, err := h.sharing.GetIncomingProfile(c.Request.Context(), id.UID, c.Param("shareId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, incomingProfileResponse{Profile: p, Share: share})
}

// UpdateIncoming handles PUT /user-shares/incoming/:shareId for edit shares.
func (h *ShareHandler) UpdateIncoming(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.UpdateSemestersRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.sharing.UpdateIncomingProfile(c.Request.Context(), id.UID, c.Param("shareId"), req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// CopyIncoming handles POST /user-shares/incoming/:shareId/copy
func (h *ShareHandler) CopyIncoming(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req CopyIncomingRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	p, err := h.sharing.CopyIncomingProfile(c.Request.Context(), id.UID, c.Param("shareId"), req.Name)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, p)
}
