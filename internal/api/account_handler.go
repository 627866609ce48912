package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/core"
	"github.com/example/studentkit/internal/models"
)

// AccountHandler handles sign-up, account settings and account deletion.
type AccountHandler struct {
	accounts core.AccountService
	logger   *zap.Logger
}

func NewAccountHandler(as core.AccountService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: as, logger: logger}
}

// SignUp handles POST /auth/signup
func (h *AccountHandler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.accounts.SignUp(c.Request.Context(), req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, user)
}

// Initialize handles POST /users/initialize, called by the client after every sign-in.
func (h *AccountHandler) Initialize(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req EnsureUserRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	user, created, err := h.accounts.EnsureUser(c.Request.Context(), id, req.DisplayName)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respond(c, status, user)
}

// Me handles GET /users/me
func (h *AccountHandler) Me(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	user, err := h.accounts.GetUser(c.Request.Context(), id.UID)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, user)
}

// UpdatePreferences handles PATCH /users/me/preferences
func (h *AccountHandler) UpdatePreferences(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.UpdatePreferencesRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.accounts.UpdatePreferences(c.Request.Context(), id.UID, req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, user)
}

// ChangePassword handles POST /users/me/password
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.accounts.ChangePassword(c.Request.Context(), id, req.NewPassword); err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respondMessage(c, http.StatusOK, "Password updated")
}

// Providers handles GET /users/me/providers
func (h *AccountHandler) Providers(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	providers, err := h.accounts.LinkedProviders(c.Request.Context(), id.UID)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, providers)
}

// SignOut handles POST /users/me/signout and revokes every refresh token of the user.
func (h *AccountHandler) SignOut(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.accounts.SignOut(c.Request.Context(), id.UID); err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respondMessage(c, http.StatusOK, "Signed out")
}

// Delete handles DELETE /users/me. The response carries the deletion report, also on failure.
func (h *AccountHandler) Delete(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	report, err := h.accounts.DeleteAccount(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrDeletionFailed) && report != nil {
			h.logger.Error("Account deletion failed", zap.String("userID", id.UID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, Response{
				Success: false,
				Error:   core.ErrDeletionFailed.Error(),
				Data:    report,
			})
			return
		}
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, report)
}

type deletionStatusResponse struct {
	State core.DeletionState `json:"state"`
}

// DeletionStatus handles GET /users/me/deletion
func (h *AccountHandler) DeletionStatus(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, deletionStatusResponse{State: h.accounts.DeletionStatus(id.UID)})
}
