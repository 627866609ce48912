package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/core"
	"github.com/example/studentkit/internal/middleware"
	"github.com/example/studentkit/internal/models"
)

// identity returns the authenticated caller or answers 401.
func identity(c *gin.Context) (core.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "User ID not found in context", "")
	}
	return id, ok
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return false
	}
	return true
}

// ProfileHandler handles the GPA profile endpoints.
type ProfileHandler struct {
	profiles core.ProfileService
	logger   *zap.Logger
}

func NewProfileHandler(ps core.ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: ps, logger: logger}
}

// ListProfiles handles GET /profiles. The first call for a user creates the default profile.
func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	profiles, err := h.profiles.Init(c.Request.Context(), id.UID)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, profiles)
}

// CreateProfile handles POST /profiles
func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.CreateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.profiles.CreateProfile(c.Request.Context(), id.UID, req.Name)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, p)
}

// GetProfile handles GET /profiles/:profileId
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	p, err := h.profiles.GetProfile(c.Request.Context(), id.UID, c.Param("profileId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// SaveProfile handles PUT /profiles/:profileId. The body's version must match the stored one.
func (h *ProfileHandler) SaveProfile(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req SaveProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	p := &models.Profile{
		ID:          c.Param("profileId"),
		Name:        req.Name,
		Semesters:   req.Semesters,
		StudentInfo: req.StudentInfo,
		Version:     req.Version,
	}
	saved, err := h.profiles.SaveProfile(c.Request.Context(), id.UID, p)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, saved)
}

// DeleteProfile handles DELETE /profiles/:profileId
func (h *ProfileHandler) DeleteProfile(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.profiles.DeleteProfile(c.Request.Context(), id.UID, c.Param("profileId")); err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respondMessage(c, http.StatusOK, "Profile deleted")
}

// SetDefault handles POST /profiles/:profileId/default
func (h *ProfileHandler) SetDefault(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	p, err := h.profiles.SetDefaultProfile(c.Request.Context(), id.UID, c.Param("profileId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// RenameProfile handles PATCH /profiles/:profileId
func (h *ProfileHandler) RenameProfile(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req RenameRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.profiles.RenameProfile(c.Request.Context(), id.UID, c.Param("profileId"), req.Name)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// AddSemester handles POST /profiles/:profileId/semesters
func (h *ProfileHandler) AddSemester(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.SemesterRequest
	// The body is optional.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	p, err := h.profiles.AddSemester(c.Request.Context(), id.UID, c.Param("profileId"), req.Name)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, p)
}

// RemoveSemester handles DELETE /profiles/:profileId/semesters/:semesterId
func (h *ProfileHandler) RemoveSemester(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	p, err := h.profiles.RemoveSemester(c.Request.Context(), id.UID, c.Param("profileId"), c.Param("semesterId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// UpsertSubject handles POST /profiles/:profileId/semesters/:semesterId/subjects
func (h *ProfileHandler) UpsertSubject(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.SubjectRequest
	if !bindJSON(c, &req) {
		return
	}
	subject := models.Subject{ID: req.ID, SubjectName: req.SubjectName, Grade: req.Grade, Credit: req.Credit}
	p, err := h.profiles.UpsertSubject(c.Request.Context(), id.UID, c.Param("profileId"), c.Param("semesterId"), subject)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// RemoveSubject handles DELETE /profiles/:profileId/semesters/:semesterId/subjects/:subjectId
func (h *ProfileHandler) RemoveSubject(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	p, err := h.profiles.RemoveSubject(c.Request.Context(), id.UID, c.Param("profileId"), c.Param("semesterId"), c.Param("subjectId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// Summary handles GET /profiles/:profileId/summary
func (h *ProfileHandler) Summary(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	s, err := h.profiles.ProfileSummary(c.Request.Context(), id.UID, c.Param("profileId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, s)
}

// Migrate handles POST /profiles/migrate with a dump of the old local storage keys.
func (h *ProfileHandler) Migrate(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.LegacyStorage
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.profiles.MigrateFromLocalStorage(c.Request.Context(), id.UID, req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, res)
}
