package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/core"
	"github.com/example/studentkit/internal/models"
)

// UMSHandler imports grades from the university portal.
type UMSHandler struct {
	imports core.UMSImportService
	logger  *zap.Logger
}

func NewUMSHandler(is core.UMSImportService, logger *zap.Logger) *UMSHandler {
	return &UMSHandler{imports: is, logger: logger}
}

// Test handles POST /ums/test
func (h *UMSHandler) Test(c *gin.Context) {
	if _, ok := identity(c); !ok {
		return
	}
	var req UMSTestRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.imports.Test(c.Request.Context(), req.SessionCookie); err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respondMessage(c, http.StatusOK, "Session is valid")
}

// Import handles POST /ums/import
func (h *UMSHandler) Import(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req models.UMSImportRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.imports.Import(c.Request.Context(), id.UID, req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, res)
}
