package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/calculator"
	"github.com/example/studentkit/internal/core"
	"github.com/example/studentkit/internal/ums"
)

type errorStatus struct {
	err    error
	status int
}

// errorStatuses is checked in order with errors.Is; the first match wins.
var errorStatuses = []errorStatus{
	{core.ErrProfileNotFound, http.StatusNotFound},
	{core.ErrSemesterNotFound, http.StatusNotFound},
	{core.ErrSubjectNotFound, http.StatusNotFound},
	{core.ErrShareNotFound, http.StatusNotFound},
	{core.ErrUserNotFound, http.StatusNotFound},
	{core.ErrCollaborativeProfileNotFound, http.StatusNotFound},
	{core.ErrShareTargetNotFound, http.StatusNotFound},
	{core.ErrNotCollaborator, http.StatusNotFound},

	{core.ErrProfileNameRequired, http.StatusBadRequest},
	{core.ErrNoSemesters, http.StatusBadRequest},
	{core.ErrInvalidSubject, http.StatusBadRequest},
	{core.ErrInvalidPermissionLevel, http.StatusBadRequest},
	{core.ErrCannotShareWithSelf, http.StatusBadRequest},
	{core.ErrInvalidShareExpiration, http.StatusBadRequest},
	{core.ErrInvalidLegacyData, http.StatusBadRequest},
	{core.ErrWeakPassword, http.StatusBadRequest},
	{core.ErrInvalidTheme, http.StatusBadRequest},
	{core.ErrNoUMSGrades, http.StatusUnprocessableEntity},
	{ums.ErrMissingSession, http.StatusBadRequest},

	{core.ErrSharePasswordRequired, http.StatusUnauthorized},
	{core.ErrInvalidSharePassword, http.StatusUnauthorized},
	{core.ErrRecentLoginRequired, http.StatusUnauthorized},
	{ums.ErrInvalidSession, http.StatusUnauthorized},

	{core.ErrShareNotViewable, http.StatusForbidden},
	{core.ErrCopyNotAllowed, http.StatusForbidden},
	{core.ErrNotShareOwner, http.StatusForbidden},
	{core.ErrReadOnlyShare, http.StatusForbidden},
	{core.ErrNotCollaborationOwner, http.StatusForbidden},
	{core.ErrCollaborationForbidden, http.StatusForbidden},
	{core.ErrCollaborationReadOnly, http.StatusForbidden},
	{core.ErrLastProfile, http.StatusConflict},
	{core.ErrDefaultProfile, http.StatusConflict},
	{core.ErrOwnerCannotLeave, http.StatusConflict},

	{core.ErrDuplicateProfileName, http.StatusConflict},
	{core.ErrVersionConflict, http.StatusConflict},
	{core.ErrAlreadyShared, http.StatusConflict},
	{core.ErrAlreadyCollaborator, http.StatusConflict},
	{core.ErrDeletionInProgress, http.StatusConflict},
	{core.ErrEmailInUse, http.StatusConflict},

	{core.ErrShareExpired, http.StatusGone},

	{ums.ErrUnavailable, http.StatusBadGateway},
	{core.ErrServiceClosed, http.StatusServiceUnavailable},

	{calculator.ErrInvalidGrade, http.StatusBadRequest},
	{calculator.ErrInvalidCredit, http.StatusBadRequest},
	{calculator.ErrInvalidMatrix, http.StatusBadRequest},
	{calculator.ErrMatrixTooLarge, http.StatusBadRequest},
	{calculator.ErrUnsupportedBase, http.StatusBadRequest},
	{calculator.ErrInvalidNumber, http.StatusBadRequest},
	{calculator.ErrMotionInput, http.StatusBadRequest},
	{calculator.ErrNonPositiveMotion, http.StatusBadRequest},
	{calculator.ErrUnknownUnit, http.StatusBadRequest},
}

// statusFor returns the HTTP status for a service error, 500 when unknown.
func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	var apiErr *ums.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// mapServiceErrorToStatus writes the failure envelope for err. Unknown errors are
// logged and reported without details.
func mapServiceErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("Internal Server Error",
			zap.String("path", c.FullPath()), zap.String("method", c.Request.Method), zap.Error(err))
		fail(c, status, "An unexpected internal server error occurred.", "")
		return
	}
	_ = c.Error(err)
	fail(c, status, rootMessage(err), err.Error())
}

// rootMessage is the message of the sentinel error in err's chain, which is stable for
// clients, falling back to the full message.
func rootMessage(err error) string {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.err.Error()
		}
	}
	return err.Error()
}
