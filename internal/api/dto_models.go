package api

import (
	"github.com/gin-gonic/gin"

	"github.com/example/studentkit/internal/calculator"
	"github.com/example/studentkit/internal/models"
)

// Response is the envelope of every JSON response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Success: true, Message: message})
}

func fail(c *gin.Context, status int, errMsg, details string) {
	c.JSON(status, Response{Success: false, Error: errMsg, Message: details})
}

// SaveProfileRequest is the body of PUT /profiles/:profileId.
type SaveProfileRequest = models.SaveProfileRequest

// GPARequest is the body of POST /calculators/gpa.
type GPARequest struct {
	Semesters []models.Semester `json:"semesters" binding:"required"`
}

// GPAResponse has the GPA of every semester and the CGPA, formatted with two decimals.
type GPAResponse struct {
	Semesters []string `json:"semesters"`
	CGPA      string   `json:"cgpa"`
}

// DeterminantRequest is the body of POST /calculators/determinant.
type DeterminantRequest struct {
	Matrix [][]float64 `json:"matrix" binding:"required"`
}

// BaseRequest is the body of POST /calculators/base.
type BaseRequest struct {
	Value string `json:"value" binding:"required"`
	From  int    `json:"from" binding:"required"`
	// To is optional; zero converts to every supported base.
	To int `json:"to,omitempty"`
}

// MotionRequest is the body of POST /calculators/motion.
type MotionRequest = calculator.MotionInput

// PrimeResponse is returned by GET /calculators/prime/:n.
type PrimeResponse struct {
	N       int64   `json:"n"`
	IsPrime bool    `json:"isPrime"`
	Factors []int64 `json:"factors"`
}

// RenameRequest is the body of the rename endpoints.
type RenameRequest = models.RenameProfileRequest

// CopyIncomingRequest is the body of POST /user-shares/incoming/:shareId/copy.
type CopyIncomingRequest struct {
	Name string `json:"name,omitempty"`
}

// EnsureUserRequest is the body of POST /users/initialize.
type EnsureUserRequest struct {
	DisplayName string `json:"displayName,omitempty"`
}

// UMSTestRequest is the body of POST /ums/test.
type UMSTestRequest struct {
	SessionCookie string `json:"sessionCookie" binding:"required"`
}
