package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/calculator"
)

// CalculatorHandler exposes the stateless calculators. No authentication is needed.
type CalculatorHandler struct {
	logger *zap.Logger
}

func NewCalculatorHandler(logger *zap.Logger) *CalculatorHandler {
	return &CalculatorHandler{logger: logger}
}

// GPA handles POST /calculators/gpa
func (h *CalculatorHandler) GPA(c *gin.Context) {
	var req GPARequest
	if !bindJSON(c, &req) {
		return
	}
	resp := GPAResponse{Semesters: make([]string, 0, len(req.Semesters))}
	for _, sem := range req.Semesters {
		for _, s := range sem.Subjects {
			if err := calculator.ValidateSubject(s); err != nil {
				mapServiceErrorToStatus(c, h.logger, err)
				return
			}
		}
		resp.Semesters = append(resp.Semesters, calculator.FormatGPA(calculator.SemesterGPA(sem.Subjects)))
	}
	resp.CGPA = calculator.FormatGPA(calculator.CGPA(req.Semesters))
	respond(c, http.StatusOK, resp)
}

type determinantResponse struct {
	Determinant float64 `json:"determinant"`
}

// Determinant handles POST /calculators/determinant
func (h *CalculatorHandler) Determinant(c *gin.Context) {
	var req DeterminantRequest
	if !bindJSON(c, &req) {
		return
	}
	det, err := calculator.Determinant(req.Matrix)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, determinantResponse{Determinant: det})
}

// Base handles POST /calculators/base. Without a target base every supported base is returned.
func (h *CalculatorHandler) Base(c *gin.Context) {
	var req BaseRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.To == 0 {
		all, err := calculator.ConvertAll(req.Value, req.From)
		if err != nil {
			mapServiceErrorToStatus(c, h.logger, err)
			return
		}
		respond(c, http.StatusOK, all)
		return
	}
	out, err := calculator.ConvertBase(req.Value, req.From, req.To)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, map[int]string{req.To: out})
}

// Motion handles POST /calculators/motion
func (h *CalculatorHandler) Motion(c *gin.Context) {
	var req MotionRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := calculator.SolveMotion(req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, res)
}

// Prime handles GET /calculators/prime/:n
func (h *CalculatorHandler) Prime(c *gin.Context) {
	n, err := strconv.ParseInt(c.Param("n"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "n must be an integer", err.Error())
		return
	}
	factors := calculator.PrimeFactors(n)
	if factors == nil {
		factors = []int64{}
	}
	respond(c, http.StatusOK, PrimeResponse{N: n, IsPrime: calculator.IsPrime(n), Factors: factors})
}
