package calculator

import (
	"fmt"
	"math"
	"strconv"

	"github.com/example/studentkit/internal/models"
)

// MaxGrade is the top of the grading scale.
const MaxGrade = 10.0

// ValidateSubject checks the grade and credit bounds of a single subject.
func ValidateSubject(s models.Subject) error {
	if math.IsNaN(s.Grade) || s.Grade < 0 || s.Grade > MaxGrade {
		return fmt.Errorf("%w: got %v for %q", ErrInvalidGrade, s.Grade, s.SubjectName)
	}
	if math.IsNaN(s.Credit) || math.IsInf(s.Credit, 0) || s.Credit < 0 {
		return fmt.Errorf("%w: got %v for %q", ErrInvalidCredit, s.Credit, s.SubjectName)
	}
	return nil
}

// SemesterGPA returns Σ(grade·credit)/Σ(credit) rounded to two decimals.
// An empty list or a zero credit total yields 0.
func SemesterGPA(subjects []models.Subject) float64 {
	var points, credits float64
	for _, s := range subjects {
		points += s.Grade * s.Credit
		credits += s.Credit
	}
	if credits <= 0 {
		return 0
	}
	return Round2(points / credits)
}

// CGPA is the credit-weighted GPA over every subject of every semester.
func CGPA(semesters []models.Semester) float64 {
	var all []models.Subject
	for _, sem := range semesters {
		all = append(all, sem.Subjects...)
	}
	return SemesterGPA(all)
}

// TotalCredits sums the credits of the given subjects.
func TotalCredits(subjects []models.Subject) float64 {
	var credits float64
	for _, s := range subjects {
		credits += s.Credit
	}
	return credits
}

// FormatGPA renders a GPA with exactly two decimals, e.g. "7.33" or "0.00".
func FormatGPA(v float64) string {
	return strconv.FormatFloat(Round2(v), 'f', 2, 64)
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
