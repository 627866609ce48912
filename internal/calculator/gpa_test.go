package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/studentkit/internal/models"
)

func TestSemesterGPA(t *testing.T) {
	tests := []struct {
		name     string
		subjects []models.Subject
		want     string
	}{
		{name: "empty", subjects: nil, want: "0.00"},
		{name: "zero credits", subjects: []models.Subject{{Grade: 9, Credit: 0}}, want: "0.00"},
		{name: "single subject", subjects: []models.Subject{{SubjectName: "Maths", Grade: 8, Credit: 4}}, want: "8.00"},
		{
			name: "weighted average rounds to two decimals",
			subjects: []models.Subject{
				{SubjectName: "Maths", Grade: 8, Credit: 4},
				{SubjectName: "Phy", Grade: 6, Credit: 2},
			},
			want: "7.33",
		},
		{
			name: "zero credit subject does not count",
			subjects: []models.Subject{
				{Grade: 10, Credit: 3},
				{Grade: 0, Credit: 0},
			},
			want: "10.00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatGPA(SemesterGPA(tt.subjects)))
		})
	}
}

func TestCGPAWeighsAllSemesters(t *testing.T) {
	semesters := []models.Semester{
		{Subjects: []models.Subject{{Grade: 10, Credit: 4}}},
		{Subjects: []models.Subject{{Grade: 6, Credit: 4}, {Grade: 7, Credit: 2}}},
	}
	// (40 + 24 + 14) / 10
	assert.Equal(t, 7.8, CGPA(semesters))
	assert.Equal(t, 0.0, CGPA(nil))
}

func TestValidateSubject(t *testing.T) {
	assert.NoError(t, ValidateSubject(models.Subject{Grade: 10, Credit: 0}))
	assert.ErrorIs(t, ValidateSubject(models.Subject{Grade: 10.5, Credit: 1}), ErrInvalidGrade)
	assert.ErrorIs(t, ValidateSubject(models.Subject{Grade: -1, Credit: 1}), ErrInvalidGrade)
	assert.ErrorIs(t, ValidateSubject(models.Subject{Grade: 5, Credit: -2}), ErrInvalidCredit)
}
