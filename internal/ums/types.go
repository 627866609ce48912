package ums

import "strings"

// BasicInfo is the student record shown on the portal home page.
type BasicInfo struct {
	Name               string `json:"name"`
	RegistrationNumber string `json:"registrationNumber"`
	Program            string `json:"program"`
	Section            string `json:"section"`
	RollNumber         string `json:"rollNumber"`
}

// Term is one academic term. The portal lists terms oldest first.
type Term struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CourseGrade is the final letter grade of one course.
type CourseGrade struct {
	TermID     string  `json:"termId"`
	CourseCode string  `json:"courseCode"`
	CourseName string  `json:"courseName"`
	Credits    float64 `json:"credits"`
	Grade      string  `json:"grade"`
}

var gradePoints = map[string]float64{
	"O":  10,
	"A+": 9,
	"A":  8,
	"B+": 7,
	"B":  6,
	"C":  5,
	"D":  4,
	"E":  0,
	"F":  0,
}

// GradePoint maps a letter grade to the 10-point scale. Grades without a point value
// (incomplete, pass/fail, withheld) report false.
func GradePoint(letter string) (float64, bool) {
	p, ok := gradePoints[strings.ToUpper(strings.TrimSpace(letter))]
	return p, ok
}
