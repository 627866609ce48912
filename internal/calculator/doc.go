// Package calculator holds the stateless student calculators: GPA, matrix determinant,
// number base conversion, speed/distance/time and prime checks.
//
// Every function is pure. Invalid input is reported with the sentinel errors below so
// the HTTP layer can map them to 400 responses.
package calculator

import "errors"

var (
	ErrInvalidGrade      = errors.New("grade must be between 0 and 10")
	ErrInvalidCredit     = errors.New("credit must be zero or positive")
	ErrInvalidMatrix     = errors.New("matrix must be square with finite values")
	ErrMatrixTooLarge    = errors.New("matrix is larger than the supported size")
	ErrUnsupportedBase   = errors.New("base must be one of 2, 8, 10 or 16")
	ErrInvalidNumber     = errors.New("value is not a valid number in the given base")
	ErrMotionInput       = errors.New("exactly two of speed, distance and time must be given")
	ErrNonPositiveMotion = errors.New("speed, distance and time must be positive")
	ErrUnknownUnit       = errors.New("unknown unit")
)
