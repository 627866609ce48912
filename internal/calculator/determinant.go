package calculator

import (
	"fmt"
	"math"
)

// MaxDeterminantSize bounds the cofactor expansion, which is O(n!).
const MaxDeterminantSize = 5

// Determinant computes det(m) by cofactor expansion along the first row.
func Determinant(m [][]float64) (float64, error) {
	n := len(m)
	if n == 0 {
		return 0, fmt.Errorf("%w: empty matrix", ErrInvalidMatrix)
	}
	if n > MaxDeterminantSize {
		return 0, fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrMatrixTooLarge, n, n, MaxDeterminantSize, MaxDeterminantSize)
	}
	for i, row := range m {
		if len(row) != n {
			return 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidMatrix, i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("%w: entry (%d,%d) is not finite", ErrInvalidMatrix, i, j)
			}
		}
	}
	return cofactor(m), nil
}

func cofactor(m [][]float64) float64 {
	switch len(m) {
	case 1:
		return m[0][0]
	case 2:
		return m[0][0]*m[1][1] - m[0][1]*m[1][0]
	}
	var det float64
	sign := 1.0
	for col := range m[0] {
		if m[0][col] != 0 {
			det += sign * m[0][col] * cofactor(minor(m, 0, col))
		}
		sign = -sign
	}
	return det
}

// minor drops row r and column c.
func minor(m [][]float64, r, c int) [][]float64 {
	out := make([][]float64, 0, len(m)-1)
	for i, row := range m {
		if i == r {
			continue
		}
		next := make([]float64, 0, len(row)-1)
		next = append(next, row[:c]...)
		next = append(next, row[c+1:]...)
		out = append(out, next)
	}
	return out
}
