package calculator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// luDeterminant is an independent reference using Gaussian elimination with partial pivoting.
func luDeterminant(m [][]float64) float64 {
	n := len(m)
	a := make([][]float64, n)
	for i := range m {
		a[i] = append([]float64(nil), m[i]...)
	}
	det := 1.0
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if a[pivot][col] == 0 {
			return 0
		}
		if pivot != col {
			a[pivot], a[col] = a[col], a[pivot]
			det = -det
		}
		det *= a[col][col]
		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}
	return det
}

func TestDeterminantClosedForms(t *testing.T) {
	d, err := Determinant([][]float64{{-7}})
	require.NoError(t, err)
	assert.Equal(t, -7.0, d)

	d, err = Determinant([][]float64{{3, 8}, {4, 6}})
	require.NoError(t, err)
	assert.Equal(t, 3.0*6-8*4, d)

	d, err = Determinant([][]float64{{6, 1, 1}, {4, -2, 5}, {2, 8, 7}})
	require.NoError(t, err)
	assert.InDelta(t, -306, d, 1e-9)
}

func TestDeterminantMatchesLUReference(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 1; n <= MaxDeterminantSize; n++ {
		for trial := 0; trial < 25; trial++ {
			m := make([][]float64, n)
			for i := range m {
				m[i] = make([]float64, n)
				for j := range m[i] {
					m[i][j] = float64(rng.Intn(21) - 10)
				}
			}
			got, err := Determinant(m)
			require.NoError(t, err)
			assert.InDelta(t, luDeterminant(m), got, 1e-6, "n=%d trial=%d", n, trial)
		}
	}
}

func TestDeterminantRejectsBadInput(t *testing.T) {
	_, err := Determinant(nil)
	assert.ErrorIs(t, err, ErrInvalidMatrix)

	_, err = Determinant([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrInvalidMatrix)

	_, err = Determinant([][]float64{{math.NaN()}})
	assert.ErrorIs(t, err, ErrInvalidMatrix)

	big := make([][]float64, MaxDeterminantSize+1)
	for i := range big {
		big[i] = make([]float64, MaxDeterminantSize+1)
	}
	_, err = Determinant(big)
	assert.ErrorIs(t, err, ErrMatrixTooLarge)
}
