package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPrime(t *testing.T) {
	primes := []int64{2, 3, 5, 7, 11, 13, 97, 7919, 2147483647}
	for _, p := range primes {
		assert.True(t, IsPrime(p), "%d", p)
	}
	composites := []int64{-7, 0, 1, 4, 9, 25, 49, 91, 7917, 1000000}
	for _, c := range composites {
		assert.False(t, IsPrime(c), "%d", c)
	}
}

func TestPrimeFactors(t *testing.T) {
	assert.Equal(t, []int64{2, 2, 3, 5}, PrimeFactors(60))
	assert.Equal(t, []int64{97}, PrimeFactors(97))
	assert.Equal(t, []int64{3, 3, 7, 11, 13}, PrimeFactors(9009))
	assert.Empty(t, PrimeFactors(1))
}
