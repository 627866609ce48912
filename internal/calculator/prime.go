package calculator

// IsPrime reports whether n is prime using 6k±1 trial division.
func IsPrime(n int64) bool {
	if n < 2 {
		return false
	}
	if n < 4 {
		return true
	}
	if n%2 == 0 || n%3 == 0 {
		return false
	}
	for i := int64(5); i <= n/i; i += 6 {
		if n%i == 0 || n%(i+2) == 0 {
			return false
		}
	}
	return true
}

// PrimeFactors returns the prime factorisation of n in ascending order, with
// repetition. Values below 2 have no factors.
func PrimeFactors(n int64) []int64 {
	var out []int64
	if n < 2 {
		return out
	}
	for n%2 == 0 {
		out = append(out, 2)
		n /= 2
	}
	for f := int64(3); f <= n/f; f += 2 {
		for n%f == 0 {
			out = append(out, f)
			n /= f
		}
	}
	if n > 1 {
		out = append(out, n)
	}
	return out
}
